package user

import (
	"strings"
	"time"
)

const (
	RoleCoach = "coach"
	RoleAdmin = "admin"

	TierFree = "free"

	ReferralCodeLen = 8
)

// Subscription mirrors the Stripe subscription on the profile.
type Subscription struct {
	Tier              string    `firestore:"tier" json:"tier"`
	Status            string    `firestore:"status,omitempty" json:"status,omitempty"`
	StartedAt         time.Time `firestore:"startedAt,omitempty" json:"startedAt,omitempty"`
	EndsAt            time.Time `firestore:"endsAt,omitempty" json:"endsAt,omitempty"`
	CancelAtPeriodEnd bool      `firestore:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
	StripeCustomerID  string    `firestore:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	SubscriptionID    string    `firestore:"subscriptionId,omitempty" json:"subscriptionId,omitempty"`
	PriceID           string    `firestore:"priceId,omitempty" json:"priceId,omitempty"`
}

// EffectiveTier is the tier whose limits apply at now.
func (s Subscription) EffectiveTier(now time.Time) string {
	if s.Tier == "" || s.Tier == TierFree {
		return TierFree
	}
	switch s.Status {
	case "active", "trialing":
		return s.Tier
	case "canceled", "past_due":
		if !s.EndsAt.IsZero() && now.Before(s.EndsAt) {
			return s.Tier
		}
	}
	return TierFree
}

type Profile struct {
	UID                string       `firestore:"uid" json:"uid"`
	Email              string       `firestore:"email" json:"email"`
	DisplayName        string       `firestore:"displayName" json:"displayName"`
	PhotoURL           string       `firestore:"photoURL,omitempty" json:"photoURL,omitempty"`
	Role               string       `firestore:"role" json:"role"`
	Subscription       Subscription `firestore:"subscription" json:"subscription"`
	ReferralCode       string       `firestore:"referralCode" json:"referralCode"`
	ReferredBy         string       `firestore:"referredBy,omitempty" json:"referredBy,omitempty"`
	ReferredAt         time.Time    `firestore:"referredAt,omitempty" json:"referredAt,omitempty"`
	ReferralCount      int          `firestore:"referralCount" json:"referralCount"`
	ReferralRewarded   bool         `firestore:"referralRewarded" json:"referralRewarded"`
	PendingCreditCents int64        `firestore:"pendingCreditCents" json:"pendingCreditCents"`
	Favorites          []string     `firestore:"favorites" json:"favorites"`
	FCMTokens          []string     `firestore:"fcmTokens" json:"-"`
	CreatedAt          time.Time    `firestore:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time    `firestore:"updatedAt" json:"updatedAt"`
}

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

type UpdateProfileInput struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

func (in *UpdateProfileInput) Trim() {
	if in.DisplayName != nil {
		*in.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.PhotoURL != nil {
		*in.PhotoURL = strings.TrimSpace(*in.PhotoURL)
	}
}

type FavoriteResult struct {
	Favorite  bool     `json:"favorite"`
	Favorites []string `json:"favorites"`
}

// toggle adds id to list when absent and removes it when present.
func toggle(list []string, id string) ([]string, bool) {
	out := make([]string, 0, len(list)+1)
	found := false
	for _, x := range list {
		if x == id {
			found = true
			continue
		}
		out = append(out, x)
	}
	if found {
		return out, false
	}
	return append(out, id), true
}

// NormalizeCode uppercases a referral code and drops separators users
// tend to type.
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

package user

import (
	"context"
	"fmt"
	"time"

	"lapizarra/backend/internal/firebase"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

type Repo struct {
	fs *firestore.Client
}

func NewRepo(fs *firestore.Client) *Repo {
	return &Repo{fs: fs}
}

func (r *Repo) col() *firestore.CollectionRef {
	return r.fs.Collection("users")
}

func decode(doc *firestore.DocumentSnapshot) (*Profile, error) {
	var p Profile
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if p.UID == "" {
		p.UID = doc.Ref.ID
	}
	return &p, nil
}

func (r *Repo) Get(ctx context.Context, uid string) (*Profile, error) {
	doc, err := r.col().Doc(uid).Get(ctx)
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return decode(doc)
}

// Create writes p unless the document already exists, in which case
// created is false.
func (r *Repo) Create(ctx context.Context, p Profile) (created bool, err error) {
	if _, err := r.col().Doc(p.UID).Create(ctx, p); err != nil {
		if firebase.IsAlreadyExists(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}

func (r *Repo) findOne(ctx context.Context, q firestore.Query) (*Profile, error) {
	iter := q.Limit(1).Documents(ctx)
	defer iter.Stop()
	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return decode(doc)
}

func (r *Repo) FindByReferralCode(ctx context.Context, code string) (*Profile, error) {
	return r.findOne(ctx, r.col().Where("referralCode", "==", code))
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	return r.findOne(ctx, r.col().Where("email", "==", email))
}

func (r *Repo) FindByStripeCustomer(ctx context.Context, customerID string) (*Profile, error) {
	return r.findOne(ctx, r.col().Where("subscription.stripeCustomerId", "==", customerID))
}

func (r *Repo) FindBySubscription(ctx context.Context, subscriptionID string) (*Profile, error) {
	return r.findOne(ctx, r.col().Where("subscription.subscriptionId", "==", subscriptionID))
}

// ListLapsed returns users whose canceled subscription ended before now.
func (r *Repo) ListLapsed(ctx context.Context, now time.Time) ([]Profile, error) {
	iter := r.col().
		Where("subscription.status", "in", []string{"canceled", "unpaid", "incomplete_expired"}).
		Where("subscription.endsAt", "<", now).
		Documents(ctx)
	defer iter.Stop()

	out := []Profile{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list lapsed subscriptions: %w", err)
		}
		p, err := decode(doc)
		if err != nil {
			continue
		}
		if p.Subscription.Tier != TierFree {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Update merges fields into the user document; keys may be dotted paths
// such as "subscription.status".
func (r *Repo) Update(ctx context.Context, uid string, fields map[string]interface{}) error {
	ups := append(firebase.Updates(fields), firestore.Update{Path: "updatedAt", Value: time.Now().UTC()})
	if _, err := r.col().Doc(uid).Update(ctx, ups); err != nil {
		if firebase.IsNotFound(err) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ToggleFavorite flips exerciseID in the favorites list atomically.
func (r *Repo) ToggleFavorite(ctx context.Context, uid, exerciseID string) (*FavoriteResult, error) {
	ref := r.col().Doc(uid)
	var res FavoriteResult
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		p, err := decode(doc)
		if err != nil {
			return err
		}
		list, on := toggle(p.Favorites, exerciseID)
		res = FavoriteResult{Favorite: on, Favorites: list}
		return tx.Update(ref, []firestore.Update{
			{Path: "favorites", Value: list},
			{Path: "updatedAt", Value: time.Now().UTC()},
		})
	})
	if err != nil {
		if firebase.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return &res, nil
}

// RemoveFavorites drops ids that no longer resolve to an exercise.
func (r *Repo) RemoveFavorites(ctx context.Context, uid string, ids []string) error {
	vals := make([]interface{}, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return r.Update(ctx, uid, map[string]interface{}{"favorites": firestore.ArrayRemove(vals...)})
}

func (r *Repo) AddToken(ctx context.Context, uid, token string) error {
	return r.Update(ctx, uid, map[string]interface{}{"fcmTokens": firestore.ArrayUnion(token)})
}

func (r *Repo) RemoveTokens(ctx context.Context, uid string, tokens []string) error {
	vals := make([]interface{}, len(tokens))
	for i, t := range tokens {
		vals[i] = t
	}
	return r.Update(ctx, uid, map[string]interface{}{"fcmTokens": firestore.ArrayRemove(vals...)})
}

// RedeemReferral links uid to referrerUID once and bumps the referrer's
// count in the same transaction.
func (r *Repo) RedeemReferral(ctx context.Context, uid, referrerUID string) error {
	ref := r.col().Doc(uid)
	referrerRef := r.col().Doc(referrerUID)
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		p, err := decode(doc)
		if err != nil {
			return err
		}
		if p.ReferredBy != "" {
			return fmt.Errorf("%w: a referral code was already redeemed", ErrConflict)
		}
		if p.Subscription.SubscriptionID != "" {
			return fmt.Errorf("%w: referral codes are only for new subscribers", ErrBadRequest)
		}
		now := time.Now().UTC()
		if err := tx.Update(ref, []firestore.Update{
			{Path: "referredBy", Value: referrerUID},
			{Path: "referredAt", Value: now},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return err
		}
		return tx.Update(referrerRef, []firestore.Update{
			{Path: "referralCount", Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: now},
		})
	})
	if err != nil {
		if IsErrConflict(err) || IsErrBadRequest(err) {
			return err
		}
		if firebase.IsNotFound(err) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return fmt.Errorf("failed to redeem referral: %w", err)
	}
	return nil
}

// ClaimReferralReward marks uid's referral as rewarded, returning false when
// it already was.
func (r *Repo) ClaimReferralReward(ctx context.Context, uid string) (bool, error) {
	ref := r.col().Doc(uid)
	claimed := false
	err := r.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		claimed = false
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		p, err := decode(doc)
		if err != nil {
			return err
		}
		if p.ReferredBy == "" || p.ReferralRewarded {
			return nil
		}
		claimed = true
		return tx.Update(ref, []firestore.Update{{Path: "referralRewarded", Value: true}})
	})
	if err != nil {
		return false, fmt.Errorf("failed to claim referral reward: %w", err)
	}
	return claimed, nil
}

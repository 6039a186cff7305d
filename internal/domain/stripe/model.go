package stripe

import (
	"strings"
	"time"
)

// ResourceUsage represents current usage and limit for a resource
type ResourceUsage struct {
	Current int `json:"current"`
	Limit   int `json:"limit"` // -1 = unlimited
}

// SubscriptionInfo contains subscription details
type SubscriptionInfo struct {
	Plan               string                   `json:"plan"`
	EffectivePlan      string                   `json:"effectivePlan"`
	Status             string                   `json:"status"`
	PeriodEnd          *time.Time               `json:"periodEnd,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancelAtPeriodEnd"`
	Usage              map[string]ResourceUsage `json:"usage"`
	ReferralCode       string                   `json:"referralCode"`
	ReferralCount      int                      `json:"referralCount"`
	PendingCreditCents int64                    `json:"pendingCreditCents"`
	TrialEligible      bool                     `json:"trialEligible"`
}

// CreateCheckoutInput is the input for creating a checkout session
type CreateCheckoutInput struct {
	Plan       string `json:"plan"`   // "pro" or "club"
	Period     string `json:"period"` // "monthly" or "yearly"
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (i *CreateCheckoutInput) Trim() {
	i.Plan = strings.ToLower(strings.TrimSpace(i.Plan))
	i.Period = strings.ToLower(strings.TrimSpace(i.Period))
	i.SuccessURL = strings.TrimSpace(i.SuccessURL)
	i.CancelURL = strings.TrimSpace(i.CancelURL)
}

type CreatePortalInput struct {
	ReturnURL string `json:"returnUrl"`
}

func (i *CreatePortalInput) Trim() {
	i.ReturnURL = strings.TrimSpace(i.ReturnURL)
}

// Payment represents a payment record
type Payment struct {
	ID             string    `firestore:"-" json:"id"`
	InvoiceID      string    `firestore:"invoiceId" json:"invoiceId"`
	SubscriptionID string    `firestore:"subscriptionId" json:"subscriptionId"`
	Amount         int64     `firestore:"amount" json:"amount"`
	Currency       string    `firestore:"currency" json:"currency"`
	Status         string    `firestore:"status" json:"status"`
	InvoiceURL     string    `firestore:"invoiceUrl,omitempty" json:"invoiceUrl,omitempty"`
	InvoicePDF     string    `firestore:"invoicePdf,omitempty" json:"invoicePdf,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt" json:"createdAt"`
}

// SubscriptionEvent represents a subscription event for audit
type SubscriptionEvent struct {
	ID                string    `firestore:"-" json:"id"`
	Type              string    `firestore:"type" json:"type"`
	SubscriptionID    string    `firestore:"subscriptionId" json:"subscriptionId"`
	Status            string    `firestore:"status" json:"status"`
	Plan              string    `firestore:"plan" json:"plan"`
	PriceID           string    `firestore:"priceId,omitempty" json:"priceId,omitempty"`
	PeriodEnd         time.Time `firestore:"periodEnd,omitempty" json:"periodEnd,omitempty"`
	CancelAtPeriodEnd bool      `firestore:"cancelAtPeriodEnd" json:"cancelAtPeriodEnd"`
	CreatedAt         time.Time `firestore:"createdAt" json:"createdAt"`
}

// ReferralCredit records a reward granted to a referrer.
type ReferralCredit struct {
	ReferredUID string    `firestore:"referredUid" json:"referredUid"`
	AmountCents int64     `firestore:"amountCents" json:"amountCents"`
	Applied     string    `firestore:"applied" json:"applied"` // stripe_balance | pending
	InvoiceID   string    `firestore:"invoiceId" json:"invoiceId"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

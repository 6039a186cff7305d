package stripe

import (
	"context"
	"fmt"
	"time"

	"lapizarra/backend/internal/config"
	"lapizarra/backend/internal/domain/user"

	"cloud.google.com/go/firestore"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	portalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/customerbalancetransaction"
	"github.com/stripe/stripe-go/v76/subscription"
)

type Service struct {
	fs     *firestore.Client
	users  *user.Repo
	limits *Limiter
	plans  *Catalog
	config config.StripeConfig
	clock  clockwork.Clock
}

func NewService(fs *firestore.Client, users *user.Repo, limits *Limiter, plans *Catalog, cfg config.StripeConfig, clock clockwork.Clock) *Service {
	stripe.Key = cfg.SecretKey
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{fs: fs, users: users, limits: limits, plans: plans, config: cfg, clock: clock}
}

func (s *Service) requireStripe() error {
	if !s.config.Enabled() {
		return ErrNotConfigured
	}
	return nil
}

// PriceFor maps a plan and billing period to the configured Stripe price.
func (s *Service) PriceFor(plan, period string) (string, error) {
	if plan != PlanPro && plan != PlanClub {
		return "", fmt.Errorf("%w: plan must be 'pro' or 'club'", ErrBadRequest)
	}
	if period != "monthly" && period != "yearly" {
		return "", fmt.Errorf("%w: period must be 'monthly' or 'yearly'", ErrBadRequest)
	}
	var priceID string
	switch {
	case plan == PlanPro && period == "yearly":
		priceID = s.config.PriceProYearly
	case plan == PlanPro:
		priceID = s.config.PriceProMonthly
	case period == "yearly":
		priceID = s.config.PriceClubYearly
	default:
		priceID = s.config.PriceClubMonthly
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: price not configured for %s %s", ErrBadRequest, plan, period)
	}
	return priceID, nil
}

func (s *Service) GetPlanFromPriceID(priceID string) string {
	switch priceID {
	case "":
		return PlanFree
	case s.config.PriceProMonthly, s.config.PriceProYearly:
		return PlanPro
	case s.config.PriceClubMonthly, s.config.PriceClubYearly:
		return PlanClub
	default:
		return PlanFree
	}
}

// trialDays is the free trial granted at checkout: referred users who never
// held a subscription get the referral trial.
func (s *Service) trialDays(p *user.Profile) int64 {
	if p.ReferredBy == "" || p.Subscription.SubscriptionID != "" || !p.Subscription.StartedAt.IsZero() {
		return 0
	}
	return s.config.ReferralTrialDays
}

// ensureCustomer returns the user's Stripe customer, creating it on first
// checkout and applying any referral credit earned before it existed.
func (s *Service) ensureCustomer(ctx context.Context, p *user.Profile) (string, error) {
	if id := p.Subscription.StripeCustomerID; id != "" {
		return id, nil
	}
	c, err := customer.New(customerParams(p))
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	fields := map[string]interface{}{"subscription.stripeCustomerId": c.ID}
	if p.PendingCreditCents > 0 {
		if err := s.creditBalance(c.ID, p.PendingCreditCents, "Referral credit"); err != nil {
			log.Warn().Err(err).Str("uid", p.UID).Msg("failed to apply pending referral credit")
		} else {
			fields["pendingCreditCents"] = int64(0)
		}
	}
	if err := s.users.Update(ctx, p.UID, fields); err != nil {
		log.Warn().Err(err).Str("uid", p.UID).Msg("failed to save customer id")
	}
	return c.ID, nil
}

// customerParams keys creation on the uid so concurrent checkouts share one
// Stripe customer.
func customerParams(p *user.Profile) *stripe.CustomerParams {
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
		Name:  stripe.String(p.DisplayName),
		Metadata: map[string]string{
			"uid": p.UID,
		},
	}
	params.SetIdempotencyKey("customer-" + p.UID)
	return params
}

// creditBalance adds a credit (negative balance) to a Stripe customer.
func (s *Service) creditBalance(customerID string, cents int64, desc string) error {
	_, err := customerbalancetransaction.New(&stripe.CustomerBalanceTransactionParams{
		Customer:    stripe.String(customerID),
		Amount:      stripe.Int64(-cents),
		Currency:    stripe.String(s.config.Currency),
		Description: stripe.String(desc),
	})
	return err
}

func (s *Service) CreateCheckoutSession(ctx context.Context, uid string, input CreateCheckoutInput) (string, error) {
	if err := s.requireStripe(); err != nil {
		return "", err
	}
	input.Trim()
	priceID, err := s.PriceFor(input.Plan, input.Period)
	if err != nil {
		return "", err
	}
	if input.SuccessURL == "" || input.CancelURL == "" {
		return "", fmt.Errorf("%w: successUrl and cancelUrl are required", ErrBadRequest)
	}

	p, err := s.users.Get(ctx, uid)
	if err != nil {
		if user.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: profile not found", ErrNotFound)
		}
		return "", err
	}
	if p.Subscription.SubscriptionID != "" && p.Subscription.EffectiveTier(s.clock.Now()) != PlanFree {
		return "", fmt.Errorf("%w: already subscribed, use the billing portal to change plan", ErrBadRequest)
	}
	customerID, err := s.ensureCustomer(ctx, p)
	if err != nil {
		return "", err
	}

	meta := map[string]string{"uid": uid, "plan": input.Plan}
	subData := &stripe.CheckoutSessionSubscriptionDataParams{Metadata: meta}
	if days := s.trialDays(p); days > 0 {
		subData.TrialPeriodDays = stripe.Int64(days)
	}

	session, err := checkoutsession.New(&stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(input.SuccessURL),
		CancelURL:         stripe.String(input.CancelURL),
		ClientReferenceID: stripe.String(uid),
		Metadata:          meta,
		SubscriptionData:  subData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}

func (s *Service) CreatePortalSession(ctx context.Context, uid string, input CreatePortalInput) (string, error) {
	if err := s.requireStripe(); err != nil {
		return "", err
	}
	input.Trim()
	if input.ReturnURL == "" {
		return "", fmt.Errorf("%w: returnUrl is required", ErrBadRequest)
	}
	p, err := s.users.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if p.Subscription.StripeCustomerID == "" {
		return "", fmt.Errorf("%w: no billing account found", ErrBadRequest)
	}
	session, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(p.Subscription.StripeCustomerID),
		ReturnURL: stripe.String(input.ReturnURL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return session.URL, nil
}

func (s *Service) GetSubscriptionInfo(ctx context.Context, uid string) (*SubscriptionInfo, error) {
	p, err := s.users.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	sub := p.Subscription
	plan := sub.Tier
	if plan == "" {
		plan = PlanFree
	}
	status := sub.Status
	if status == "" {
		status = "none"
	}
	effective := sub.EffectiveTier(s.clock.Now())

	info := &SubscriptionInfo{
		Plan:               plan,
		EffectivePlan:      effective,
		Status:             status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Usage:              s.limits.Usage(ctx, uid, effective),
		ReferralCode:       p.ReferralCode,
		ReferralCount:      p.ReferralCount,
		PendingCreditCents: p.PendingCreditCents,
		TrialEligible:      s.trialDays(p) > 0,
	}
	if !sub.EndsAt.IsZero() {
		end := sub.EndsAt
		info.PeriodEnd = &end
	}
	return info, nil
}

func (s *Service) setCancelAtPeriodEnd(ctx context.Context, uid string, cancel bool) error {
	if err := s.requireStripe(); err != nil {
		return err
	}
	p, err := s.users.Get(ctx, uid)
	if err != nil {
		return err
	}
	if p.Subscription.SubscriptionID == "" {
		return fmt.Errorf("%w: no subscription found", ErrBadRequest)
	}
	if _, err := subscription.Update(p.Subscription.SubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	}); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if err := s.users.Update(ctx, uid, map[string]interface{}{"subscription.cancelAtPeriodEnd": cancel}); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("failed to update cancelAtPeriodEnd")
	}
	return nil
}

// CancelSubscription cancels at the end of the paid period.
func (s *Service) CancelSubscription(ctx context.Context, uid string) error {
	return s.setCancelAtPeriodEnd(ctx, uid, true)
}

func (s *Service) ResumeSubscription(ctx context.Context, uid string) error {
	return s.setCancelAtPeriodEnd(ctx, uid, false)
}

// SweepLapsed moves users whose canceled subscription has ended back to the
// free tier. It returns how many profiles changed.
func (s *Service) SweepLapsed(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	lapsed, err := s.users.ListLapsed(ctx, now)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range lapsed {
		if err := s.users.Update(ctx, p.UID, map[string]interface{}{
			"subscription.tier":              PlanFree,
			"subscription.cancelAtPeriodEnd": false,
		}); err != nil {
			log.Warn().Err(err).Str("uid", p.UID).Msg("sweep: failed to downgrade")
			continue
		}
		s.recordSubscriptionEvent(ctx, p.UID, SubscriptionEvent{
			Type:           "subscription_lapsed",
			SubscriptionID: p.Subscription.SubscriptionID,
			Status:         p.Subscription.Status,
			Plan:           PlanFree,
			CreatedAt:      now,
		})
		n++
	}
	return n, nil
}

func (s *Service) userCol(uid, name string) *firestore.CollectionRef {
	return s.fs.Collection("users").Doc(uid).Collection(name)
}

func (s *Service) recordSubscriptionEvent(ctx context.Context, uid string, event SubscriptionEvent) {
	ref := s.userCol(uid, "subscriptionEvents").NewDoc()
	event.ID = ref.ID
	if _, err := ref.Set(ctx, event); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("failed to record subscription event")
	}
}

// paymentDocID keys a payment by invoice and outcome so a redelivered
// webhook overwrites its own record.
func paymentDocID(p Payment) string {
	if p.InvoiceID == "" {
		return ""
	}
	return p.InvoiceID + "_" + p.Status
}

func (s *Service) recordPayment(ctx context.Context, uid string, p Payment) error {
	col := s.userCol(uid, "payments")
	ref := col.NewDoc()
	if id := paymentDocID(p); id != "" {
		ref = col.Doc(id)
	}
	p.ID = ref.ID
	if _, err := ref.Set(ctx, p); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

func unixUTC(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lapizarra/backend/internal/domain/user"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// HandleWebhook processes incoming Stripe webhooks
func (s *Service) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().Err(err).Msg("webhook: error reading request body")
		http.Error(w, "Error reading request body", http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.config.WebhookSecret)
	if err != nil {
		log.Warn().Err(err).Msg("webhook: signature verification failed")
		http.Error(w, "Webhook signature verification failed", http.StatusBadRequest)
		return
	}

	log.Info().Str("type", string(event.Type)).Str("id", event.ID).Msg("webhook: received event")

	if err := s.handleEvent(r.Context(), event); err != nil {
		if IsErrBadRequest(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// acknowledge anyway so Stripe does not retry a poison event forever
		log.Error().Err(err).Str("type", string(event.Type)).Str("id", event.ID).Msg("webhook: handler failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received": true}`))
}

func decodeObject(event stripe.Event, v interface{}) error {
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: error parsing webhook JSON: %v", ErrBadRequest, err)
	}
	return nil
}

func (s *Service) handleEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := decodeObject(event, &session); err != nil {
			return err
		}
		return s.handleCheckoutCompleted(ctx, &session)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return s.handleSubscriptionChanged(ctx, string(event.Type), &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := decodeObject(event, &invoice); err != nil {
			return err
		}
		return s.handlePaymentSucceeded(ctx, &invoice)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := decodeObject(event, &invoice); err != nil {
			return err
		}
		return s.handlePaymentFailed(ctx, &invoice)

	default:
		log.Debug().Str("type", string(event.Type)).Msg("webhook: unhandled event type")
		return nil
	}
}

// findOwner resolves the user a Stripe object belongs to: metadata uid
// first, then the stored subscription id, then the customer id.
func (s *Service) findOwner(ctx context.Context, metaUID, subscriptionID, customerID string) (*user.Profile, error) {
	if metaUID != "" {
		if p, err := s.users.Get(ctx, metaUID); err == nil {
			return p, nil
		}
	}
	if subscriptionID != "" {
		if p, err := s.users.FindBySubscription(ctx, subscriptionID); err == nil {
			return p, nil
		}
	}
	if customerID != "" {
		if p, err := s.users.FindByStripeCustomer(ctx, customerID); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no user for subscription=%s customer=%s", ErrNotFound, subscriptionID, customerID)
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	uid := session.Metadata["uid"]
	if uid == "" {
		uid = session.ClientReferenceID
	}
	if uid == "" {
		return fmt.Errorf("missing uid in checkout metadata")
	}
	log.Info().Str("uid", uid).Str("subscription", subscriptionID(session.Subscription)).Msg("webhook: checkout completed")

	// subscription.created fills in the rest
	return s.users.Update(ctx, uid, map[string]interface{}{
		"subscription.stripeCustomerId": customerID(session.Customer),
		"subscription.subscriptionId":   subscriptionID(session.Subscription),
	})
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, eventType string, sub *stripe.Subscription) error {
	owner, err := s.findOwner(ctx, sub.Metadata["uid"], sub.ID, customerID(sub.Customer))
	if err != nil {
		return err
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}
	plan := s.GetPlanFromPriceID(priceID)
	periodEnd := unixUTC(sub.CurrentPeriodEnd)

	log.Info().Str("uid", owner.UID).Str("plan", plan).Str("status", string(sub.Status)).
		Bool("cancelAtPeriodEnd", sub.CancelAtPeriodEnd).Msg("webhook: subscription changed")

	fields := map[string]interface{}{
		"subscription.tier":              plan,
		"subscription.status":            string(sub.Status),
		"subscription.subscriptionId":    sub.ID,
		"subscription.priceId":           priceID,
		"subscription.endsAt":            periodEnd,
		"subscription.cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		"subscription.stripeCustomerId":  customerID(sub.Customer),
	}
	if owner.Subscription.StartedAt.IsZero() {
		fields["subscription.startedAt"] = unixUTC(sub.StartDate)
	}
	if err := s.users.Update(ctx, owner.UID, fields); err != nil {
		return err
	}

	s.recordSubscriptionEvent(ctx, owner.UID, SubscriptionEvent{
		Type:              eventType,
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		Plan:              plan,
		PriceID:           priceID,
		PeriodEnd:         periodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CreatedAt:         s.clock.Now().UTC(),
	})
	return nil
}

// handleSubscriptionDeleted keeps the paid tier until the period end; the
// sweep job downgrades the profile afterwards.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	owner, err := s.findOwner(ctx, sub.Metadata["uid"], sub.ID, customerID(sub.Customer))
	if err != nil {
		return err
	}
	log.Info().Str("uid", owner.UID).Msg("webhook: subscription deleted")

	endsAt := unixUTC(sub.CurrentPeriodEnd)
	if endsAt.IsZero() || sub.EndedAt != 0 {
		endsAt = unixUTC(sub.EndedAt)
	}
	fields := map[string]interface{}{
		"subscription.status":            "canceled",
		"subscription.endsAt":            endsAt,
		"subscription.cancelAtPeriodEnd": false,
	}
	if !endsAt.After(s.clock.Now()) {
		fields["subscription.tier"] = PlanFree
	}
	if err := s.users.Update(ctx, owner.UID, fields); err != nil {
		return err
	}

	s.recordSubscriptionEvent(ctx, owner.UID, SubscriptionEvent{
		Type:           "customer.subscription.deleted",
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		Plan:           owner.Subscription.Tier,
		PeriodEnd:      endsAt,
		CreatedAt:      s.clock.Now().UTC(),
	})
	return nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil // not a subscription invoice
	}
	owner, err := s.findOwner(ctx, invoice.Metadata["uid"], invoice.Subscription.ID, customerID(invoice.Customer))
	if err != nil {
		return err
	}
	log.Info().Str("uid", owner.UID).Int64("amount", invoice.AmountPaid).Msg("webhook: payment succeeded")

	if err := s.recordPayment(ctx, owner.UID, Payment{
		InvoiceID:      invoice.ID,
		SubscriptionID: invoice.Subscription.ID,
		Amount:         invoice.AmountPaid,
		Currency:       string(invoice.Currency),
		Status:         "succeeded",
		InvoiceURL:     invoice.HostedInvoiceURL,
		InvoicePDF:     invoice.InvoicePDF,
		CreatedAt:      s.clock.Now().UTC(),
	}); err != nil {
		return err
	}

	if invoice.AmountPaid > 0 && owner.ReferredBy != "" && !owner.ReferralRewarded {
		s.rewardReferrer(ctx, owner, invoice.ID)
	}
	return nil
}

// rewardReferrer credits the referrer once, on the referred user's first
// paid invoice. The credit goes to the referrer's Stripe balance, or is
// kept as pending until they become a customer.
func (s *Service) rewardReferrer(ctx context.Context, referred *user.Profile, invoiceID string) {
	claimed, err := s.users.ClaimReferralReward(ctx, referred.UID)
	if err != nil || !claimed {
		if err != nil {
			log.Warn().Err(err).Str("uid", referred.UID).Msg("referral reward claim failed")
		}
		return
	}
	referrer, err := s.users.Get(ctx, referred.ReferredBy)
	if err != nil {
		log.Warn().Err(err).Str("referrer", referred.ReferredBy).Msg("referrer not found")
		return
	}

	cents := s.config.ReferralCreditCents
	applied := "pending"
	if referrer.Subscription.StripeCustomerID != "" {
		if err := s.creditBalance(referrer.Subscription.StripeCustomerID, cents, "Referral credit"); err != nil {
			log.Warn().Err(err).Str("referrer", referrer.UID).Msg("stripe balance credit failed, keeping as pending")
		} else {
			applied = "stripe_balance"
		}
	}
	if applied == "pending" {
		if err := s.users.Update(ctx, referrer.UID, map[string]interface{}{
			"pendingCreditCents": firestore.Increment(cents),
		}); err != nil {
			log.Error().Err(err).Str("referrer", referrer.UID).Msg("failed to store pending referral credit")
			return
		}
	}

	ref := s.userCol(referrer.UID, "referralCredits").NewDoc()
	if _, err := ref.Set(ctx, ReferralCredit{
		ReferredUID: referred.UID,
		AmountCents: cents,
		Applied:     applied,
		InvoiceID:   invoiceID,
		CreatedAt:   s.clock.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to record referral credit")
	}
	log.Info().Str("referrer", referrer.UID).Str("referred", referred.UID).Str("applied", applied).Msg("referral rewarded")
}

func (s *Service) handlePaymentFailed(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	owner, err := s.findOwner(ctx, invoice.Metadata["uid"], invoice.Subscription.ID, customerID(invoice.Customer))
	if err != nil {
		log.Warn().Err(err).Msg("webhook: payment failed for unknown user")
		return nil
	}
	log.Info().Str("uid", owner.UID).Int64("amount", invoice.AmountDue).Msg("webhook: payment failed")

	if err := s.recordPayment(ctx, owner.UID, Payment{
		InvoiceID:      invoice.ID,
		SubscriptionID: invoice.Subscription.ID,
		Amount:         invoice.AmountDue,
		Currency:       string(invoice.Currency),
		Status:         "failed",
		InvoiceURL:     invoice.HostedInvoiceURL,
		CreatedAt:      s.clock.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Msg("webhook: failed to record payment")
	}

	return s.users.Update(ctx, owner.UID, map[string]interface{}{
		"subscription.status": "past_due",
	})
}

// Plans exposes the plan catalog for the pricing page.
func (s *Service) Plans() map[string]Plan {
	return s.plans.Plans
}

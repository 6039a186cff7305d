package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lapizarra/backend/internal/config"
	"lapizarra/backend/internal/domain/user"

	"github.com/jonboulle/clockwork"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	if c.Limit(PlanFree, ResourceTeams) != 1 {
		t.Errorf("free teams = %d", c.Limit(PlanFree, ResourceTeams))
	}
	if c.Limit(PlanClub, ResourceSessions) != -1 {
		t.Errorf("club sessions should be unlimited")
	}
	if c.Limit("enterprise", ResourceTeams) != c.Limit(PlanFree, ResourceTeams) {
		t.Errorf("unknown plan should fall back to free")
	}
	if c.Limit(PlanFree, "widgets") != -1 {
		t.Errorf("unknown resource should be unlimited")
	}
}

func TestParseCatalogErrors(t *testing.T) {
	if _, err := ParseCatalog([]byte("plans:\n  pro:\n    limits: {teams: 1, sessions: 1, privateExercises: 1}\n")); err == nil {
		t.Error("missing free plan accepted")
	}
	if _, err := ParseCatalog([]byte("plans:\n  free:\n    limits: {teams: 1}\n")); err == nil {
		t.Error("missing limit accepted")
	}
	if _, err := ParseCatalog([]byte("plans: [")); err == nil {
		t.Error("bad yaml accepted")
	}
}

func TestCheckLimit(t *testing.T) {
	if err := checkLimit("teams", 0, 1); err != nil {
		t.Error(err)
	}
	if err := checkLimit("teams", 1, 1); !IsErrLimitReached(err) {
		t.Errorf("at limit: %v", err)
	}
	if err := checkLimit("teams", 99, -1); err != nil {
		t.Errorf("unlimited: %v", err)
	}
	if remaining(3, 10) != 7 || remaining(12, 10) != 0 || remaining(5, -1) != -1 {
		t.Error("remaining")
	}
}

type fakeProfiles map[string]*user.Profile

func (f fakeProfiles) Get(_ context.Context, uid string) (*user.Profile, error) {
	if p, ok := f[uid]; ok {
		return p, nil
	}
	return nil, user.ErrNotFound
}

type fakeCounter map[string]int

func (f fakeCounter) Count(_ context.Context, _ string, resource string) (int, error) {
	return f[resource], nil
}

func TestLimiter(t *testing.T) {
	plans, err := DefaultCatalog()
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	profiles := fakeProfiles{
		"free": {UID: "free", Subscription: user.Subscription{Tier: PlanFree}},
		"pro":  {UID: "pro", Subscription: user.Subscription{Tier: PlanPro, Status: "active"}},
		"lapsed": {UID: "lapsed", Subscription: user.Subscription{
			Tier: PlanPro, Status: "canceled", EndsAt: now.Add(-time.Hour),
		}},
	}
	counter := fakeCounter{ResourceTeams: 1, ResourceSessions: 4, ResourcePrivateExercises: 20}
	l := NewLimiter(plans, profiles, counter, clockwork.NewFakeClockAt(now))
	ctx := context.Background()

	if err := l.CheckPlanLimit(ctx, "free", ResourceTeams); !IsErrLimitReached(err) {
		t.Errorf("free second team: %v", err)
	}
	if err := l.CheckPlanLimit(ctx, "pro", ResourceTeams); err != nil {
		t.Errorf("pro second team: %v", err)
	}
	if err := l.CheckPlanLimit(ctx, "lapsed", ResourceTeams); !IsErrLimitReached(err) {
		t.Errorf("lapsed subscription should use free limits: %v", err)
	}
	if err := l.CheckPlanLimit(ctx, "nobody", ResourceSessions); err != nil {
		t.Errorf("unknown user on free plan: %v", err)
	}

	if n, _ := l.Remaining(ctx, "free", ResourceSessions); n != 6 {
		t.Errorf("free remaining sessions = %d", n)
	}
	if n, _ := l.Remaining(ctx, "pro", ResourcePrivateExercises); n != -1 {
		t.Errorf("pro remaining exercises = %d", n)
	}

	usage := l.Usage(ctx, "free", PlanFree)
	if usage[ResourceSessions] != (ResourceUsage{Current: 4, Limit: 10}) {
		t.Errorf("usage = %+v", usage)
	}
}

func testService() *Service {
	plans, _ := DefaultCatalog()
	return &Service{
		plans: plans,
		clock: clockwork.NewFakeClock(),
		config: config.StripeConfig{
			SecretKey:         "sk_test_x",
			WebhookSecret:     "whsec_test",
			PriceProMonthly:   "price_pro_m",
			PriceProYearly:    "price_pro_y",
			PriceClubMonthly:  "price_club_m",
			ReferralTrialDays: 14,
		},
	}
}

func TestPrices(t *testing.T) {
	s := testService()
	if id, err := s.PriceFor(PlanPro, "yearly"); err != nil || id != "price_pro_y" {
		t.Errorf("pro yearly = %q, %v", id, err)
	}
	if _, err := s.PriceFor(PlanClub, "yearly"); !IsErrBadRequest(err) {
		t.Errorf("unconfigured price: %v", err)
	}
	if _, err := s.PriceFor("gold", "monthly"); !IsErrBadRequest(err) {
		t.Errorf("bad plan: %v", err)
	}
	if _, err := s.PriceFor(PlanPro, "weekly"); !IsErrBadRequest(err) {
		t.Errorf("bad period: %v", err)
	}

	if s.GetPlanFromPriceID("price_club_m") != PlanClub || s.GetPlanFromPriceID("price_other") != PlanFree {
		t.Error("GetPlanFromPriceID")
	}
}

func TestTrialDays(t *testing.T) {
	s := testService()
	tests := []struct {
		name string
		p    user.Profile
		want int64
	}{
		{"not referred", user.Profile{}, 0},
		{"referred newcomer", user.Profile{ReferredBy: "r1"}, 14},
		{"referred with subscription", user.Profile{ReferredBy: "r1", Subscription: user.Subscription{SubscriptionID: "sub_1"}}, 0},
		{"referred former subscriber", user.Profile{ReferredBy: "r1", Subscription: user.Subscription{StartedAt: time.Now()}}, 0},
	}
	for _, tt := range tests {
		if got := s.trialDays(&tt.p); got != tt.want {
			t.Errorf("%s: trialDays = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRequireStripe(t *testing.T) {
	s := &Service{}
	if _, err := s.CreateCheckoutSession(context.Background(), "u1", CreateCheckoutInput{Plan: "pro", Period: "monthly"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestWebhookSignature(t *testing.T) {
	s := testService()

	req := httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec := httptest.NewRecorder()
	s.HandleWebhook(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad signature status = %d", rec.Code)
	}

	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"customer.created","api_version":%q,"data":{"object":{}}}`, stripe.APIVersion))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", strings.NewReader(string(signed.Payload)))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec = httptest.NewRecorder()
	s.HandleWebhook(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("ignored event status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPaymentDocID(t *testing.T) {
	ok := Payment{InvoiceID: "in_123", Status: "succeeded"}
	if paymentDocID(ok) != paymentDocID(ok) || paymentDocID(ok) != "in_123_succeeded" {
		t.Errorf("succeeded id = %q", paymentDocID(ok))
	}
	failed := Payment{InvoiceID: "in_123", Status: "failed"}
	if paymentDocID(failed) == paymentDocID(ok) {
		t.Error("failed and succeeded attempts share a record")
	}
	if paymentDocID(Payment{Status: "succeeded"}) != "" {
		t.Error("payment without invoice should get a generated id")
	}
}

func TestCustomerParamsIdempotent(t *testing.T) {
	p := &user.Profile{UID: "coach", Email: "coach@club.es", DisplayName: "Coach"}
	a, b := customerParams(p), customerParams(p)
	if a.IdempotencyKey == nil || *a.IdempotencyKey != "customer-coach" {
		t.Fatalf("idempotency key = %v", a.IdempotencyKey)
	}
	if *a.IdempotencyKey != *b.IdempotencyKey {
		t.Error("keys differ between attempts")
	}
	if a.Metadata["uid"] != "coach" {
		t.Errorf("metadata = %v", a.Metadata)
	}
}

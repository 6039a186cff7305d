package user

import (
	"strings"
	"testing"
	"time"
)

func TestToggle(t *testing.T) {
	list, on := toggle(nil, "e1")
	if !on || len(list) != 1 {
		t.Fatalf("add: %v %v", list, on)
	}
	list, on = toggle([]string{"e1", "e2", "e3"}, "e2")
	if on || strings.Join(list, ",") != "e1,e3" {
		t.Fatalf("remove: %v %v", list, on)
	}
	list, _ = toggle(list, "e2")
	list, _ = toggle(list, "e2")
	if strings.Join(list, ",") != "e1,e3" {
		t.Errorf("double toggle changed list: %v", list)
	}
}

func TestEffectiveTier(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		sub  Subscription
		want string
	}{
		{"empty", Subscription{}, TierFree},
		{"active pro", Subscription{Tier: "pro", Status: "active"}, "pro"},
		{"trialing club", Subscription{Tier: "club", Status: "trialing"}, "club"},
		{"canceled in period", Subscription{Tier: "pro", Status: "canceled", EndsAt: now.Add(time.Hour)}, "pro"},
		{"canceled lapsed", Subscription{Tier: "pro", Status: "canceled", EndsAt: now.Add(-time.Hour)}, TierFree},
		{"past due grace", Subscription{Tier: "pro", Status: "past_due", EndsAt: now.Add(24 * time.Hour)}, "pro"},
		{"unpaid", Subscription{Tier: "pro", Status: "unpaid", EndsAt: now.Add(24 * time.Hour)}, TierFree},
		{"incomplete", Subscription{Tier: "pro", Status: "incomplete"}, TierFree},
	}
	for _, tt := range tests {
		if got := tt.sub.EffectiveTier(now); got != tt.want {
			t.Errorf("%s: EffectiveTier = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		c := newReferralCode()
		if len(c) != ReferralCodeLen {
			t.Fatalf("len(%q) = %d", c, len(c))
		}
		for _, r := range c {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q has %q", c, r)
			}
		}
		seen[c] = true
	}
	if len(seen) < 195 {
		t.Errorf("too many collisions: %d unique of 200", len(seen))
	}
	if NormalizeCode(" abcd-efgh ") != "ABCDEFGH" {
		t.Errorf("NormalizeCode = %q", NormalizeCode(" abcd-efgh "))
	}
}

package config

import (
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "lapizarra-dev")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://app.lapizarra.es ,")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.StorageBucket != "lapizarra-dev.appspot.com" {
		t.Errorf("StorageBucket = %q", cfg.StorageBucket)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://app.lapizarra.es" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.AutosaveInterval != 15*time.Second {
		t.Errorf("AutosaveInterval = %v", cfg.AutosaveInterval)
	}
	if cfg.Stripe.Enabled() {
		t.Error("stripe should be disabled without a secret key")
	}
	if cfg.Stripe.ReferralCreditCents != 500 {
		t.Errorf("ReferralCreditCents = %d", cfg.Stripe.ReferralCreditCents)
	}
}

func TestParse_ProjectFallback(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "gcp-project")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ProjectID != "gcp-project" {
		t.Errorf("ProjectID = %q", cfg.ProjectID)
	}
}

func TestParse_MissingProject(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error without project id")
	}
}

func TestParse_BadLogFormat(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "p")
	t.Setenv("LOG_FORMAT", "xml")

	if _, err := Parse(); err == nil {
		t.Fatal("expected error for LOG_FORMAT=xml")
	}
}

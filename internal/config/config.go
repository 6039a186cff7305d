package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID                    string   `env:"FIREBASE_PROJECT_ID"`
	Port                         string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins               []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	StorageBucket                string   `env:"FIREBASE_STORAGE_BUCKET"`
	ServiceAccountJSON           string   `env:"FIREBASE_SERVICE_ACCOUNT_JSON"`
	SignedURLServiceAccountEmail string   `env:"SIGNED_URL_SERVICE_ACCOUNT_EMAIL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	AutosaveInterval      time.Duration `env:"AUTOSAVE_INTERVAL" envDefault:"15s"`
	SubscriptionSweepCron string        `env:"SUBSCRIPTION_SWEEP_CRON" envDefault:"0 3 * * *"`

	Stripe StripeConfig
}

type StripeConfig struct {
	SecretKey           string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret       string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceProMonthly     string `env:"STRIPE_PRICE_PRO_MONTHLY"`
	PriceProYearly      string `env:"STRIPE_PRICE_PRO_YEARLY"`
	PriceClubMonthly    string `env:"STRIPE_PRICE_CLUB_MONTHLY"`
	PriceClubYearly     string `env:"STRIPE_PRICE_CLUB_YEARLY"`
	Currency            string `env:"STRIPE_CURRENCY" envDefault:"eur"`
	ReferralCreditCents int64  `env:"REFERRAL_CREDIT_CENTS" envDefault:"500"`
	ReferralTrialDays   int64  `env:"REFERRAL_TRIAL_DAYS" envDefault:"14"`
}

// Enabled reports whether billing is configured.
func (c StripeConfig) Enabled() bool { return c.SecretKey != "" }

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}
	return Parse()
}

// Parse builds the config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ProjectID == "" {
		cfg.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if cfg.StorageBucket == "" && cfg.ProjectID != "" {
		cfg.StorageBucket = cfg.ProjectID + ".appspot.com"
	}

	allowed := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	cfg.AllowedOrigins = allowed

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("missing FIREBASE_PROJECT_ID or GOOGLE_CLOUD_PROJECT")
	}
	if c.AutosaveInterval < time.Second {
		return errors.New("AUTOSAVE_INTERVAL must be at least 1s")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT: %s", c.LogFormat)
	}
	return nil
}

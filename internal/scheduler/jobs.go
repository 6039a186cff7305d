package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	AutosaveJob = "match_autosave"
	SweepJob    = "subscription_sweep"
)

type Flusher interface {
	FlushDirty(ctx context.Context) error
}

type Sweeper interface {
	SweepLapsed(ctx context.Context) (int, error)
}

// RegisterAutosave flushes dirty live match boards every interval.
func RegisterAutosave(s *Service, matches Flusher, interval time.Duration) error {
	_, err := s.Every(AutosaveJob, interval, interval+10*time.Second, matches.FlushDirty)
	return err
}

// RegisterSubscriptionSweep downgrades lapsed subscriptions on cronExpr.
func RegisterSubscriptionSweep(s *Service, billing Sweeper, cronExpr string) error {
	_, err := s.Cron(SweepJob, cronExpr, 5*time.Minute, func(ctx context.Context) error {
		n, err := billing.SweepLapsed(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Ctx(ctx).Info().Int("downgraded", n).Msg("lapsed subscriptions moved to free")
		}
		return nil
	})
	return err
}

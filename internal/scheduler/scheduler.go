package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyJobName  = errors.New("job name is required")
	ErrEmptyCronExpr = errors.New("cron expression is required")
	ErrBadInterval   = errors.New("interval must be positive")
)

// Service wraps a gocron scheduler. Every job runs in singleton mode so a
// slow run is never overlapped by the next tick.
type Service struct {
	scheduler gocron.Scheduler
	stopOnce  sync.Once
	stopErr   error
}

// New builds a scheduler. clock may be nil.
func New(clock clockwork.Clock) (*Service, error) {
	opts := []gocron.SchedulerOption{
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					log.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("scheduler job panicked")
				}),
			),
		),
	}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched}, nil
}

func (s *Service) Start() {
	log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("scheduler starting")
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		log.Info().Msg("scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// Every registers task to run at a fixed interval.
func (s *Service) Every(name string, interval time.Duration, timeout time.Duration, task func(ctx context.Context) error) (gocron.Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if interval <= 0 {
		return nil, ErrBadInterval
	}
	return s.add(name, gocron.DurationJob(interval), timeout, task)
}

// Cron registers task on a five-field cron expression.
func (s *Service) Cron(name, cronExpr string, timeout time.Duration, task func(ctx context.Context) error) (gocron.Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}
	return s.add(name, gocron.CronJob(cronExpr, false), timeout, task)
}

func (s *Service) add(name string, def gocron.JobDefinition, timeout time.Duration, task func(ctx context.Context) error) (gocron.Job, error) {
	jobLogger := log.With().Str("job_name", name).Logger()

	wrapped := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)
		if err := task(ctx); err != nil {
			jobLogger.Error().Err(err).Msg("scheduler job failed")
		}
	}

	job, err := s.scheduler.NewJob(def, gocron.NewTask(wrapped), gocron.WithName(name))
	if err != nil {
		jobLogger.Error().Err(err).Msg("failed to register scheduler job")
		return nil, err
	}
	jobLogger.Info().Msg("scheduler job registered")
	return job, nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lapizarra/backend/internal/config"
	"lapizarra/backend/internal/domain/admin"
	"lapizarra/backend/internal/domain/attendance"
	"lapizarra/backend/internal/domain/exercise"
	"lapizarra/backend/internal/domain/match"
	"lapizarra/backend/internal/domain/members"
	"lapizarra/backend/internal/domain/notifications"
	"lapizarra/backend/internal/domain/session"
	"lapizarra/backend/internal/domain/stats"
	stripedom "lapizarra/backend/internal/domain/stripe"
	"lapizarra/backend/internal/domain/team"
	"lapizarra/backend/internal/domain/user"
	"lapizarra/backend/internal/firebase"
	apihttp "lapizarra/backend/internal/http"
	"lapizarra/backend/internal/live"
	"lapizarra/backend/internal/logging"
	"lapizarra/backend/internal/media"
	"lapizarra/backend/internal/scheduler"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("api exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	clock := clockwork.NewRealClock()

	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	authClient, err := firebase.NewAuthClient(ctx, app)
	if err != nil {
		return err
	}
	fs, err := firebase.NewFirestore(ctx, app)
	if err != nil {
		return err
	}
	defer fs.Close()

	storageClient, err := firebase.NewStorage(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("storage client unavailable, media uploads disabled")
	}
	signer := media.NewSigner(ctx, cfg, storageClient)
	defer signer.Close()

	// Repositories
	userRepo := user.NewRepo(fs.Client)
	teamRepo := team.NewRepo(fs.Client, clock)

	// Services
	exerciseSvc := exercise.NewService(exercise.NewRepo(fs.Client), signer)
	userSvc := user.NewService(userRepo, exerciseSvc, authClient)
	teamSvc := team.NewService(teamRepo)
	matchSvc := match.NewService(match.NewRepo(fs.Client, clock), teamRepo, clock)
	sessionSvc := session.NewService(session.NewRepo(fs.Client), exerciseSvc, teamSvc, clock)
	attendanceSvc := attendance.NewService(attendance.NewRepo(fs.Client), teamSvc, clock)
	statsSvc := stats.NewService(teamSvc, attendanceSvc, matchSvc, clock)
	notificationsSvc := notifications.NewService(fs.Client, firebase.NewMessaging(ctx, app), userRepo, clock)
	invitationSvc := members.NewService(members.NewRepo(fs.Client), teamSvc, userRepo, notificationsSvc, clock)
	adminSvc := admin.NewService(authClient, userSvc, clock)

	plans, err := stripedom.DefaultCatalog()
	if err != nil {
		return err
	}
	limiter := stripedom.NewLimiter(plans, userRepo, stripedom.NewFirestoreCounter(fs.Client), clock)
	billingSvc := stripedom.NewService(fs.Client, userRepo, limiter, plans, cfg.Stripe, clock)
	if !cfg.Stripe.Enabled() {
		log.Warn().Msg("STRIPE_SECRET_KEY not set, checkout and webhooks disabled")
	}

	// Plan limits apply whether or not Stripe is configured.
	teamSvc.SetLimiter(limiter)
	exerciseSvc.SetLimiter(limiter)
	sessionSvc.SetLimiter(limiter)

	hub := live.NewHub(live.DefaultConfig(cfg.AllowedOrigins))
	matchSvc.SetPublisher(hub)

	sched, err := scheduler.New(clock)
	if err != nil {
		return err
	}
	if err := scheduler.RegisterAutosave(sched, matchSvc, cfg.AutosaveInterval); err != nil {
		return err
	}
	if err := scheduler.RegisterSubscriptionSweep(sched, billingSvc, cfg.SubscriptionSweepCron); err != nil {
		return err
	}

	router := apihttp.NewRouter(apihttp.RouterDeps{
		Cfg:           cfg,
		Logger:        log.Logger,
		Verifier:      authClient,
		Users:         userSvc,
		Exercises:     exerciseSvc,
		Teams:         teamSvc,
		Invitations:   invitationSvc,
		Sessions:      sessionSvc,
		Matches:       matchSvc,
		Attendance:    attendanceSvc,
		Stats:         statsSvc,
		Notifications: notificationsSvc,
		Billing:       billingSvc,
		Admin:         adminSvc,
		Live:          hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("project", cfg.ProjectID).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Stop()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		hub.Close()
		err := srv.Shutdown(shutdownCtx)
		if ferr := matchSvc.FlushDirty(shutdownCtx); ferr != nil {
			log.Error().Err(ferr).Msg("final match flush failed")
		}
		return err
	})

	return g.Wait()
}

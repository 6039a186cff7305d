package firebase

import (
	"context"
	"os"

	"lapizarra/backend/internal/config"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func clientOptions(cfg config.Config) []option.ClientOption {
	// Prefer FIREBASE_SERVICE_ACCOUNT_JSON (raw json content), then
	// GOOGLE_APPLICATION_CREDENTIALS, then ambient credentials on Cloud Run.
	opts := []option.ClientOption{}
	if cfg.ServiceAccountJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	} else if cred := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); cred != "" {
		opts = append(opts, option.WithCredentialsFile(cred))
	}
	return opts
}

func NewApp(ctx context.Context, cfg config.Config) (*firebase.App, error) {
	appCfg := &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}
	return firebase.NewApp(ctx, appCfg, clientOptions(cfg)...)
}

func NewAuthClient(ctx context.Context, app *firebase.App) (*auth.Client, error) {
	return app.Auth(ctx)
}

// NewMessaging returns nil when FCM is not available for the project;
// push notifications are then skipped.
func NewMessaging(ctx context.Context, app *firebase.App) *messaging.Client {
	msg, err := app.Messaging(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("firebase messaging unavailable, push disabled")
		return nil
	}
	return msg
}

func NewStorage(ctx context.Context, cfg config.Config) (*storage.Client, error) {
	return storage.NewClient(ctx, clientOptions(cfg)...)
}

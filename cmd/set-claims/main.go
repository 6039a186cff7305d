package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"lapizarra/backend/internal/config"
	"lapizarra/backend/internal/domain/admin"
	"lapizarra/backend/internal/domain/user"
	"lapizarra/backend/internal/firebase"
	"lapizarra/backend/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	uid := flag.String("uid", "", "target firebase uid")
	revoke := flag.Bool("revoke", false, "remove the admin claim instead of granting it")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, "console")

	if *uid == "" {
		log.Fatal().Msg("uid is required: -uid=xxxxx")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := firebase.NewApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase app init failed")
	}
	authClient, err := firebase.NewAuthClient(ctx, app)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase auth client init failed")
	}
	fs, err := firebase.NewFirestore(ctx, app)
	if err != nil {
		log.Fatal().Err(err).Msg("firestore init failed")
	}
	defer fs.Close()

	users := user.NewService(user.NewRepo(fs.Client), nil, authClient)
	res, err := admin.NewService(authClient, users, nil).SetAdminClaim(ctx, "", *uid, !*revoke)
	if err != nil {
		log.Fatal().Err(err).Msg("set admin claim failed")
	}

	fmt.Printf("ok: admin=%v for %s\n", res.Admin, res.UID)
}

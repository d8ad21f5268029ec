package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velvetfeed/velvetfeed-backend/api/routes"
	"github.com/velvetfeed/velvetfeed-backend/internal/access"
	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/internal/magiclink"
	"github.com/velvetfeed/velvetfeed-backend/internal/subscriptions"
	paymentwebhook "github.com/velvetfeed/velvetfeed-backend/internal/webhooks/payment"
	"github.com/velvetfeed/velvetfeed-backend/pkg/auth/session"
	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/mailer"
	"github.com/velvetfeed/velvetfeed-backend/pkg/metrics"
	"github.com/velvetfeed/velvetfeed-backend/pkg/migrate"
	"github.com/velvetfeed/velvetfeed-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	accessMetrics := metrics.NewAccessMetrics(prometheus.DefaultRegisterer)

	usersRepo := identity.NewRepository(dbClient.DB())
	adminResolver := identity.NewResolver(cfg.Admin)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Store:         subscriptions.NewRepository(dbClient.DB()),
		Logger:        logg,
		EnforceExpiry: cfg.Access.EnforceExpiry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	engine := access.NewEngine(access.EngineParams{
		Admin:         adminResolver,
		Subscriptions: subscriptionService,
		Cache:         access.NewDecisionCache(redisClient, cfg.Access.CacheTTL, logg),
		Logger:        logg,
		Metrics:       accessMetrics,
		LookupTimeout: cfg.Access.LookupTimeout,
	})

	guard := access.NewGuard(access.GuardParams{
		Engine:   engine,
		Sessions: sessionManager,
		Logger:   logg,
		Metrics:  accessMetrics,
	})

	webhookService, err := paymentwebhook.NewService(paymentwebhook.ServiceParams{
		Ledger:  subscriptionService,
		Users:   usersRepo,
		Webhook: cfg.Webhook,
		App:     cfg.App,
		Logger:  logg,
		Metrics: accessMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	var mailSender mailer.Sender
	if smtp, mailErr := mailer.NewSMTPSender(cfg.Mail); mailErr != nil {
		logg.Warn(context.Background(), "smtp not configured, sign-in links disabled: "+mailErr.Error())
	} else {
		mailSender = smtp
	}

	magicLinkService, err := magiclink.NewService(magiclink.ServiceParams{
		Store:    redisClient,
		Users:    usersRepo,
		Engine:   engine,
		Sessions: sessionManager,
		Mail:     mailSender,
		JWT:      cfg.JWT,
		BaseURL:  cfg.App.BaseURL,
		TokenTTL: cfg.Access.MagicLinkTTL,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create magic link service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			adminResolver,
			engine,
			guard,
			webhookService,
			magicLinkService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velvetfeed/velvetfeed-backend/api/controllers"
	webhookcontrollers "github.com/velvetfeed/velvetfeed-backend/api/controllers/webhooks"
	"github.com/velvetfeed/velvetfeed-backend/api/middleware"
	"github.com/velvetfeed/velvetfeed-backend/internal/access"
	"github.com/velvetfeed/velvetfeed-backend/internal/identity"
	"github.com/velvetfeed/velvetfeed-backend/internal/magiclink"
	"github.com/velvetfeed/velvetfeed-backend/pkg/auth/session"
	"github.com/velvetfeed/velvetfeed-backend/pkg/config"
	"github.com/velvetfeed/velvetfeed-backend/pkg/db"
	"github.com/velvetfeed/velvetfeed-backend/pkg/logger"
	"github.com/velvetfeed/velvetfeed-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager *session.Manager,
	adminResolver *identity.Resolver,
	engine *access.Engine,
	guard *access.Guard,
	webhookService webhookcontrollers.PaymentWebhookService,
	magicLinkService *magiclink.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	sendLinkLimiter := func(next http.Handler) http.Handler { return next }
	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
		sendLinkPolicy := middleware.NewRateLimitPolicy("send_link", 15*time.Minute, 30, 5)
		sendLinkLimiter = middleware.RateLimit(sendLinkPolicy, redisClient, logg)
	}

	var sessionChecker session.AccessSessionChecker
	if sessionManager != nil {
		sessionChecker = sessionManager
	}
	authenticated := middleware.Auth(cfg.JWT, sessionChecker, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", webhookcontrollers.PaymentWebhook(webhookService, logg))
	})

	r.Route("/api/v1/access", func(r chi.Router) {
		r.Post("/status", controllers.AccessStatus(engine, logg))
		r.With(authenticated).Post("/session", controllers.AccessSession(guard, logg))
		r.With(sendLinkLimiter).Post("/send-link", controllers.SendLink(magicLinkService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/status", controllers.AdminStatus(adminResolver, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Get("/callback", controllers.AuthCallback(magicLinkService, logg))
		r.With(authenticated).Post("/logout", controllers.AuthLogout(magicLinkService, logg))
	})

	return r
}

// Package mql4traderai предоставляет маршруты основного приложения.
package mql4traderai

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/aceswin/mql4traderai/internal/http/handlers/auth/login"
	"github.com/aceswin/mql4traderai/internal/http/handlers/auth/register"
	"github.com/aceswin/mql4traderai/internal/http/handlers/generate"
	"github.com/aceswin/mql4traderai/internal/http/handlers/health"
	"github.com/aceswin/mql4traderai/internal/http/handlers/payment/checkoutsession"
	"github.com/aceswin/mql4traderai/internal/http/handlers/payment/paymentwebhook"
	"github.com/aceswin/mql4traderai/internal/http/handlers/usage/reset"
	"github.com/aceswin/mql4traderai/internal/http/middlewarectx"
	"github.com/aceswin/mql4traderai/internal/paymentprovider"
	authservice "github.com/aceswin/mql4traderai/internal/services/auth"
	entitlementservice "github.com/aceswin/mql4traderai/internal/services/entitlement"
	generationservice "github.com/aceswin/mql4traderai/internal/services/generation"
	usageservice "github.com/aceswin/mql4traderai/internal/services/usage"
)

// RouteDeps зависимости маршрутов приложения.
type RouteDeps struct {
	Auth          *authservice.AuthService
	Ingest        *entitlementservice.IngestService
	Generation    *generationservice.GenerationService
	Usage         *usageservice.UsageService
	Provider      *paymentprovider.Client
	WebhookSecret string
	Readiness     health.ReadinessChecker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(rate.Limit(10), 20)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, deps.Auth).ServeHTTP)
		r.Post("/login", login.New(logger, deps.Auth).ServeHTTP)
		r.Get("/health", health.New(logger, deps.Readiness).ServeHTTP)

		// Группа с разрешением идентичности: анонимный трафик допускается
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware(deps.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
			r.Post("/generate", generate.New(logger, deps.Generation).ServeHTTP)
			r.Post("/checkout-session", checkoutsession.New(logger, deps.Provider).ServeHTTP)
		})

		// Группа только для авторизованных
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.IdentityMiddleware(deps.Auth, logger))
			r.Use(middlewarectx.RequireAuthenticated(logger))
			r.Post("/usage/reset", reset.New(logger, deps.Usage).ServeHTTP)
		})

		// Webhook провайдера (подпись вместо аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, deps.Ingest, deps.WebhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

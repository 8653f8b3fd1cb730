// Package mql4traderai собирает основное приложение: хранилище, кеш,
// брокер уведомлений, бизнес-сервисы и HTTP сервер.
package mql4traderai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/aceswin/mql4traderai/internal/cache"
	"github.com/aceswin/mql4traderai/internal/config"
	"github.com/aceswin/mql4traderai/internal/lib/jwt"
	librabbitmq "github.com/aceswin/mql4traderai/internal/lib/rabbitmq"
	"github.com/aceswin/mql4traderai/internal/llmprovider"
	"github.com/aceswin/mql4traderai/internal/migrations"
	"github.com/aceswin/mql4traderai/internal/paymentprovider"
	"github.com/aceswin/mql4traderai/internal/rabbitmq"
	authservice "github.com/aceswin/mql4traderai/internal/services/auth"
	entitlementservice "github.com/aceswin/mql4traderai/internal/services/entitlement"
	generationservice "github.com/aceswin/mql4traderai/internal/services/generation"
	usageservice "github.com/aceswin/mql4traderai/internal/services/usage"
	"github.com/aceswin/mql4traderai/internal/storage/repository"
)

// App основное приложение сервиса генерации советников.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New создает и связывает все зависимости приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher := librabbitmq.NewNotificationPublisher(ch)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.NewAuthService(db, jwtMaker)

	ingestService := entitlementservice.NewIngestService(db, cacheRedis, publisher, logger)

	llmClient := llmprovider.NewClient(cfg.LLMProvider)
	generationService := generationservice.NewGenerationService(db, cacheRedis, llmClient, logger)

	usageService := usageservice.NewUsageService(db, logger)
	providerClient := paymentprovider.NewClient(cfg.PaymentProvider)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteDeps{
		Auth:          authService,
		Ingest:        ingestService,
		Generation:    generationService,
		Usage:         usageService,
		Provider:      providerClient,
		WebhookSecret: cfg.WebhookSecret,
		Readiness: func() error {
			return repository.CheckDatabaseReady(db)
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP сервер и корректно гасит его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.ch.Close(); closeErr != nil {
			a.logger.Error("failed to close broker channel", slog.Any("err", closeErr))
		}
		if closeErr := a.conn.Close(); closeErr != nil {
			a.logger.Error("failed to close broker connection", slog.Any("err", closeErr))
		}
		a.db.DB.Close()
		return err
	}
}

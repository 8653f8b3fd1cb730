// Package services содержит бизнес-логику приема событий платежного провайдера.
//
// Сервис применяет верифицированные события к записи entitlement идемпотентно
// и с защитой от опоздавших событий: повторная доставка и событие старше
// текущего состояния подтверждаются провайдеру, но хранилище не мутируют.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/models"
)

var (
	// ErrDuplicateEvent — событие с таким ID уже обработано; подтверждается без эффекта.
	ErrDuplicateEvent = errors.New("duplicate payment event")
	// ErrStaleEvent — событие старше текущего состояния entitlement; подтверждается без перезаписи.
	ErrStaleEvent = errors.New("stale payment event")
	// ErrMissingIdentity — событие об оплате без customer email; подтверждается и отбрасывается.
	ErrMissingIdentity = errors.New("payment event without customer email")
)

// EntitlementRepository определяет методы хранилища для применения событий.
type EntitlementRepository interface {
	// RecordPaymentEvent фиксирует событие в журнале без изменения entitlement.
	RecordPaymentEvent(ctx context.Context, event models.PaymentEvent) (bool, error)
	// ApplyPaymentEvent транзакционно применяет событие: журнал и CAS-обновление
	// entitlement фиксируются вместе.
	ApplyPaymentEvent(ctx context.Context, event models.PaymentEvent, hasPaid bool) (models.EventOutcome, error)
}

// Cache описывает кеш entitlement. Запись кеша ведет только этот сервис:
// актуальная запись кладется после фиксации транзакции применения события,
// путь генерации кеш лишь читает.
type Cache interface {
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// entitlementCacheTTL время жизни записи entitlement в кеше.
const entitlementCacheTTL = time.Hour

// Notifier публикует уведомление об активации оплаченного доступа.
type Notifier interface {
	PaymentConfirmed(notification models.PaymentConfirmedNotification) error
}

// IngestService применяет события платежного провайдера к entitlement.
type IngestService struct {
	repo     EntitlementRepository
	cache    Cache
	notifier Notifier
	log      *slog.Logger
}

// NewIngestService создает новый экземпляр IngestService.
func NewIngestService(repo EntitlementRepository, cache Cache, notifier Notifier, log *slog.Logger) *IngestService {
	return &IngestService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log,
	}
}

// Ingest обрабатывает одно верифицированное событие провайдера.
//
// События типа other и события без customer email фиксируются в журнале
// дедупликации как обработанные, entitlement не меняется. Повтор и
// опоздавшее событие возвращают ErrDuplicateEvent и ErrStaleEvent —
// вызывающий подтверждает их провайдеру как no-op. Ошибка хранилища
// возвращается как есть, чтобы провайдер повторил доставку.
func (s *IngestService) Ingest(ctx context.Context, event models.PaymentEvent) error {
	const op = "services.entitlement.Ingest"

	if event.Type == models.PaymentOther {
		inserted, err := s.repo.RecordPaymentEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !inserted {
			return ErrDuplicateEvent
		}
		s.log.Info("recorded event without entitlement effect",
			slog.String("event_id", event.ID), slog.String("type", string(event.Type)))
		return nil
	}

	if event.CustomerEmail == "" {
		inserted, err := s.repo.RecordPaymentEvent(ctx, event)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !inserted {
			return ErrDuplicateEvent
		}
		return ErrMissingIdentity
	}

	hasPaid := event.Type == models.PaymentCompleted
	outcome, err := s.repo.ApplyPaymentEvent(ctx, event, hasPaid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch outcome {
	case models.OutcomeDuplicate:
		return ErrDuplicateEvent
	case models.OutcomeStale:
		return ErrStaleEvent
	}

	// Примененное событие строго новее прежнего состояния, поэтому его
	// снимок кладется в кеш как актуальный. При ошибке записи ключ
	// инвалидируется, чтобы устаревшее значение не пережило событие.
	cacheKey := fmt.Sprintf("entitlement:%s", event.CustomerEmail)
	record := models.EntitlementRecord{
		Email:         event.CustomerEmail,
		HasPaid:       hasPaid,
		UpdatedAt:     event.CreatedAt,
		SourceEventID: event.ID,
	}
	if err := s.cache.Set(cacheKey, record, entitlementCacheTTL); err != nil {
		s.log.Warn("failed to refresh entitlement cache", slog.String("key", cacheKey), sl.Err(err))
		if err := s.cache.Invalidate(cacheKey); err != nil {
			s.log.Warn("failed to invalidate entitlement cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}

	if hasPaid {
		notification := models.PaymentConfirmedNotification{
			Email:       event.CustomerEmail,
			EventID:     event.ID,
			ConfirmedAt: event.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if err := s.notifier.PaymentConfirmed(notification); err != nil {
			s.log.Warn("failed to publish payment confirmation", sl.Err(err))
		}
	}

	s.log.Info("payment event applied",
		slog.String("event_id", event.ID),
		slog.String("email", event.CustomerEmail),
		slog.Bool("has_paid", hasPaid))
	return nil
}

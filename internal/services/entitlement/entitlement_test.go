package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aceswin/mql4traderai/internal/models"
)

// MockRepository реализует интерфейс EntitlementRepository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) RecordPaymentEvent(ctx context.Context, event models.PaymentEvent) (bool, error) {
	args := m.Called(ctx, event)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ApplyPaymentEvent(ctx context.Context, event models.PaymentEvent, hasPaid bool) (models.EventOutcome, error) {
	args := m.Called(ctx, event, hasPaid)
	return args.Get(0).(models.EventOutcome), args.Error(1)
}

// MockCache реализует интерфейс Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// MockNotifier реализует интерфейс Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PaymentConfirmed(n models.PaymentConfirmedNotification) error {
	args := m.Called(n)
	return args.Error(0)
}

func testEvent(id string, eventType models.PaymentEventType, email string) models.PaymentEvent {
	return models.PaymentEvent{
		ID:            id,
		Type:          eventType,
		CustomerEmail: email,
		PayloadDigest: "digest",
		CreatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIngest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name         string
		event        models.PaymentEvent
		setupMock    func(*MockRepository, *MockCache, *MockNotifier)
		wantErr      error
		wantStoreErr bool
	}{
		{
			name:  "успешная оплата применяется, кеш обновлен, уведомление отправлено",
			event: testEvent("evt_1", models.PaymentCompleted, "test@example.com"),
			setupMock: func(repo *MockRepository, cache *MockCache, notifier *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
					Return(models.OutcomeApplied, nil)
				cache.On("Set", "entitlement:test@example.com",
					models.EntitlementRecord{
						Email:         "test@example.com",
						HasPaid:       true,
						UpdatedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
						SourceEventID: "evt_1",
					}, time.Hour).Return(nil)
				notifier.On("PaymentConfirmed", mock.Anything).Return(nil)
			},
			wantErr: nil,
		},
		{
			name:  "отмена применяется без уведомления",
			event: testEvent("evt_2", models.PaymentCanceled, "test@example.com"),
			setupMock: func(repo *MockRepository, cache *MockCache, _ *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, false).
					Return(models.OutcomeApplied, nil)
				cache.On("Set", "entitlement:test@example.com", mock.Anything, time.Hour).Return(nil)
			},
			wantErr: nil,
		},
		{
			name:  "при ошибке записи кеша ключ инвалидируется",
			event: testEvent("evt_6", models.PaymentCompleted, "test@example.com"),
			setupMock: func(repo *MockRepository, cache *MockCache, notifier *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
					Return(models.OutcomeApplied, nil)
				cache.On("Set", "entitlement:test@example.com", mock.Anything, time.Hour).
					Return(errors.New("redis down"))
				cache.On("Invalidate", "entitlement:test@example.com").Return(nil)
				notifier.On("PaymentConfirmed", mock.Anything).Return(nil)
			},
			wantErr: nil,
		},
		{
			name:  "повторная доставка — no-op",
			event: testEvent("evt_1", models.PaymentCompleted, "test@example.com"),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
					Return(models.OutcomeDuplicate, nil)
			},
			wantErr: ErrDuplicateEvent,
		},
		{
			name:  "опоздавшее событие не перезаписывает состояние",
			event: testEvent("evt_0", models.PaymentCanceled, "test@example.com"),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, false).
					Return(models.OutcomeStale, nil)
			},
			wantErr: ErrStaleEvent,
		},
		{
			name:  "событие без email фиксируется и отбрасывается",
			event: testEvent("evt_3", models.PaymentCompleted, ""),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("RecordPaymentEvent", mock.Anything, mock.Anything).Return(true, nil)
			},
			wantErr: ErrMissingIdentity,
		},
		{
			name:  "повтор события без email — дубликат",
			event: testEvent("evt_3", models.PaymentCompleted, ""),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("RecordPaymentEvent", mock.Anything, mock.Anything).Return(false, nil)
			},
			wantErr: ErrDuplicateEvent,
		},
		{
			name:  "событие типа other фиксируется без эффекта",
			event: testEvent("evt_4", models.PaymentOther, "test@example.com"),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("RecordPaymentEvent", mock.Anything, mock.Anything).Return(true, nil)
			},
			wantErr: nil,
		},
		{
			name:  "ошибка хранилища возвращается для повтора провайдером",
			event: testEvent("evt_5", models.PaymentCompleted, "test@example.com"),
			setupMock: func(repo *MockRepository, _ *MockCache, _ *MockNotifier) {
				repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
					Return(models.EventOutcome(""), errors.New("db down"))
			},
			wantStoreErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			cache := new(MockCache)
			notifier := new(MockNotifier)
			tt.setupMock(repo, cache, notifier)

			service := NewIngestService(repo, cache, notifier, logger)
			err := service.Ingest(context.Background(), tt.event)

			if tt.wantStoreErr {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrDuplicateEvent)
				assert.NotErrorIs(t, err, ErrStaleEvent)
			} else if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

// TestIngest_Idempotent повтор одного и того же события любое число раз
// применяет его не более одного раза.
func TestIngest_Idempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	event := testEvent("evt_replay", models.PaymentCompleted, "test@example.com")

	repo := new(MockRepository)
	cache := new(MockCache)
	notifier := new(MockNotifier)

	repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
		Return(models.OutcomeApplied, nil).Once()
	repo.On("ApplyPaymentEvent", mock.Anything, mock.Anything, true).
		Return(models.OutcomeDuplicate, nil)
	cache.On("Set", "entitlement:test@example.com", mock.Anything, time.Hour).Return(nil).Once()
	notifier.On("PaymentConfirmed", mock.Anything).Return(nil).Once()

	service := NewIngestService(repo, cache, notifier, logger)

	assert.NoError(t, service.Ingest(context.Background(), event))
	for range 5 {
		assert.ErrorIs(t, service.Ingest(context.Background(), event), ErrDuplicateEvent)
	}

	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceswin/mql4traderai/internal/models"
	entitlement "github.com/aceswin/mql4traderai/internal/services/entitlement"
)

// fakeStore воспроизводит семантику Postgres-репозитория в памяти:
// атомарный инкремент счетчика, журнал дедупликации и CAS-обновление
// entitlement по updated_at.
type fakeStore struct {
	mu           sync.Mutex
	usage        map[string]int
	entitlements map[string]models.EntitlementRecord
	events       map[string]struct{}

	// entitlementReadHook вызывается после чтения записи entitlement,
	// но до возврата результата. Позволяет задержать чтение, начатое
	// до применения события оплаты.
	entitlementReadHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usage:        make(map[string]int),
		entitlements: make(map[string]models.EntitlementRecord),
		events:       make(map[string]struct{}),
	}
}

func (s *fakeStore) GetUsage(_ context.Context, identityKey string) (*models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.UsageRecord{IdentityKey: identityKey, Count: s.usage[identityKey]}, nil
}

func (s *fakeStore) IncrementUsage(_ context.Context, identityKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[identityKey]++
	return s.usage[identityKey], nil
}

func (s *fakeStore) GetEntitlement(_ context.Context, email string) (*models.EntitlementRecord, error) {
	s.mu.Lock()
	rec, ok := s.entitlements[email]
	s.mu.Unlock()
	if s.entitlementReadHook != nil {
		s.entitlementReadHook()
	}
	if ok {
		return &rec, nil
	}
	return &models.EntitlementRecord{Email: email, HasPaid: false}, nil
}

func (s *fakeStore) RecordPaymentEvent(_ context.Context, event models.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[event.ID]; seen {
		return false, nil
	}
	s.events[event.ID] = struct{}{}
	return true, nil
}

func (s *fakeStore) ApplyPaymentEvent(_ context.Context, event models.PaymentEvent, hasPaid bool) (models.EventOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[event.ID]; seen {
		return models.OutcomeDuplicate, nil
	}
	s.events[event.ID] = struct{}{}
	if current, ok := s.entitlements[event.CustomerEmail]; ok && !current.UpdatedAt.Before(event.CreatedAt) {
		return models.OutcomeStale, nil
	}
	s.entitlements[event.CustomerEmail] = models.EntitlementRecord{
		Email:         event.CustomerEmail,
		HasPaid:       hasPaid,
		UpdatedAt:     event.CreatedAt,
		SourceEventID: event.ID,
	}
	return models.OutcomeApplied, nil
}

// fakeCache покрывает оба кеш-интерфейса: чтение со стороны генерации
// и инвалидацию со стороны приема событий.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string, result any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, result)
}

func (c *fakeCache) Set(key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *fakeCache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type fakeNotifier struct{}

func (fakeNotifier) PaymentConfirmed(models.PaymentConfirmedNotification) error { return nil }

type fakeLLM struct{}

func (fakeLLM) GenerateEACode(context.Context, string, []models.ChatMessage) (string, error) {
	return "int OnInit() { return(INIT_SUCCEEDED); }", nil
}

// TestScenario_FreeLimitThenPayment прогоняет полный жизненный цикл
// анонимного посетителя: три бесплатные генерации, отказ на четвертой,
// оплата через webhook и успешный повтор четвертого запроса.
func TestScenario_FreeLimitThenPayment(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := newFakeCache()
	log := testLogger()

	generator := NewGenerationService(store, cache, fakeLLM{}, log)
	ingestor := entitlement.NewIngestService(store, cache, fakeNotifier{}, log)

	anon := models.Identity{Kind: models.IdentityAnonymous, Key: "anon-9f2c"}

	for i := 1; i <= 3; i++ {
		res, err := generator.Generate(ctx, anon, "mql4", testMessages)
		require.NoError(t, err)
		assert.Equal(t, i, res.Uses)
	}

	_, err := generator.Generate(ctx, anon, "mql4", testMessages)
	require.ErrorIs(t, err, ErrLimitReached)

	event := models.PaymentEvent{
		ID:            "evt-001",
		Type:          models.PaymentCompleted,
		CustomerEmail: "buyer@example.com",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, ingestor.Ingest(ctx, event))

	// повторная доставка того же события подтверждается без эффекта
	require.ErrorIs(t, ingestor.Ingest(ctx, event), entitlement.ErrDuplicateEvent)

	// после оплаты клиент присылает email, по которому выдан entitlement
	anon.Email = "buyer@example.com"
	res, err := generator.Generate(ctx, anon, "mql4", testMessages)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Uses)

	// счетчик продолжает расти и дальше, лимит больше не применяется
	res, err = generator.Generate(ctx, anon, "mql4", testMessages)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Uses)
}

// TestScenario_PaymentDuringGenerationNotMaskedByCache проверяет, что
// чтение entitlement, начатое до применения события оплаты, не может
// закрепить устаревший отказ в кеше: немедленный повтор оплатившего
// пользователя проходит по свежему состоянию.
func TestScenario_PaymentDuringGenerationNotMaskedByCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := newFakeCache()
	log := testLogger()

	generator := NewGenerationService(store, cache, fakeLLM{}, log)
	ingestor := entitlement.NewIngestService(store, cache, fakeNotifier{}, log)

	buyer := models.Identity{Kind: models.IdentityAnonymous, Key: "anon-slow", Email: "buyer@example.com"}
	store.usage[buyer.Key] = 3

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.entitlementReadHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	inflightErr := make(chan error, 1)
	go func() {
		_, err := generator.Generate(ctx, buyer, "mql4", testMessages)
		inflightErr <- err
	}()

	// Пока первое чтение entitlement висит, оплата применяется и кладет
	// актуальную запись в кеш.
	<-entered
	event := models.PaymentEvent{
		ID:            "evt-inflight",
		Type:          models.PaymentCompleted,
		CustomerEmail: "buyer@example.com",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, ingestor.Ingest(ctx, event))
	close(release)

	// Задержанный запрос видел состояние до оплаты и получает отказ.
	require.ErrorIs(t, <-inflightErr, ErrLimitReached)

	// Его завершение не перетирает кеш: немедленный повтор проходит.
	res, err := generator.Generate(ctx, buyer, "mql4", testMessages)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Uses)

	var cached models.EntitlementRecord
	found, err := cache.Get("entitlement:buyer@example.com", &cached)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, cached.HasPaid)
	assert.Equal(t, "evt-inflight", cached.SourceEventID)
}

// TestScenario_StaleCancellationDoesNotRevoke проверяет, что отмена,
// созданная раньше уже примененной оплаты, не отзывает доступ.
func TestScenario_StaleCancellationDoesNotRevoke(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := newFakeCache()
	log := testLogger()

	generator := NewGenerationService(store, cache, fakeLLM{}, log)
	ingestor := entitlement.NewIngestService(store, cache, fakeNotifier{}, log)

	now := time.Now()
	paid := models.PaymentEvent{
		ID:            "evt-paid",
		Type:          models.PaymentCompleted,
		CustomerEmail: "buyer@example.com",
		CreatedAt:     now,
	}
	require.NoError(t, ingestor.Ingest(ctx, paid))

	stale := models.PaymentEvent{
		ID:            "evt-canceled-old",
		Type:          models.PaymentCanceled,
		CustomerEmail: "buyer@example.com",
		CreatedAt:     now.Add(-time.Minute),
	}
	require.ErrorIs(t, ingestor.Ingest(ctx, stale), entitlement.ErrStaleEvent)

	identity := models.Identity{Kind: models.IdentityAnonymous, Key: "anon-1", Email: "buyer@example.com"}
	store.usage[identity.Key] = 100

	res, err := generator.Generate(ctx, identity, "mql5", testMessages)
	require.NoError(t, err)
	assert.Equal(t, 101, res.Uses)
}

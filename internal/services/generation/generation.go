// Package services содержит бизнес-логику обработки запроса генерации советника.
//
// Запрос проходит проверку допуска (счетчик использования + entitlement)
// до обращения к LLM провайдеру; счетчик увеличивается только после
// успешного ответа провайдера.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/models"
	"github.com/aceswin/mql4traderai/internal/services/gate"
)

var (
	// ErrLimitReached бесплатный лимит исчерпан, требуется оплата.
	ErrLimitReached = errors.New(gate.ReasonLimitReached)
	// ErrProviderUnavailable провайдер генерации не вернул результат.
	ErrProviderUnavailable = errors.New("llm provider unavailable")
)

// GenerationRepository определяет методы хранилища для пути генерации.
type GenerationRepository interface {
	GetUsage(ctx context.Context, identityKey string) (*models.UsageRecord, error)
	IncrementUsage(ctx context.Context, identityKey string) (int, error)
	GetEntitlement(ctx context.Context, email string) (*models.EntitlementRecord, error)
}

// Cache описывает чтение кешированных записей entitlement.
// Запись кеша ведет только сервис приема событий платежного провайдера.
type Cache interface {
	Get(key string, result any) (bool, error)
}

// LLMClient описывает клиента провайдера генерации кода.
type LLMClient interface {
	GenerateEACode(ctx context.Context, language string, messages []models.ChatMessage) (string, error)
}

// GenerationService реализует путь генерации с проверкой допуска.
type GenerationService struct {
	repo  GenerationRepository
	cache Cache
	llm   LLMClient
	log   *slog.Logger
}

// NewGenerationService создает новый экземпляр GenerationService.
func NewGenerationService(repo GenerationRepository, cache Cache, llm LLMClient, log *slog.Logger) *GenerationService {
	return &GenerationService{
		repo:  repo,
		cache: cache,
		llm:   llm,
		log:   log,
	}
}

// Generate обрабатывает запрос генерации для идентичности.
//
// Порядок: чтение счетчика и entitlement, решение gate.Decide, вызов LLM,
// атомарный инкремент счетчика только после успеха провайдера. При отказе
// возвращается ErrLimitReached, провайдер не вызывается.
func (s *GenerationService) Generate(ctx context.Context, identity models.Identity, language string, messages []models.ChatMessage) (*models.GenerationResult, error) {
	const op = "services.generation.Generate"

	usage, err := s.repo.GetUsage(ctx, identity.Key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entitlement, err := s.entitlementFor(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if d := gate.Decide(identity, *usage, *entitlement); !d.Allow {
		s.log.Info("generation denied",
			slog.String("identity", identity.Key),
			slog.Int("count", usage.Count),
			slog.String("reason", d.Reason))
		return nil, ErrLimitReached
	}

	code, err := s.llm.GenerateEACode(ctx, language, messages)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}

	count, err := s.repo.IncrementUsage(ctx, identity.Key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("generation allowed",
		slog.String("identity", identity.Key),
		slog.Int("count", count))
	return &models.GenerationResult{EACode: code, Uses: count}, nil
}

// entitlementFor возвращает entitlement идентичности. Ключом служит email:
// для аутентифицированной идентичности — подтвержденный, для анонимной —
// заявленный после оплаты. Без email entitlement всегда не оплачен.
//
// Чтение идет через кеш с запасным походом в хранилище. Путь генерации
// кеш не пополняет: иначе чтение, начатое до фиксации webhook события,
// могло бы положить устаревшее значение поверх уже инвалидированного ключа.
func (s *GenerationService) entitlementFor(ctx context.Context, identity models.Identity) (*models.EntitlementRecord, error) {
	if identity.Email == "" {
		return &models.EntitlementRecord{HasPaid: false}, nil
	}

	cacheKey := fmt.Sprintf("entitlement:%s", identity.Email)
	var cached models.EntitlementRecord
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("entitlement cache read failed", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	return s.repo.GetEntitlement(ctx, identity.Email)
}

// Package services содержит бизнес-логику серверного счетчика использования.
//
// Счетчик ключуется по идентичности и обновляется атомарным upsert в
// хранилище: значение, присланное клиентом, нигде не учитывается.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aceswin/mql4traderai/internal/models"
)

// ErrResetForbidden сброс счетчика доступен только владельцу записи или администратору.
var ErrResetForbidden = errors.New("usage reset forbidden")

// UsageRepository определяет методы хранилища счетчиков использования.
type UsageRepository interface {
	GetUsage(ctx context.Context, identityKey string) (*models.UsageRecord, error)
	IncrementUsage(ctx context.Context, identityKey string) (int, error)
	ResetUsage(ctx context.Context, identityKey string) error
}

// UsageService реализует операции над счетчиком использования.
type UsageService struct {
	repo UsageRepository
	log  *slog.Logger
}

// NewUsageService создает новый экземпляр UsageService.
func NewUsageService(repo UsageRepository, log *slog.Logger) *UsageService {
	return &UsageService{
		repo: repo,
		log:  log,
	}
}

// Get возвращает текущую запись использования идентичности.
func (s *UsageService) Get(ctx context.Context, identity models.Identity) (*models.UsageRecord, error) {
	return s.repo.GetUsage(ctx, identity.Key)
}

// Increment атомарно увеличивает счетчик и возвращает новое значение.
func (s *UsageService) Increment(ctx context.Context, identity models.Identity) (int, error) {
	return s.repo.IncrementUsage(ctx, identity.Key)
}

// Reset сбрасывает счетчик targetKey. Аутентифицированная идентичность
// сбрасывает только собственную запись; роль admin — любую. Обычный трафик
// до этой операции не добирается: маршрут закрыт JWT middleware.
func (s *UsageService) Reset(ctx context.Context, actor models.Identity, role, targetKey string) error {
	const op = "services.usage.Reset"

	if !actor.IsAuthenticated() {
		return ErrResetForbidden
	}
	if actor.Key != targetKey && role != "admin" {
		return ErrResetForbidden
	}

	if err := s.repo.ResetUsage(ctx, targetKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("usage counter reset",
		slog.String("target", targetKey),
		slog.String("actor", actor.Key),
		slog.String("role", role))
	return nil
}

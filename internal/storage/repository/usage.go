package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aceswin/mql4traderai/internal/models"
)

// GetUsage возвращает запись использования для идентичности.
// При отсутствии записи возвращает нулевой счетчик.
func (s *Storage) GetUsage(ctx context.Context, identityKey string) (*models.UsageRecord, error) {
	const op = "storage.GetUsage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT identity_key, count, last_request_at
			  FROM usage_records
			  WHERE identity_key = $1`
	rec := &models.UsageRecord{}
	row := s.DB.QueryRowContext(ctx, query, identityKey)
	if err := row.Scan(&rec.IdentityKey, &rec.Count, &rec.LastRequestAt); err != nil {
		if err == sql.ErrNoRows {
			return &models.UsageRecord{IdentityKey: identityKey, Count: 0}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// IncrementUsage атомарно увеличивает счетчик использования и возвращает
// новое значение. Одиночный upsert исключает потерю обновлений при
// конкурентных запросах одной идентичности.
func (s *Storage) IncrementUsage(ctx context.Context, identityKey string) (int, error) {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO usage_records (identity_key, count, last_request_at)
			  VALUES ($1, 1, $2)
			  ON CONFLICT (identity_key) DO UPDATE
			  SET count = usage_records.count + 1,
				  last_request_at = EXCLUDED.last_request_at
			  RETURNING count`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, identityKey, time.Now().UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ResetUsage сбрасывает счетчик использования для идентичности.
// Доступен только через явную аутентифицированную операцию сброса.
func (s *Storage) ResetUsage(ctx context.Context, identityKey string) error {
	const op = "storage.ResetUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE usage_records
			  SET count = 0,
				  last_request_at = $2
			  WHERE identity_key = $1`
	_, err := s.DB.ExecContext(ctx, query, identityKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aceswin/mql4traderai/internal/models"
)

// GetEntitlement возвращает запись entitlement для email.
// При отсутствии записи возвращает запись по умолчанию с HasPaid=false.
func (s *Storage) GetEntitlement(ctx context.Context, email string) (*models.EntitlementRecord, error) {
	const op = "storage.GetEntitlement"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, has_paid, updated_at, source_event_id
			  FROM entitlements
			  WHERE email = $1`
	rec := &models.EntitlementRecord{}
	row := s.DB.QueryRowContext(ctx, query, email)
	if err := row.Scan(&rec.Email, &rec.HasPaid, &rec.UpdatedAt, &rec.SourceEventID); err != nil {
		if err == sql.ErrNoRows {
			return &models.EntitlementRecord{Email: email, HasPaid: false}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// RecordPaymentEvent фиксирует событие в журнале дедупликации без изменения
// entitlement. Используется для событий без идентичности и событий типа other.
// Возвращает false, если событие с таким ID уже было записано.
func (s *Storage) RecordPaymentEvent(ctx context.Context, event models.PaymentEvent) (bool, error) {
	const op = "storage.RecordPaymentEvent"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payment_events (id, type, customer_email, payload_digest, created_at, processed)
			  VALUES ($1, $2, $3, $4, $5, TRUE)
			  ON CONFLICT (id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query,
		event.ID, event.Type, event.CustomerEmail, event.PayloadDigest, event.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rows > 0, nil
}

// ApplyPaymentEvent применяет событие платежного провайдера транзакционно:
// запись в журнал дедупликации и compare-and-set обновление entitlement
// фиксируются вместе или не фиксируются вовсе.
//
// CAS ключуется на (email, updated_at): событие с created_at не новее
// текущего updated_at не перезаписывает состояние (OutcomeStale), но
// остается в журнале как обработанное. Повторная доставка уже известного
// ID дает OutcomeDuplicate без какого-либо эффекта.
func (s *Storage) ApplyPaymentEvent(ctx context.Context, event models.PaymentEvent, hasPaid bool) (models.EventOutcome, error) {
	const op = "storage.ApplyPaymentEvent"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	dedupQuery := `INSERT INTO payment_events (id, type, customer_email, payload_digest, created_at, processed)
				   VALUES ($1, $2, $3, $4, $5, TRUE)
				   ON CONFLICT (id) DO NOTHING`
	res, err := tx.ExecContext(ctx, dedupQuery,
		event.ID, event.Type, event.CustomerEmail, event.PayloadDigest, event.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		return models.OutcomeDuplicate, nil
	}

	upsertQuery := `INSERT INTO entitlements (email, has_paid, updated_at, source_event_id)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (email) DO UPDATE
					SET has_paid = EXCLUDED.has_paid,
						updated_at = EXCLUDED.updated_at,
						source_event_id = EXCLUDED.source_event_id
					WHERE entitlements.updated_at < EXCLUDED.updated_at`
	res, err = tx.ExecContext(ctx, upsertQuery,
		event.CustomerEmail, hasPaid, event.CreatedAt, event.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if updated == 0 {
		return models.OutcomeStale, nil
	}
	return models.OutcomeApplied, nil
}

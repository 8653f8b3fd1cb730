package models

import "time"

// EntitlementRecord представляет авторитетный признак оплаты для email.
// Запись мутируется только через обработку верифицированных событий
// платежного провайдера; UpdatedAt не регрессирует для одного email.
type EntitlementRecord struct {
	Email         string    `json:"email"`
	HasPaid       bool      `json:"has_paid"`
	UpdatedAt     time.Time `json:"updated_at"`
	SourceEventID string    `json:"source_event_id"` // ID события, установившего текущее состояние
}

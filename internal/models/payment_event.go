package models

import "time"

// PaymentEventType тип события платежного провайдера.
// Вебхук приводит произвольные события провайдера к тегированному варианту,
// чтобы обработка была исчерпывающей.
type PaymentEventType string

const (
	// PaymentCompleted — успешная оплата, включает entitlement.
	PaymentCompleted PaymentEventType = "completed"
	// PaymentCanceled — отмена или возврат, выключает entitlement.
	PaymentCanceled PaymentEventType = "canceled"
	// PaymentOther — прочие события провайдера, фиксируются без эффекта.
	PaymentOther PaymentEventType = "other"
)

// PaymentEvent представляет событие платежного провайдера в журнале дедупликации.
// Для одного ID событие применяется не более одного раза независимо от
// количества доставок.
type PaymentEvent struct {
	ID            string           `json:"id"`             // Уникальный ID события у провайдера
	Type          PaymentEventType `json:"type"`           // Тегированный тип события
	CustomerEmail string           `json:"customer_email"` // Email плательщика
	PayloadDigest string           `json:"payload_digest"` // SHA-256 дайджест исходного тела
	CreatedAt     time.Time        `json:"created_at"`     // Логическое время события у провайдера
	ReceivedAt    time.Time        `json:"received_at"`    // Время получения вебхука
	Processed     bool             `json:"processed"`
}

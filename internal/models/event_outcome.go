package models

// EventOutcome результат применения события платежного провайдера к хранилищу.
type EventOutcome string

const (
	// OutcomeApplied — событие применено, entitlement обновлен.
	OutcomeApplied EventOutcome = "applied"
	// OutcomeDuplicate — событие с таким ID уже обработано ранее.
	OutcomeDuplicate EventOutcome = "duplicate"
	// OutcomeStale — событие старше текущего состояния entitlement,
	// зафиксировано в журнале без перезаписи.
	OutcomeStale EventOutcome = "stale"
)

// PaymentConfirmedNotification сообщение для очереди уведомлений об оплате.
type PaymentConfirmedNotification struct {
	Email       string `json:"email"`
	EventID     string `json:"event_id"`
	ConfirmedAt string `json:"confirmed_at"`
}

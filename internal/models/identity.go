// Package models содержит доменные модели системы: идентичность вызывающего,
// запись использования бесплатного лимита, запись entitlement и событие платежа.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

// IdentityKind тип идентичности вызывающего.
type IdentityKind string

const (
	// IdentityAnonymous — анонимный вызывающий с клиентским токеном устройства.
	IdentityAnonymous IdentityKind = "anonymous"
	// IdentityAuthenticated — аутентифицированный пользователь с подтвержденным email.
	IdentityAuthenticated IdentityKind = "authenticated"
)

// Identity представляет идентичность вызывающего в рамках одного запроса.
// Анонимная и аутентифицированная идентичности — разные ключи,
// история использования при входе не объединяется.
//
// Email для аутентифицированной идентичности совпадает с Key. Для анонимной
// это необязательное клиентское утверждение после оплаты: оно задает лишь
// ключ поиска entitlement, а сам признак оплаты подтверждается только
// верифицированными событиями провайдера.
type Identity struct {
	Kind  IdentityKind // Тип идентичности
	Key   string       // Токен устройства или подтвержденный email
	Email string       // Ключ поиска entitlement, может быть пустым
}

// IsAuthenticated сообщает, является ли идентичность аутентифицированной.
func (i Identity) IsAuthenticated() bool {
	return i.Kind == IdentityAuthenticated
}

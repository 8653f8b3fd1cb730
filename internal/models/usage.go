package models

import "time"

// UsageRecord представляет серверный счетчик использования бесплатного лимита.
// Счетчик монотонно не убывает, кроме явной операции сброса.
type UsageRecord struct {
	IdentityKey   string    `json:"identity_key"`
	Count         int       `json:"count"`
	LastRequestAt time.Time `json:"last_request_at"`
}

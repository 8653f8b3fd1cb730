// Package gate содержит чистую функцию решения о допуске запроса генерации.
//
// Решение зависит только от аргументов: ни часов, ни обращений к хранилищу,
// поэтому функция тестируется изолированно.
package gate

import "github.com/aceswin/mql4traderai/internal/models"

// FreeLimit количество бесплатных запросов до требования оплаты.
const FreeLimit = 3

// ReasonLimitReached структурированная причина отказа.
const ReasonLimitReached = "limit_reached"

// Decision результат проверки допуска.
type Decision struct {
	Allow  bool
	Reason string // Заполнено только при отказе
}

// Decide возвращает Deny("limit_reached"), если entitlement не оплачен
// и счетчик использования достиг FreeLimit; иначе Allow.
func Decide(identity models.Identity, usage models.UsageRecord, entitlement models.EntitlementRecord) Decision {
	if !entitlement.HasPaid && usage.Count >= FreeLimit {
		return Decision{Allow: false, Reason: ReasonLimitReached}
	}
	return Decision{Allow: true}
}

// Package sl содержит вспомогательные функции для работы с логгером slog.
// Упрощает формирование структурированных полей лога при передаче ошибок.
package sl

import "log/slog"

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to ingest event", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

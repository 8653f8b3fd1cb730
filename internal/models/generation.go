package models

// ChatMessage представляет одно сообщение диалога генерации советника.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// GenerationResult результат успешной генерации кода советника.
type GenerationResult struct {
	EACode string `json:"ea_code"` // Сгенерированный код советника
	Uses   int    `json:"uses"`    // Текущее значение счетчика после инкремента
}

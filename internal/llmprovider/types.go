package llmprovider

// Запрос к chat completions API провайдера
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []ChatMessage `json:"messages"`
}

// Сообщение диалога в формате провайдера
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Ответ chat completions API
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// Ошибка, возвращаемая провайдером в теле ответа
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

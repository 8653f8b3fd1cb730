// Package llmprovider содержит HTTP клиент генерации кода советника
// через chat completions API.
package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aceswin/mql4traderai/internal/config"
	"github.com/aceswin/mql4traderai/internal/models"
)

// ErrEmptyCompletion возвращается, когда провайдер не вернул ни одного варианта ответа.
var ErrEmptyCompletion = errors.New("llm returned empty completion")

var (
	codeFenceRe = regexp.MustCompile("(?i)```(?:mql4|mql5|mql|mq4|mq5)?")
	copyrightRe = regexp.MustCompile(`Copyright \d{4}`)
)

// Client клиент провайдера генерации.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient создает новый клиент провайдера генерации.
func NewClient(cfg config.LLMProvider) *Client {
	timeout := cfg.LLMTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiURL:     cfg.LLMAPIURL,
		apiKey:     cfg.LLMAPIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// systemPrompt строит системное сообщение под выбранный диалект.
// Клиентские system-сообщения игнорируются, промпт всегда серверный.
func systemPrompt(language string) string {
	dialect := "MQL4"
	ext := "mq4"
	if language == "mql5" {
		dialect = "MQL5"
		ext = "mq5"
	}
	return fmt.Sprintf(`You are an %[1]s coding expert helping the user build a complete Expert Advisor (.%[2]s). The user will describe a trading strategy or problem, and your job is to output complete, clean %[1]s code that matches the strategy.

Include:
- OnInit(), OnDeinit(), and OnTick()
- Risk management
- Comments in the code

If the user mentions an OrderSend error like error 130, explain that it usually means invalid stops (SL/TP too close or not normalized). Encourage the user to print the SL/TP values using Print(), and use NormalizeDouble(..., Digits) to ensure prices are valid.

Do not wrap your answer in markdown or code blocks, output only the raw EA code.`, dialect, ext)
}

// GenerateEACode отправляет диалог провайдеру и возвращает очищенный код советника.
func (c *Client) GenerateEACode(ctx context.Context, language string, messages []models.ChatMessage) (string, error) {
	const op = "llmprovider.GenerateEACode"

	payload := ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages:    make([]ChatMessage, 0, len(messages)+1),
	}
	payload.Messages = append(payload.Messages, ChatMessage{Role: "system", Content: systemPrompt(language)})
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}
		payload.Messages = append(payload.Messages, ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var completion ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("%s: provider error: %s", op, completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyCompletion)
	}

	return sanitizeCode(completion.Choices[0].Message.Content), nil
}

// sanitizeCode убирает markdown-ограждения вокруг кода и подставляет
// текущий год в строку Copyright из шаблона советника.
func sanitizeCode(raw string) string {
	code := strings.TrimSpace(raw)
	if strings.HasPrefix(code, "```") {
		code = strings.TrimSpace(codeFenceRe.ReplaceAllString(code, ""))
	}
	year := strconv.Itoa(time.Now().Year())
	return copyrightRe.ReplaceAllString(code, "Copyright "+year)
}

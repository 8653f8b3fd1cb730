// Package paymentwebhook реализует HTTP-обработчик вебхуков платежного провайдера.
//
// Обработчик проверяет подпись X-Api-Signature по сырому телу запроса,
// приводит событие провайдера к тегированному типу и передает его сервису
// приема. Повторные и опоздавшие события подтверждаются статусом 200 без
// изменения состояния, чтобы провайдер не ретраил их бесконечно.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/aceswin/mql4traderai/internal/http/response"
	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/models"
	services "github.com/aceswin/mql4traderai/internal/services/entitlement"
)

// Service описывает интерфейс сервиса приема платежных событий.
type Service interface {
	Ingest(ctx context.Context, event models.PaymentEvent) error
}

// Handler обрабатывает HTTP-запросы вебхуков провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload тело события платежного провайдера.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID            string            `json:"id"`
		Status        string            `json:"status"`
		CustomerEmail string            `json:"customer_email"`
		CreatedAt     time.Time         `json:"created_at"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"object"`
}

// События провайдера, влияющие на entitlement.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentCanceled  = "payment.canceled"
	PaymentRefunded  = "payment.refunded"
)

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

// classify приводит событие провайдера к тегированному типу.
func classify(event string) models.PaymentEventType {
	switch strings.ToLower(event) {
	case PaymentSucceeded:
		return models.PaymentCompleted
	case PaymentCanceled, PaymentRefunded:
		return models.PaymentCanceled
	default:
		return models.PaymentOther
	}
}

// ServeHTTP godoc
// @Summary Вебхук платежного провайдера
// @Description Принимает подписанное событие провайдера и применяет его к entitlement покупателя. Повторные и опоздавшие события подтверждаются без эффекта.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Хранилище недоступно, провайдер повторит доставку"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	defer r.Body.Close()

	// Проверка подписи идет по сырому телу, до любого разбора JSON.
	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if payload.Object.ID == "" {
		log.Error("webhook payload without event id")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing event id"))
		return
	}

	digest := sha256.Sum256(body)
	event := models.PaymentEvent{
		ID:            payload.Object.ID,
		Type:          classify(payload.Event),
		CustomerEmail: payload.Object.CustomerEmail,
		PayloadDigest: hex.EncodeToString(digest[:]),
		CreatedAt:     payload.Object.CreatedAt,
		ReceivedAt:    time.Now().UTC(),
	}

	err = h.service.Ingest(r.Context(), event)
	switch {
	case err == nil:
		log.Info("webhook event applied",
			slog.String("event", payload.Event),
			slog.String("event_id", event.ID))
	case errors.Is(err, services.ErrDuplicateEvent):
		log.Info("duplicate webhook event acknowledged", slog.String("event_id", event.ID))
	case errors.Is(err, services.ErrStaleEvent):
		log.Info("stale webhook event acknowledged", slog.String("event_id", event.ID))
	case errors.Is(err, services.ErrMissingIdentity):
		log.Warn("webhook event without customer email acknowledged",
			slog.String("event_id", event.ID))
	default:
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"event_id": event.ID,
	}))
}

// Package checkoutsession реализует HTTP-обработчик создания сессии оплаты.
//
// Анонимный посетитель передает email в теле запроса, авторизованный
// пользователь использует email своей учетной записи. Обработчик создает
// checkout-сессию у платежного провайдера и возвращает URL для редиректа.
package checkoutsession

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/aceswin/mql4traderai/internal/http/middlewarectx"
	"github.com/aceswin/mql4traderai/internal/http/response"
	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/paymentprovider"
)

// Request — структура входных данных для создания сессии оплаты.
type Request struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// Service описывает интерфейс клиента платежного провайдера.
type Service interface {
	CreateCheckoutSession(ctx context.Context, customerEmail string) (*paymentprovider.CreateCheckoutSessionResponse, error)
}

// Handler обрабатывает HTTP-запросы создания сессии оплаты.
type Handler struct {
	log      *slog.Logger
	provider Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, provider Service) *Handler {
	return &Handler{
		log:      log,
		provider: provider,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать сессию оплаты
// @Description Создает у платежного провайдера сессию оплаты полного доступа и возвращает URL для редиректа покупателя.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Email покупателя (для анонимных)"
// @Success 200 {object} map[string]any "ID сессии и URL оплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или отсутствует email"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Провайдер недоступен"
// @Router /checkout-session [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.checkoutsession"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	email := req.Email
	if identity, ok := middlewarectx.IdentityFromContext(r.Context()); ok && identity.IsAuthenticated() {
		email = identity.Email
	}
	if email == "" {
		log.Error("checkout session without email")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("email is required"))
		return
	}

	session, err := h.provider.CreateCheckoutSession(r.Context(), email)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to create checkout session"))
		return
	}

	log.Info("checkout session created",
		slog.String("session_id", session.ID),
		slog.String("email", email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session_id":  session.ID,
		"payment_url": session.Confirmation.ConfirmationURL,
	}))
}

// Package reset реализует HTTP-обработчик сброса счетчика использования.
//
// Маршрут закрыт JWT middleware: анонимный трафик до операции не добирается.
// Пользователь сбрасывает собственный счетчик, администратор — любой.
package reset

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/aceswin/mql4traderai/internal/http/middlewarectx"
	"github.com/aceswin/mql4traderai/internal/http/response"
	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/models"
	services "github.com/aceswin/mql4traderai/internal/services/usage"
)

// Request — структура входных данных для сброса счетчика.
type Request struct {
	IdentityKey string `json:"identity_key" validate:"required"`
}

// Service описывает интерфейс бизнес-логики счетчика использования.
type Service interface {
	Reset(ctx context.Context, actor models.Identity, role, targetKey string) error
}

// Handler обрабатывает HTTP-запросы сброса счетчика.
type Handler struct {
	log      *slog.Logger
	usage    Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, usage Service) *Handler {
	return &Handler{
		log:      log,
		usage:    usage,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сбросить счетчик использования
// @Description Сбрасывает серверный счетчик генераций указанной идентичности. Доступно владельцу и администратору.
// @Tags Usage
// @Accept  json
// @Produce  json
// @Param request body Request true "Ключ идентичности"
// @Success 200 {object} map[string]any "Счетчик сброшен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Чужой счетчик без роли admin"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /usage/reset [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.reset"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		log.Error("identity missing in request context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("authentication required"))
		return
	}

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

	role := middlewarectx.RoleFromContext(r.Context())
	if err := h.usage.Reset(r.Context(), identity, role, req.IdentityKey); err != nil {
		if errors.Is(err, services.ErrResetForbidden) {
			log.Error("usage reset forbidden",
				slog.String("actor", identity.Key),
				slog.String("target", req.IdentityKey))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("usage reset forbidden"))
			return
		}
		log.Error("failed to reset usage", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("usage counter reset", slog.String("target", req.IdentityKey))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"identity_key": req.IdentityKey,
		"message":      "usage counter reset",
	}))
}

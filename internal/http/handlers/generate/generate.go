// Package generate реализует HTTP-обработчик генерации кода советника.
//
// Обработчик принимает диалог с описанием торговой стратегии, проверяет
// серверный счетчик бесплатных генераций и делегирует работу сервису
// генерации. Отказ по лимиту возвращается со структурной причиной
// limit_reached без обращения к LLM провайдеру.
package generate

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
	services "github.com/aceswin/mql4traderai/internal/services/generation"
)

// Request — структура входных данных для генерации советника.
type Request struct {
	Language string               `json:"language" validate:"omitempty,oneof=mql4 mql5"`
	Messages []models.ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// Service описывает интерфейс бизнес-логики генерации.
type Service interface {
	Generate(ctx context.Context, identity models.Identity, language string, messages []models.ChatMessage) (*models.GenerationResult, error)
}

// Handler обрабатывает HTTP-запросы генерации советника.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сгенерировать код советника
// @Description Генерирует код советника MQL4/MQL5 по диалогу со стратегией. Бесплатно доступно три генерации, дальше требуется оплата.
// @Tags Generate
// @Accept  json
// @Produce  json
// @Param request body Request true "Диалог и диалект"
// @Success 200 {object} map[string]any "Код советника и счетчик использований"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Лимит бесплатных генераций исчерпан"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Провайдер генерации недоступен"
// @Router /generate [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.generate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	identity, ok := middlewarectx.IdentityFromContext(r.Context())
	if !ok {
		log.Error("identity missing in request context")
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
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

	language := req.Language
	if language == "" {
		language = "mql4"
	}

	result, err := h.service.Generate(r.Context(), identity, language, req.Messages)
	if err != nil {
		if errors.Is(err, services.ErrLimitReached) {
			log.Info("generation denied", slog.String("identity", identity.Key))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("limit_reached"))
			return
		}
		if errors.Is(err, services.ErrProviderUnavailable) {
			log.Error("llm provider failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("failed to generate EA code"))
			return
		}
		log.Error("generation failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	log.Info("generation succeeded",
		slog.String("identity", identity.Key),
		slog.Int("uses", result.Uses))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"ea_code": result.EACode,
		"uses":    result.Uses,
	}))
}

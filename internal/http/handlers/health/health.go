// Package health реализует HTTP-обработчик проверки живости сервиса.
package health

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/aceswin/mql4traderai/internal/http/response"
	"github.com/aceswin/mql4traderai/internal/lib/sl"
)

// ReadinessChecker проверяет готовность зависимостей сервиса.
type ReadinessChecker func() error

// Handler обрабатывает запросы проверки здоровья.
type Handler struct {
	log   *slog.Logger
	ready ReadinessChecker
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, ready ReadinessChecker) *Handler {
	return &Handler{
		log:   log,
		ready: ready,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if h.ready != nil {
		if err := h.ready(); err != nil {
			h.log.Error("readiness check failed", slog.String("op", op), sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("storage is not ready"))
			return
		}
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}

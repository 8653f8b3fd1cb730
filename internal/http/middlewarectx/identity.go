// Package middlewarectx содержит HTTP middleware разрешения идентичности запроса.
//
// IdentityMiddleware определяет, от чьего имени пришел запрос: авторизованный
// пользователь с JWT в заголовке Authorization или анонимный посетитель с
// устойчивым токеном устройства в заголовке X-Anon-Token. Идентичность
// кладется в контекст запроса для дальнейшего использования в обработчиках.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/aceswin/mql4traderai/internal/http/response"
	"github.com/aceswin/mql4traderai/internal/lib/sl"
	"github.com/aceswin/mql4traderai/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// IdentityKey — ключ идентичности запроса в контексте.
	IdentityKey Key = "identity"
	// RoleKey — ключ роли авторизованного пользователя в контексте.
	RoleKey Key = "role"
)

const (
	// AnonTokenHeader — заголовок с токеном анонимного посетителя.
	AnonTokenHeader = "X-Anon-Token"
	// UserEmailHeader — заголовок с email, заявленным анонимным посетителем
	// после оплаты. Сам по себе доступ не дает: entitlement по этому email
	// появляется только после верифицированного webhook события.
	UserEmailHeader = "X-User-Email"
)

// Service описывает интерфейс сервиса для валидации JWT токена.
type Service interface {
	ValidateToken(ctx context.Context, token string) (models.Identity, string, error)
}

// IdentityFromContext извлекает идентичность запроса из контекста.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	return identity, ok
}

// RoleFromContext извлекает роль авторизованного пользователя из контекста.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

// IdentityMiddleware возвращает HTTP middleware, разрешающий идентичность запроса.
//
// При наличии заголовка Authorization токен обязан быть валидным, иначе
// возвращается 401 Unauthorized. Без Authorization запрос считается анонимным:
// используется X-Anon-Token, а если клиент пришел впервые, сервер выпускает
// новый токен и возвращает его в заголовке ответа X-Anon-Token.
func IdentityMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.IdentityMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				if !strings.HasPrefix(authHeader, "Bearer ") {
					log.Error("invalid authorization header")
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("missing or invalid authorization header"))
					return
				}
				tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

				identity, role, err := authService.ValidateToken(r.Context(), tokenStr)
				if err != nil {
					log.Error("invalid or expired token", sl.Err(err))
					render.Status(r, http.StatusUnauthorized)
					render.JSON(w, r, response.Error("invalid or expired token"))
					return
				}
				ctx := context.WithValue(r.Context(), IdentityKey, identity)
				ctx = context.WithValue(ctx, RoleKey, role)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			anonToken := r.Header.Get(AnonTokenHeader)
			if anonToken == "" {
				anonToken = uuid.NewString()
				w.Header().Set(AnonTokenHeader, anonToken)
				log.Info("issued new anonymous token")
			}

			identity := models.Identity{
				Kind:  models.IdentityAnonymous,
				Key:   anonToken,
				Email: r.Header.Get(UserEmailHeader),
			}
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthenticated возвращает middleware, пропускающий только
// авторизованных пользователей. Должен стоять после IdentityMiddleware.
func RequireAuthenticated(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || !identity.IsAuthenticated() {
				log.Error("authenticated user required")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

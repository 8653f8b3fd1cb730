package login_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aceswin/mql4traderai/internal/http/handlers/auth/login"
	services "github.com/aceswin/mql4traderai/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, username, password string) (string, string, error) {
	args := m.Called(ctx, username, password)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(s *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "успешный вход",
			body: `{"username":"testuser","password":"password123"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Login", mock.Anything, "testuser", "password123").
					Return("jwt-token-123", "user", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "jwt-token-123",
		},
		{
			name: "неверные учетные данные",
			body: `{"username":"testuser","password":"wrongpass"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Login", mock.Anything, "testuser", "wrongpass").
					Return("", "", services.ErrInvalidCredentials).Once()
			},
			wantStatusCode: http.StatusUnauthorized,
			wantBody:       "invalid credentials",
		},
		{
			name:           "некорректный JSON",
			body:           `{`,
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "короткое имя пользователя",
			body:           `{"username":"ab","password":"password123"}`,
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "ошибка сервиса",
			body: `{"username":"testuser","password":"password123"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Login", mock.Anything, "testuser", "password123").
					Return("", "", errors.New("db down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			handler := login.New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatusCode, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

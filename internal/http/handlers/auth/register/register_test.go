package register_test

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

	"github.com/aceswin/mql4traderai/internal/http/handlers/auth/register"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, email, username, password string) (string, error) {
	args := m.Called(ctx, email, username, password)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(s *ServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "успешная регистрация",
			body: `{"username":"testuser","password":"password123","email":"test@example.com"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Register", mock.Anything, "test@example.com", "testuser", "password123").
					Return("some-uuid", nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       "user created successfully",
		},
		{
			name:           "некорректный JSON",
			body:           `{`,
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "короткий пароль",
			body:           `{"username":"testuser","password":"123","email":"test@example.com"}`,
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name:           "некорректный email",
			body:           `{"username":"testuser","password":"password123","email":"nope"}`,
			setupMocks:     func(_ *ServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			name: "ошибка сервиса",
			body: `{"username":"testuser","password":"password123","email":"test@example.com"}`,
			setupMocks: func(s *ServiceMock) {
				s.On("Register", mock.Anything, "test@example.com", "testuser", "password123").
					Return("", errors.New("db error")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMocks(svc)

			handler := register.New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBufferString(tt.body))
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

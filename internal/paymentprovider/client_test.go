package paymentprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aceswin/mql4traderai/internal/config"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.PaymentProvider{
		ProviderAPIURL:  serverURL,
		ShopID:          "shop-1",
		ProviderSecret:  "secret",
		SuccessURL:      "https://mql4traderai.com/success",
		CancelURL:       "https://mql4traderai.com/cancel",
		ProviderTimeout: 5 * time.Second,
	})
}

func TestCreateCheckoutSession_Success(t *testing.T) {
	var gotReq CreateCheckoutSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		// basic auth shop-1:secret
		assert.Equal(t, "Basic c2hvcC0xOnNlY3JldA==", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"cs-123","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://pay.example.com/cs-123"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	session, err := client.CreateCheckoutSession(context.Background(), "buyer@example.com")

	require.NoError(t, err)
	assert.Equal(t, "cs-123", session.ID)
	assert.Equal(t, "https://pay.example.com/cs-123", session.Confirmation.ConfirmationURL)
	assert.Equal(t, "buyer@example.com", gotReq.CustomerEmail)
	assert.Equal(t, "https://mql4traderai.com/success", gotReq.SuccessURL)
	assert.Equal(t, "https://mql4traderai.com/cancel", gotReq.CancelURL)
}

func TestCreateCheckoutSession_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateCheckoutSession(context.Background(), "buyer@example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

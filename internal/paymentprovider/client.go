// Package paymentprovider содержит HTTP клиент платежного провайдера.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aceswin/mql4traderai/internal/config"
)

// Client клиент API платежного провайдера.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

// NewClient создает новый клиент платежного провайдера.
func NewClient(cfg config.PaymentProvider) *Client {
	timeout := cfg.ProviderTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     cfg.ShopID,
		secretKey:  cfg.ProviderSecret,
		apiURL:     cfg.ProviderAPIURL,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	// ключ идемпотентности на случай повтора запроса
	req.Header.Set("Idempotence-Key", uuid.NewString())
	return req, nil
}

// CreateCheckoutSession создает у провайдера сессию оплаты полного доступа
// и возвращает URL для редиректа покупателя.
func (c *Client) CreateCheckoutSession(ctx context.Context, customerEmail string) (*CreateCheckoutSessionResponse, error) {
	reqParams := CreateCheckoutSessionRequest{
		CustomerEmail: customerEmail,
		SuccessURL:    c.successURL,
		CancelURL:     c.cancelURL,
		Description:   "MQL4TraderAI unlimited access",
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/checkout/sessions", reqParams)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.New("unexpected status: " + resp.Status)
	}

	var sessionResp CreateCheckoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		return nil, err
	}
	return &sessionResp, nil
}

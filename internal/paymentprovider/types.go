package paymentprovider

// Запрос на создание checkout-сессии у провайдера
type CreateCheckoutSessionRequest struct {
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
	Description   string `json:"description,omitempty"`
}

// Ответ провайдера на создание checkout-сессии
type CreateCheckoutSessionResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

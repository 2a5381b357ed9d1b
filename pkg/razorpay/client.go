package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/cartloop/cartloop-backend/pkg/config"
	"github.com/cartloop/cartloop-backend/pkg/logger"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
)

// ProviderOrder is the subset of the provider order object the platform uses.
type ProviderOrder struct {
	ID          string
	AmountCents int64
	Currency    string
	Receipt     string
	Status      string
}

// ProviderPayment is the subset of the provider payment object the platform uses.
type ProviderPayment struct {
	ID          string
	OrderID     string
	Status      string
	AmountCents int64
	Method      string
}

// Client wraps the Razorpay SDK plus the secrets needed for signature checks.
type Client struct {
	api           *razorpay.Client
	keyID         string
	keySecret     string
	webhookSecret string
	currency      string
}

// NewClient initializes the Razorpay SDK with the configured credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	api := razorpay.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{
		api:           api,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		currency:      strings.ToUpper(strings.TrimSpace(cfg.Currency)),
	}, nil
}

// KeyID returns the public key id handed to clients for checkout.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// Currency returns the configured settlement currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder opens a provider order for the given amount. Receipt must fit the
// provider's 40-character limit; callers are expected to truncate.
func (c *Client) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]interface{}) (*ProviderOrder, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if amountCents <= 0 {
		return nil, fmt.Errorf("provider order amount must be positive, got %d", amountCents)
	}
	if len(receipt) > 40 {
		return nil, fmt.Errorf("receipt %q exceeds 40 characters", receipt)
	}

	data := map[string]interface{}{
		"amount":   amountCents,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("creating provider order: %w", err)
	}
	return orderFromBody(body), nil
}

// FetchPayment pulls the current payment object from the provider.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not initialized")
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, errors.New("payment id is required")
	}

	body, err := c.api.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching provider payment %s: %w", paymentID, err)
	}
	return paymentFromBody(body), nil
}

// VerifyPaymentSignature checks the checkout callback signature
// (HMAC-SHA256 over "<order_id>|<payment_id>" with the key secret).
func (c *Client) VerifyPaymentSignature(providerOrderID, providerPaymentID, signature string) bool {
	if c == nil {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   providerOrderID,
		"razorpay_payment_id": providerPaymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.keySecret)
}

// VerifyWebhookSignature checks the raw webhook body against the
// X-Razorpay-Signature header using the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

func orderFromBody(body map[string]interface{}) *ProviderOrder {
	return &ProviderOrder{
		ID:          stringField(body, "id"),
		AmountCents: int64Field(body, "amount"),
		Currency:    stringField(body, "currency"),
		Receipt:     stringField(body, "receipt"),
		Status:      stringField(body, "status"),
	}
}

func paymentFromBody(body map[string]interface{}) *ProviderPayment {
	return &ProviderPayment{
		ID:          stringField(body, "id"),
		OrderID:     stringField(body, "order_id"),
		Status:      stringField(body, "status"),
		AmountCents: int64Field(body, "amount"),
		Method:      stringField(body, "method"),
	}
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(body map[string]interface{}, key string) int64 {
	if body == nil {
		return 0
	}
	switch v := body[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

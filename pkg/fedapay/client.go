package fedapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jadorel/afrimarket-backend/pkg/config"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "live"

	defaultTimeout = 15 * time.Second
)

var (
	errAPIKeyRequired        = errors.New("fedapay api key is required")
	errWebhookSecretRequired = errors.New("fedapay webhook secret is required")
	errInvalidEnv            = fmt.Errorf("fedapay environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired        = errors.New("fedapay logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox-api.fedapay.com",
	productionEnv: "https://api.fedapay.com",
}

// Client wraps the FedaPay REST API with centralized auth, logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	environment   string
	webhookSecret string
	baseURL       string
	callbackURL   string
	logger        *logger.Logger
}

// CreateTransactionParams carries the fields needed to open a hosted checkout session.
type CreateTransactionParams struct {
	Reference     string
	Description   string
	AmountCents   int
	Currency      string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
}

// Transaction mirrors the FedaPay transaction entity fields the platform reads.
type Transaction struct {
	ID          int64  `json:"id"`
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
	Mode        string `json:"mode,omitempty"`
}

// CheckoutSession is the result of a transaction create plus token generation.
type CheckoutSession struct {
	TransactionID int64
	Reference     string
	Token         string
	PaymentURL    string
}

// NewClient validates the credentials and builds the REST wrapper.
func NewClient(ctx context.Context, cfg config.FedaPayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		apiKey:        apiKey,
		environment:   env,
		webhookSecret: webhookSecret,
		baseURL:       baseURLs[env],
		callbackURL:   strings.TrimSpace(cfg.CallbackURL),
		logger:        logg,
	}

	logg.Info(ctx, "fedapay client initialized")
	return c, nil
}

// Environment reports the normalized FedaPay environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook shared secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateCheckout creates a transaction and generates its payment token/URL.
func (c *Client) CreateCheckout(ctx context.Context, params CreateTransactionParams) (*CheckoutSession, error) {
	tx, err := c.createTransaction(ctx, params)
	if err != nil {
		return nil, err
	}

	token, paymentURL, err := c.generateToken(ctx, tx.ID)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Token:         token,
		PaymentURL:    paymentURL,
	}, nil
}

// GetTransaction fetches a transaction by its gateway id.
func (c *Client) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	var out struct {
		Transaction Transaction `json:"v1/transaction"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/transactions/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Transaction, nil
}

func (c *Client) createTransaction(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	if strings.TrimSpace(params.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be positive")
	}

	body := map[string]any{
		"description":        params.Description,
		"amount":             params.AmountCents,
		"currency":           map[string]string{"iso": params.Currency},
		"callback_url":       c.callbackURL,
		"merchant_reference": params.Reference,
		"custom_metadata":    map[string]string{"reference": params.Reference},
		"customer": map[string]any{
			"email": params.CustomerEmail,
		},
	}
	if params.CustomerName != "" {
		body["customer"].(map[string]any)["lastname"] = params.CustomerName
	}
	if params.CustomerPhone != "" {
		body["customer"].(map[string]any)["phone_number"] = map[string]string{"number": params.CustomerPhone}
	}

	c.log(ctx, "request", "create_transaction", map[string]any{
		"reference": params.Reference,
		"amount":    params.AmountCents,
		"currency":  params.Currency,
	})

	var out struct {
		Transaction Transaction `json:"v1/transaction"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", body, &out); err != nil {
		c.log(ctx, "error", "create_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_transaction", map[string]any{
		"transaction_id": out.Transaction.ID,
		"status":         out.Transaction.Status,
	})
	return &out.Transaction, nil
}

func (c *Client) generateToken(ctx context.Context, transactionID int64) (token, paymentURL string, err error) {
	var out struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	path := fmt.Sprintf("/v1/transactions/%d/token", transactionID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		c.log(ctx, "error", "generate_token", map[string]any{
			"transaction_id": transactionID,
			"error":          err.Error(),
		})
		return "", "", err
	}
	if out.Token == "" || out.URL == "" {
		return "", "", pkgerrors.New(pkgerrors.CodePaymentFailed, "gateway returned an empty payment token")
	}
	return out.Token, out.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding fedapay request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building fedapay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fedapay request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading fedapay response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.mapGatewayError(resp.StatusCode, payload)
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decoding fedapay response: %w", err)
		}
	}
	return nil
}

func (c *Client) mapGatewayError(status int, payload []byte) error {
	var apiErr struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &apiErr)
	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = fmt.Sprintf("gateway responded with status %d", status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway rejected credentials")
	case status == http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, "gateway transaction not found")
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		return pkgerrors.New(pkgerrors.CodePaymentFailed, message)
	case status >= 500:
		return pkgerrors.New(pkgerrors.CodeDependency, message)
	default:
		return pkgerrors.New(pkgerrors.CodePaymentFailed, message)
	}
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{
		"gateway":   "fedapay",
		"operation": operation,
		"phase":     phase,
	}
	for k, v := range fields {
		merged[k] = v
	}
	logCtx := c.logger.WithFields(ctx, merged)
	c.logger.Info(logCtx, "fedapay "+operation)
}

func normalizeEnv(env string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(env))
	switch normalized {
	case sandboxEnv, productionEnv:
		return normalized, nil
	case "":
		return sandboxEnv, nil
	default:
		return "", errInvalidEnv
	}
}

package fedapaywebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jadorel/afrimarket-backend/internal/payments"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
)

type callbackHandler interface {
	HandleCallback(ctx context.Context, event payments.CallbackEvent) error
}

// Event is the envelope FedaPay posts to the webhook endpoint. The event kind
// arrives as "name" or "type" depending on the API revision; the entity
// carries the transaction in its post-transition state.
type Event struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Entity Entity `json:"entity"`
}

// Kind returns the event identifier regardless of which key carried it.
func (e Event) Kind() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Type
}

// Entity is the transaction snapshot embedded in a webhook event.
type Entity struct {
	ID            int64  `json:"id"`
	Reference     string `json:"reference"`
	MerchantRef   string `json:"merchant_reference"`
	Status        string `json:"status"`
	Amount        int    `json:"amount"`
	Currency      string `json:"currency"`
	Mode          string `json:"mode"`
	ApprovedAt    string `json:"approved_at"`
	CustomerEmail string `json:"customer_email"`
}

// Service turns raw FedaPay webhook bodies into normalized payment callbacks.
type Service struct {
	handler callbackHandler
}

func NewService(handler callbackHandler) (*Service, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "callback handler required")
	}
	return &Service{handler: handler}, nil
}

// HandleBody parses a webhook payload and forwards transaction events. Events
// that are not about transactions are acknowledged without action.
func (s *Service) HandleBody(ctx context.Context, body []byte) error {
	if len(body) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "empty webhook body")
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse webhook body")
	}
	kind := event.Kind()
	if !strings.HasPrefix(strings.ToLower(kind), "transaction.") {
		return nil
	}
	if event.Entity.ID == 0 && event.Entity.MerchantRef == "" && event.Entity.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction entity missing")
	}

	// FedaPay generates its own reference; the merchant-side reference we
	// set at checkout creation rides in merchant_reference.
	reference := event.Entity.MerchantRef
	if reference == "" {
		reference = event.Entity.Reference
	}

	status := event.Entity.Status
	if status == "" {
		if _, after, found := strings.Cut(kind, "."); found {
			status = after
		}
	}

	return s.handler.HandleCallback(ctx, payments.CallbackEvent{
		EventID:       event.ID,
		Name:          kind,
		TransactionID: event.Entity.ID,
		Reference:     reference,
		Status:        status,
		AmountCents:   event.Entity.Amount,
		Raw:           json.RawMessage(body),
	})
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// OrderCreatedEvent signals that checkout converted a cart into an order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerID    *uuid.UUID          `json:"customer_id,omitempty"`
	CustomerEmail string              `json:"customer_email"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Currency      enums.Currency      `json:"currency"`
	ItemCount     int                 `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	Note        string            `json:"note,omitempty"`
}

// OrderCancelledEvent is emitted when a cancellable order is voided.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	CancelledAt time.Time  `json:"cancelled_at"`
	Reason      string     `json:"reason,omitempty"`
}

// OrderExpiredEvent describes unpaid orders voided by the reaper.
type OrderExpiredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	ExpiredAt   time.Time `json:"expired_at"`
	TTLHours    int       `json:"ttl_hours"`
}

// PaymentSettledEvent is emitted once per payment when the gateway approves.
type PaymentSettledEvent struct {
	PaymentID     uuid.UUID      `json:"payment_id"`
	OrderID       uuid.UUID      `json:"order_id"`
	Reference     string         `json:"reference"`
	TransactionID string         `json:"transaction_id,omitempty"`
	AmountCents   int            `json:"amount_cents"`
	Currency      enums.Currency `json:"currency"`
	PaidAt        time.Time      `json:"paid_at"`
}

// PaymentFailedEvent is emitted when the gateway declines a payment.
type PaymentFailedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	Reference   string    `json:"reference"`
	Reason      string    `json:"reason,omitempty"`
	AmountCents int       `json:"amount_cents"`
}

// PaymentRefundedEvent is emitted when a refund completes.
type PaymentRefundedEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AmountCents int       `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
}

// StockReleasedEvent reports reserved stock returned to the pool.
type StockReleasedEvent struct {
	OrderID  uuid.UUID           `json:"order_id"`
	Released []StockReleasedLine `json:"released"`
}

// StockReleasedLine is one product quantity returned by a release.
type StockReleasedLine struct {
	ProductID   uuid.UUID  `json:"product_id"`
	VariationID *uuid.UUID `json:"variation_id,omitempty"`
	Quantity    int        `json:"quantity"`
}

// NotificationRequestedEvent tells the notification worker to fan out a message.
type NotificationRequestedEvent struct {
	NotificationID uuid.UUID                 `json:"notification_id"`
	RecipientKind  enums.RecipientKind       `json:"recipient_kind"`
	RecipientID    *uuid.UUID                `json:"recipient_id,omitempty"`
	Type           enums.NotificationType    `json:"type"`
	Channel        enums.NotificationChannel `json:"channel"`
	OrderID        *uuid.UUID                `json:"order_id,omitempty"`
}

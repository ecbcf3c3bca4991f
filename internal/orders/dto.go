package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// OrderSummary is the list-view projection of an order.
type OrderSummary struct {
	ID            uuid.UUID                `json:"id"`
	OrderNumber   string                   `json:"order_number"`
	Status        enums.OrderStatus        `json:"status"`
	PaymentStatus enums.OrderPaymentStatus `json:"payment_status"`
	Currency      enums.Currency           `json:"currency"`
	TotalCents    int                      `json:"total_cents"`
	ItemCount     int                      `json:"item_count"`
	CreatedAt     time.Time                `json:"created_at"`
}

// OrderList is a cursor page of order summaries.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

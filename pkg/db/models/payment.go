package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// Payment tracks one payment attempt for an order. Reference is the
// merchant-side correlation id handed to the gateway and echoed back on
// callbacks.
type Payment struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Reference       string              `gorm:"column:reference;not null;uniqueIndex"`
	Method          enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status          enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountCents     int                 `gorm:"column:amount_cents;not null"`
	Currency        enums.Currency      `gorm:"column:currency;type:text;not null;default:'XOF'"`
	TransactionID   *string             `gorm:"column:transaction_id;index"`
	GatewayResponse json.RawMessage     `gorm:"column:gateway_response;type:jsonb"`
	FailureReason   *string             `gorm:"column:failure_reason"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Refund records a full or partial reversal against a completed payment.
type Refund struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID       uuid.UUID          `gorm:"column:payment_id;type:uuid;not null;index"`
	OrderID         uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents     int                `gorm:"column:amount_cents;not null"`
	Status          enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Reason          *string            `gorm:"column:reason"`
	GatewayRefundID *string            `gorm:"column:gateway_refund_id"`
	ProcessedAt     *time.Time         `gorm:"column:processed_at"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

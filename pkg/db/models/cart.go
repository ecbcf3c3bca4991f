package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// Cart is the mutable pre-order container. Ownership is either a registered
// customer or an anonymous session token, never both; anonymous carts carry
// an expiry consumed by the expiration sweep.
type Cart struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID    *uuid.UUID     `gorm:"column:customer_id;type:uuid;index"`
	SessionToken  *string        `gorm:"column:session_token;uniqueIndex"`
	CouponCode    *string        `gorm:"column:coupon_code"`
	Currency      enums.Currency `gorm:"column:currency;type:text;not null;default:'XOF'"`
	SubtotalCents int            `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents int            `gorm:"column:discount_cents;not null;default:0"`
	TaxCents      int            `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents int            `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int            `gorm:"column:total_cents;not null;default:0"`
	ExpiresAt     *time.Time     `gorm:"column:expires_at;index"`
	Items         []CartItem     `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is one line of a cart with the unit price snapshotted at add time.
type CartItem struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID  `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID         uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariationID       *uuid.UUID `gorm:"column:variation_id;type:uuid"`
	Quantity          int        `gorm:"column:quantity;not null"`
	UnitPriceCents    int        `gorm:"column:unit_price_cents;not null"`
	LineSubtotalCents int        `gorm:"column:line_subtotal_cents;not null"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
	"github.com/jadorel/afrimarket-backend/pkg/types"
)

// Order is the immutable-after-creation snapshot of a purchase. Monetary
// fields are copied from the cart at creation and never recomputed.
type Order struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string                   `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID    *uuid.UUID               `gorm:"column:customer_id;type:uuid;index"`
	CustomerEmail string                   `gorm:"column:customer_email;not null"`
	CustomerPhone *string                  `gorm:"column:customer_phone"`
	Status        enums.OrderStatus        `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.OrderPaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null"`
	CouponCode    *string                  `gorm:"column:coupon_code"`
	Currency      enums.Currency           `gorm:"column:currency;type:text;not null;default:'XOF'"`
	SubtotalCents int                      `gorm:"column:subtotal_cents;not null"`
	DiscountCents int                      `gorm:"column:discount_cents;not null;default:0"`
	TaxCents      int                      `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents int                      `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int                      `gorm:"column:total_cents;not null"`
	ShippingAddr  types.Address            `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddr   types.Address            `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Notes         *string                  `gorm:"column:notes"`
	Items         []OrderItem              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory []OrderStatusHistory     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments      []Payment                `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt           `gorm:"column:deleted_at;index"`
}

// OrderItem snapshots the product at order time; later product edits must
// never alter historical orders.
type OrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	VariationID    *uuid.UUID `gorm:"column:variation_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	SKU            string     `gorm:"column:sku;not null"`
	VariationName  *string    `gorm:"column:variation_name"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// OrderStatusHistory is the append-only audit trail of status transitions.
type OrderStatusHistory struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	Status    enums.OrderStatus `gorm:"column:status;type:text;not null"`
	Note      *string           `gorm:"column:note"`
	ActorID   *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

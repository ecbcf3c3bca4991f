package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/jadorel/afrimarket-backend/pkg/db/types"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// Promotion is a coupon rule. Codes are stored upper-cased. Empty allowlists
// mean universal applicability.
type Promotion struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                  string              `gorm:"column:code;not null;uniqueIndex"`
	Name                  string              `gorm:"column:name;not null"`
	Type                  enums.PromotionType `gorm:"column:type;type:text;not null"`
	Value                 int                 `gorm:"column:value;not null"`
	MinPurchaseCents      *int                `gorm:"column:min_purchase_cents"`
	MaxDiscountCents      *int                `gorm:"column:max_discount_cents"`
	UsageLimit            *int                `gorm:"column:usage_limit"`
	UsageLimitPerCustomer *int                `gorm:"column:usage_limit_per_customer"`
	UsageCount            int                 `gorm:"column:usage_count;not null;default:0"`
	Active                bool                `gorm:"column:active;not null;default:true"`
	StartsAt              *time.Time          `gorm:"column:starts_at"`
	ExpiresAt             *time.Time          `gorm:"column:expires_at"`
	ProductIDs            dbtypes.UUIDArray   `gorm:"column:product_ids;type:uuid[]"`
	CategoryIDs           dbtypes.UUIDArray   `gorm:"column:category_ids;type:uuid[]"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PromotionUsage is one immutable redemption record, used to enforce
// per-customer limits.
type PromotionUsage struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PromotionID   uuid.UUID  `gorm:"column:promotion_id;type:uuid;not null;index"`
	CustomerID    *uuid.UUID `gorm:"column:customer_id;type:uuid;index"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	DiscountCents int        `gorm:"column:discount_cents;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

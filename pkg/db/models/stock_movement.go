package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// StockMovement is an append-only inventory audit row. Corrections are new
// movements with an appropriate reason, never deletions.
type StockMovement struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID                 `gorm:"column:product_id;type:uuid;not null;index"`
	VariationID    *uuid.UUID                `gorm:"column:variation_id;type:uuid"`
	QuantityDelta  int                       `gorm:"column:quantity_delta;not null"`
	QuantityBefore int                       `gorm:"column:quantity_before;not null"`
	QuantityAfter  int                       `gorm:"column:quantity_after;not null"`
	Reason         enums.StockMovementReason `gorm:"column:reason;type:text;not null"`
	OrderID        *uuid.UUID                `gorm:"column:order_id;type:uuid;index"`
	Note           *string                   `gorm:"column:note"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

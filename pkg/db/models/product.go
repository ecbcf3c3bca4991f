package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// Product is a sellable catalogue entry. StockQuantity is a cached counter;
// the stock_movements table remains the audit source of truth.
type Product struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string             `gorm:"column:name;not null"`
	SKU            string             `gorm:"column:sku;not null;uniqueIndex"`
	Description    *string            `gorm:"column:description"`
	CategoryID     *uuid.UUID         `gorm:"column:category_id;type:uuid"`
	PriceCents     int                `gorm:"column:price_cents;not null"`
	Currency       enums.Currency     `gorm:"column:currency;type:text;not null;default:'XOF'"`
	TrackInventory bool               `gorm:"column:track_inventory;not null;default:true"`
	StockQuantity  int                `gorm:"column:stock_quantity;not null;default:0"`
	Active         bool               `gorm:"column:active;not null;default:true"`
	Variations     []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt     `gorm:"column:deleted_at;index"`
}

// ProductVariation is a purchasable variant (size, colour) with its own
// price and cached stock counter.
type ProductVariation struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name          string    `gorm:"column:name;not null"`
	SKU           string    `gorm:"column:sku;not null;uniqueIndex"`
	PriceCents    int       `gorm:"column:price_cents;not null"`
	StockQuantity int       `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Category groups products for promotion allowlists and browsing.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

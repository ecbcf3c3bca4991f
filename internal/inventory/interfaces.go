package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
)

// Repository defines persistence operations for products and the movement log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindVariation(ctx context.Context, variationID uuid.UUID) (*models.ProductVariation, error)
	ApplyStockDelta(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID, delta int) (applied bool, err error)
	CurrentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error)
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	FindMovementsByOrder(ctx context.Context, orderID uuid.UUID, reason string) ([]models.StockMovement, error)
}

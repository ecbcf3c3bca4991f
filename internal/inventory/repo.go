package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", productID).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindVariation(ctx context.Context, variationID uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	err := r.db.WithContext(ctx).Where("id = ?", variationID).First(&variation).Error
	if err != nil {
		return nil, err
	}
	return &variation, nil
}

// ApplyStockDelta adjusts the cached counter in a single conditional UPDATE so
// concurrent reservations for the same row serialize at the database. A zero
// row count means the guard rejected the change (insufficient stock).
func (r *repository) ApplyStockDelta(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID, delta int) (bool, error) {
	var res *gorm.DB
	if variationID != nil {
		res = r.db.WithContext(ctx).Exec(`
			UPDATE product_variations
			SET stock_quantity = stock_quantity + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock_quantity + ? >= 0
		`, delta, *variationID, delta)
	} else {
		res = r.db.WithContext(ctx).Exec(`
			UPDATE products
			SET stock_quantity = stock_quantity + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND stock_quantity + ? >= 0
		`, delta, productID, delta)
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CurrentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error) {
	var quantity int
	if variationID != nil {
		err := r.db.WithContext(ctx).
			Model(&models.ProductVariation{}).
			Where("id = ?", *variationID).
			Pluck("stock_quantity", &quantity).Error
		return quantity, err
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Pluck("stock_quantity", &quantity).Error
	return quantity, err
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) FindMovementsByOrder(ctx context.Context, orderID uuid.UUID, reason string) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	query := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if reason != "" {
		query = query.Where("reason = ?", reason)
	}
	err := query.Order("created_at ASC").Find(&rows).Error
	return rows, err
}

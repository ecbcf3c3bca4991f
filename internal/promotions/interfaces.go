package promotions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
)

// Repository defines persistence operations for promotions and usage records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
	CountUsageByCustomer(ctx context.Context, promotionID, customerID uuid.UUID) (int64, error)
	IncrementUsage(ctx context.Context, promotionID uuid.UUID) (bool, error)
	CreateUsage(ctx context.Context, usage *models.PromotionUsage) error
}

package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
)

// Repository defines persistence operations for payments and refunds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
	SetTransactionID(ctx context.Context, paymentID uuid.UUID, transactionID string) error
	MarkCompleted(ctx context.Context, paymentID uuid.UUID, transactionID string, paidAt time.Time, gatewayResponse json.RawMessage) (bool, error)
	MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string, gatewayResponse json.RawMessage) (bool, error)
	MarkRefunded(ctx context.Context, paymentID uuid.UUID) error
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	SumCompletedRefunds(ctx context.Context, paymentID uuid.UUID) (int, error)
}

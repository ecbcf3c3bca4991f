package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
)

// Service is the stock ledger: every stock_quantity mutation goes through it
// and leaves an audit movement behind.
type Service interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID, quantity int) error
	RecordMovement(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockMovement, error)
	CurrentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error)
	ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.StockMovement, error)
}

// MovementInput describes one signed stock adjustment.
type MovementInput struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Delta       int
	Reason      enums.StockMovementReason
	OrderID     *uuid.UUID
	Note        *string
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the stock ledger with the required dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.loadProduct(ctx, s.repo, productID)
	if err != nil {
		return err
	}
	if !product.TrackInventory {
		return nil
	}

	current, err := s.repo.CurrentStock(ctx, productID, variationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read current stock")
	}
	if current < quantity {
		return outOfStock(product.Name, productID, variationID, quantity, current)
	}
	return nil
}

// RecordMovement applies the delta through a conditional UPDATE and appends the
// audit row. Returns nil without side effects when the product does not track
// inventory.
func (s *service) RecordMovement(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.StockMovement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock movement")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement delta must be non-zero")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid movement reason %q", input.Reason))
	}

	repo := s.repo.WithTx(tx)
	product, err := s.loadProduct(ctx, repo, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.TrackInventory {
		return nil, nil
	}

	applied, err := repo.ApplyStockDelta(ctx, input.ProductID, input.VariationID, input.Delta)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply stock delta")
	}
	if !applied {
		current, readErr := repo.CurrentStock(ctx, input.ProductID, input.VariationID)
		if readErr != nil {
			current = 0
		}
		return nil, outOfStock(product.Name, input.ProductID, input.VariationID, -input.Delta, current)
	}

	after, err := repo.CurrentStock(ctx, input.ProductID, input.VariationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock after movement")
	}

	movement := &models.StockMovement{
		ProductID:      input.ProductID,
		VariationID:    input.VariationID,
		QuantityDelta:  input.Delta,
		QuantityBefore: after - input.Delta,
		QuantityAfter:  after,
		Reason:         input.Reason,
		OrderID:        input.OrderID,
		Note:           input.Note,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append stock movement")
	}
	return movement, nil
}

func (s *service) CurrentStock(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error) {
	current, err := s.repo.CurrentStock(ctx, productID, variationID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read current stock")
	}
	return current, nil
}

// ReleaseOrder reverses the sale movements recorded at order creation by
// appending return movements. Calling it twice for the same order is a no-op.
func (s *service) ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.StockMovement, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	returns, err := repo.FindMovementsByOrder(ctx, orderID, string(enums.StockMovementReasonReturn))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return movements")
	}
	if len(returns) > 0 {
		return nil, nil
	}

	sales, err := repo.FindMovementsByOrder(ctx, orderID, string(enums.StockMovementReasonSale))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale movements")
	}

	released := make([]models.StockMovement, 0, len(sales))
	for _, sale := range sales {
		movement, err := s.RecordMovement(ctx, tx, MovementInput{
			ProductID:   sale.ProductID,
			VariationID: sale.VariationID,
			Delta:       -sale.QuantityDelta,
			Reason:      enums.StockMovementReasonReturn,
			OrderID:     &orderID,
		})
		if err != nil {
			return nil, err
		}
		if movement != nil {
			released = append(released, *movement)
		}
	}
	if s.logg != nil && len(released) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":  orderID.String(),
			"movements": len(released),
		})
		s.logg.Info(logCtx, "reserved stock released")
	}
	return released, nil
}

func (s *service) loadProduct(ctx context.Context, repo Repository, productID uuid.UUID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func outOfStock(name string, productID uuid.UUID, variationID *uuid.UUID, requested, available int) error {
	details := map[string]any{
		"product_id":   productID.String(),
		"product_name": name,
		"requested":    requested,
		"available":    available,
	}
	if variationID != nil {
		details["variation_id"] = variationID.String()
	}
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("insufficient stock for %q", name)).
		WithDetails(details)
}

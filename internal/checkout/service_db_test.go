package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/internal/cart"
	"github.com/jadorel/afrimarket-backend/internal/inventory"
	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/internal/promotions"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Cart{},
		&models.CartItem{},
		&models.Product{},
		&models.ProductVariation{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.StockMovement{},
		&models.Promotion{},
		&models.PromotionUsage{},
		&models.OutboxEvent{},
	))
	return db
}

// Drives Execute against a real database so the rollback covers actual
// writes, not stubbed ones: the order and its items are inserted before the
// stock reservation fails, and every row must be gone afterwards.
func TestExecuteRollsBackAllWritesOnOutOfStock(t *testing.T) {
	db := setupCheckoutTestDB(t)
	ctx := context.Background()

	product := &models.Product{
		ID:             uuid.New(),
		Name:           "Wax Print Tote",
		SKU:            "WPT-01",
		PriceCents:     5000,
		TrackInventory: true,
		Active:         true,
		StockQuantity:  1,
	}
	require.NoError(t, db.Create(product).Error)

	customerID := uuid.New()
	cartRecord := &models.Cart{
		ID:            uuid.New(),
		CustomerID:    &customerID,
		Currency:      enums.CurrencyXOF,
		SubtotalCents: 15000,
		TotalCents:    15000,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: product.ID, Quantity: 3, UnitPriceCents: 5000, LineSubtotalCents: 15000},
		},
	}
	require.NoError(t, db.Create(cartRecord).Error)

	inventoryRepo := inventory.NewRepository(db)
	inventoryService, err := inventory.NewService(inventoryRepo, nil)
	require.NoError(t, err)
	promotionsService, err := promotions.NewService(promotions.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(
		gormTxRunner{db: db},
		cart.NewRepository(db),
		orders.NewRepository(db),
		inventoryRepo,
		inventoryService,
		promotionsService,
		outbox.NewService(outbox.NewRepository(db), nil),
	)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, cart.Owner{CustomerID: &customerID}, checkoutInput())
	require.Error(t, err)
	typed, ok := err.(*pkgerrors.Error)
	require.True(t, ok, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeOutOfStock, typed.Code())

	var count int64
	for _, model := range []any{
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.StockMovement{},
		&models.PromotionUsage{},
		&models.OutboxEvent{},
	} {
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count, "expected no persisted rows for %T", model)
	}

	var stock int
	require.NoError(t, db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Select("stock_quantity").
		Scan(&stock).Error)
	require.Equal(t, 1, stock)

	var items int64
	require.NoError(t, db.Model(&models.CartItem{}).
		Where("cart_id = ?", cartRecord.ID).
		Count(&items).Error)
	require.EqualValues(t, 1, items)
}

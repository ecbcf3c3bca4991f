package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	"github.com/jadorel/afrimarket-backend/pkg/pagination"
	"github.com/jadorel/afrimarket-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Payment{},
	))
	return db
}

func testAddress() types.Address {
	return types.Address{
		RecipientName: "Ama Mensah",
		Line1:         "12 Rue du Commerce",
		City:          "Cotonou",
		Country:       "BJ",
	}
}

func buildOrder(orderNumber string, customerID *uuid.UUID) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   orderNumber,
		CustomerID:    customerID,
		CustomerEmail: "buyer@example.com",
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.OrderPaymentStatusPending,
		PaymentMethod: enums.PaymentMethodFedaPay,
		Currency:      enums.CurrencyXOF,
		SubtotalCents: 10000,
		TotalCents:    10000,
		ShippingAddr:  testAddress(),
		BillingAddr:   testAddress(),
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductName: "widget", SKU: "W-1", UnitPriceCents: 5000, Quantity: 2, TotalCents: 10000},
		},
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	created, err := repo.Create(ctx, buildOrder("AM-0001", &customerID))
	require.NoError(t, err)

	require.NoError(t, repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
		OrderID: created.ID,
		Status:  enums.OrderStatusPending,
	}))

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "AM-0001", found.OrderNumber)
	require.Len(t, found.Items, 1)
	require.Len(t, found.StatusHistory, 1)
	require.Equal(t, "Cotonou", found.ShippingAddr.City)

	byNumber, err := repo.FindByOrderNumber(ctx, "AM-0001")
	require.NoError(t, err)
	require.Equal(t, created.ID, byNumber.ID)
}

func TestRepositoryStatusUpdates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, buildOrder("AM-0002", nil))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, created.ID, enums.OrderStatusProcessing))
	require.NoError(t, repo.UpdatePaymentStatus(ctx, created.ID, enums.OrderPaymentStatusPaid))

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, found.Status)
	require.Equal(t, enums.OrderPaymentStatusPaid, found.PaymentStatus)
}

func TestRepositoryListByCustomer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	otherID := uuid.New()
	_, err := repo.Create(ctx, buildOrder("AM-0003", &customerID))
	require.NoError(t, err)
	_, err = repo.Create(ctx, buildOrder("AM-0004", &customerID))
	require.NoError(t, err)
	_, err = repo.Create(ctx, buildOrder("AM-0005", &otherID))
	require.NoError(t, err)

	list, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
	require.Nil(t, list.NextCursor)

	page, err := repo.ListByCustomer(ctx, customerID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.NotNil(t, page.NextCursor)
}

func TestRepositoryFindPendingBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	stale, err := repo.Create(ctx, buildOrder("AM-0006", nil))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	fresh, err := repo.Create(ctx, buildOrder("AM-0007", nil))
	require.NoError(t, err)

	paid := buildOrder("AM-0008", nil)
	paid.PaymentStatus = enums.OrderPaymentStatusPaid
	_, err = repo.Create(ctx, paid)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).
		Where("id = ?", paid.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)

	rows, err := repo.FindPendingBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, stale.ID, rows[0].ID)
	require.NotEqual(t, fresh.ID, rows[0].ID)
}

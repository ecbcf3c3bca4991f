package promotions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	dbtypes "github.com/jadorel/afrimarket-backend/pkg/db/types"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
)

type stubPromotionRepo struct {
	promotions map[string]*models.Promotion
	usageByKey map[string]int64
	usages     []*models.PromotionUsage
}

func newStubPromotionRepo() *stubPromotionRepo {
	return &stubPromotionRepo{
		promotions: map[string]*models.Promotion{},
		usageByKey: map[string]int64{},
	}
}

func (s *stubPromotionRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubPromotionRepo) FindByCode(_ context.Context, code string) (*models.Promotion, error) {
	promotion, ok := s.promotions[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return promotion, nil
}

func (s *stubPromotionRepo) CountUsageByCustomer(_ context.Context, promotionID, customerID uuid.UUID) (int64, error) {
	return s.usageByKey[promotionID.String()+":"+customerID.String()], nil
}

func (s *stubPromotionRepo) IncrementUsage(_ context.Context, promotionID uuid.UUID) (bool, error) {
	for _, promotion := range s.promotions {
		if promotion.ID != promotionID {
			continue
		}
		if promotion.UsageLimit != nil && promotion.UsageCount >= *promotion.UsageLimit {
			return false, nil
		}
		promotion.UsageCount++
		return true, nil
	}
	return false, nil
}

func (s *stubPromotionRepo) CreateUsage(_ context.Context, usage *models.PromotionUsage) error {
	s.usages = append(s.usages, usage)
	return nil
}

func intPtr(v int) *int               { return &v }
func timePtr(t time.Time) *time.Time  { return &t }
func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func seedPromotion(repo *stubPromotionRepo, promotion *models.Promotion) *models.Promotion {
	if promotion.ID == uuid.Nil {
		promotion.ID = uuid.New()
	}
	repo.promotions[promotion.Code] = promotion
	return promotion
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func assertInvalidCoupon(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	typed, ok := err.(*pkgerrors.Error)
	if !ok {
		t.Fatalf("expected typed error, got %T", err)
	}
	if typed.Code() != pkgerrors.CodeInvalidCoupon {
		t.Fatalf("expected invalid coupon code, got %s", typed.Code())
	}
}

func TestValidateUnknownCode(t *testing.T) {
	repo := newStubPromotionRepo()
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "NOPE", CartSnapshot{SubtotalCents: 5000})
	assertInvalidCoupon(t, err)
}

func TestValidateInactive(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: false,
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "save10", CartSnapshot{SubtotalCents: 5000})
	assertInvalidCoupon(t, err)
}

func TestValidateExpired(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		ExpiresAt: timePtr(time.Now().Add(-time.Hour)),
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 5000})
	assertInvalidCoupon(t, err)
}

func TestValidateNotStartedYet(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		StartsAt: timePtr(time.Now().Add(time.Hour)),
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 5000})
	assertInvalidCoupon(t, err)
}

func TestValidateGlobalUsageLimit(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		UsageLimit: intPtr(3), UsageCount: 3,
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 5000})
	assertInvalidCoupon(t, err)
}

func TestValidatePerCustomerLimit(t *testing.T) {
	repo := newStubPromotionRepo()
	promotion := seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		UsageLimitPerCustomer: intPtr(1),
	})
	customerID := uuid.New()
	repo.usageByKey[promotion.ID.String()+":"+customerID.String()] = 1
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{
		CustomerID:    uuidPtr(customerID),
		SubtotalCents: 5000,
	})
	assertInvalidCoupon(t, err)
}

func TestValidatePerCustomerLimitSkippedForGuests(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		UsageLimitPerCustomer: intPtr(1),
	})
	svc := newTestService(t, repo)

	if _, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 5000}); err != nil {
		t.Fatalf("expected guest cart to pass, got %v", err)
	}
}

func TestValidateMinPurchase(t *testing.T) {
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		MinPurchaseCents: intPtr(10000),
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 9999})
	assertInvalidCoupon(t, err)

	if _, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{SubtotalCents: 10000}); err != nil {
		t.Fatalf("expected subtotal at minimum to pass, got %v", err)
	}
}

func TestValidateAllowlist(t *testing.T) {
	eligibleProduct := uuid.New()
	eligibleCategory := uuid.New()
	repo := newStubPromotionRepo()
	seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		ProductIDs:  dbtypes.UUIDArray{eligibleProduct},
		CategoryIDs: dbtypes.UUIDArray{eligibleCategory},
	})
	svc := newTestService(t, repo)

	_, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{
		SubtotalCents: 5000,
		Lines:         []CartLine{{ProductID: uuid.New()}},
	})
	assertInvalidCoupon(t, err)

	if _, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{
		SubtotalCents: 5000,
		Lines:         []CartLine{{ProductID: eligibleProduct}},
	}); err != nil {
		t.Fatalf("expected product match to pass, got %v", err)
	}

	if _, err := svc.Validate(context.Background(), "SAVE10", CartSnapshot{
		SubtotalCents: 5000,
		Lines:         []CartLine{{ProductID: uuid.New(), CategoryID: uuidPtr(eligibleCategory)}},
	}); err != nil {
		t.Fatalf("expected category match to pass, got %v", err)
	}
}

func TestEligibleAmount(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	eligibleProduct := uuid.New()
	snapshot := CartSnapshot{
		SubtotalCents: 9000,
		Lines: []CartLine{
			{ProductID: eligibleProduct, LineSubtotalCents: 4000},
			{ProductID: uuid.New(), LineSubtotalCents: 5000},
		},
	}

	unrestricted := &models.Promotion{Type: enums.PromotionTypePercentage, Value: 10}
	if got := svc.EligibleAmount(unrestricted, snapshot); got != 9000 {
		t.Fatalf("expected full subtotal 9000, got %d", got)
	}

	restricted := &models.Promotion{
		Type: enums.PromotionTypePercentage, Value: 10,
		ProductIDs: dbtypes.UUIDArray{eligibleProduct},
	}
	if got := svc.EligibleAmount(restricted, snapshot); got != 4000 {
		t.Fatalf("expected eligible line amount 4000, got %d", got)
	}
}

func TestCalculateDiscountPercentage(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	promotion := &models.Promotion{Type: enums.PromotionTypePercentage, Value: 10}

	if got := svc.CalculateDiscount(promotion, 10000); got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
}

func TestCalculateDiscountRoundsHalfUp(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	promotion := &models.Promotion{Type: enums.PromotionTypePercentage, Value: 15}

	// 15% of 1230 is 184.5, which rounds up to 185.
	if got := svc.CalculateDiscount(promotion, 1230); got != 185 {
		t.Fatalf("expected 185, got %d", got)
	}
}

func TestCalculateDiscountMaxCap(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	promotion := &models.Promotion{
		Type: enums.PromotionTypePercentage, Value: 50,
		MaxDiscountCents: intPtr(2000),
	}

	if got := svc.CalculateDiscount(promotion, 10000); got != 2000 {
		t.Fatalf("expected cap of 2000, got %d", got)
	}
}

func TestCalculateDiscountFixedAmountClampsToEligible(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	promotion := &models.Promotion{Type: enums.PromotionTypeFixedAmount, Value: 5000}

	if got := svc.CalculateDiscount(promotion, 3000); got != 3000 {
		t.Fatalf("expected clamp to 3000, got %d", got)
	}
}

func TestCalculateDiscountBuyXGetY(t *testing.T) {
	svc := newTestService(t, newStubPromotionRepo())
	promotion := &models.Promotion{Type: enums.PromotionTypeBuyXGetY, Value: 1}

	if got := svc.CalculateDiscount(promotion, 10000); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestRecordUsage(t *testing.T) {
	repo := newStubPromotionRepo()
	promotion := seedPromotion(repo, &models.Promotion{
		Code: "SAVE10", Type: enums.PromotionTypePercentage, Value: 10, Active: true,
		UsageLimit: intPtr(1),
	})
	svc := newTestService(t, repo)
	orderID := uuid.New()
	customerID := uuid.New()

	if err := svc.RecordUsage(context.Background(), &gorm.DB{}, promotion, orderID, uuidPtr(customerID), 1000); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if promotion.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", promotion.UsageCount)
	}
	if len(repo.usages) != 1 {
		t.Fatalf("expected one usage row, got %d", len(repo.usages))
	}
	if repo.usages[0].OrderID != orderID || repo.usages[0].DiscountCents != 1000 {
		t.Fatalf("unexpected usage row: %+v", repo.usages[0])
	}

	err := svc.RecordUsage(context.Background(), &gorm.DB{}, promotion, uuid.New(), uuidPtr(customerID), 1000)
	assertInvalidCoupon(t, err)
	if len(repo.usages) != 1 {
		t.Fatalf("expected no extra usage row, got %d", len(repo.usages))
	}
}

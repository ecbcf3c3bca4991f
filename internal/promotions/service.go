package promotions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
)

// CartLine is the slice of cart state the evaluator needs per item.
type CartLine struct {
	ProductID         uuid.UUID
	CategoryID        *uuid.UUID
	LineSubtotalCents int
}

// CartSnapshot carries the cart state a coupon is validated against.
type CartSnapshot struct {
	CustomerID    *uuid.UUID
	SubtotalCents int
	Lines         []CartLine
}

// Service evaluates coupon codes against carts and records redemptions.
type Service interface {
	Validate(ctx context.Context, code string, snapshot CartSnapshot) (*models.Promotion, error)
	EligibleAmount(promotion *models.Promotion, snapshot CartSnapshot) int
	CalculateDiscount(promotion *models.Promotion, eligibleAmountCents int) int
	RecordUsage(ctx context.Context, tx *gorm.DB, promotion *models.Promotion, orderID uuid.UUID, customerID *uuid.UUID, discountCents int) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the promotion evaluator.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Validate runs the short-circuit check chain; the first failing check wins.
func (s *service) Validate(ctx context.Context, code string, snapshot CartSnapshot) (*models.Promotion, error) {
	promotion, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCoupon("coupon code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}

	now := s.now()
	if !promotion.Active {
		return nil, invalidCoupon("coupon is not active")
	}
	if promotion.StartsAt != nil && now.Before(*promotion.StartsAt) {
		return nil, invalidCoupon("coupon is not active yet")
	}
	if promotion.ExpiresAt != nil && now.After(*promotion.ExpiresAt) {
		return nil, invalidCoupon("coupon has expired")
	}

	if promotion.UsageLimit != nil && promotion.UsageCount >= *promotion.UsageLimit {
		return nil, invalidCoupon("coupon usage limit reached")
	}

	if promotion.UsageLimitPerCustomer != nil && snapshot.CustomerID != nil {
		used, err := s.repo.CountUsageByCustomer(ctx, promotion.ID, *snapshot.CustomerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customer usage")
		}
		if used >= int64(*promotion.UsageLimitPerCustomer) {
			return nil, invalidCoupon("coupon already used the maximum number of times")
		}
	}

	if promotion.MinPurchaseCents != nil && snapshot.SubtotalCents < *promotion.MinPurchaseCents {
		return nil, invalidCoupon("cart subtotal below coupon minimum")
	}

	if !s.anyLineEligible(promotion, snapshot.Lines) {
		return nil, invalidCoupon("coupon does not apply to any cart item")
	}

	return promotion, nil
}

// EligibleAmount returns the cart amount a promotion's discount applies to:
// the full subtotal when the promotion has no allowlists, otherwise the sum of
// the matching lines.
func (s *service) EligibleAmount(promotion *models.Promotion, snapshot CartSnapshot) int {
	if promotion == nil {
		return 0
	}
	if len(promotion.ProductIDs) == 0 && len(promotion.CategoryIDs) == 0 {
		return snapshot.SubtotalCents
	}
	total := 0
	for _, line := range snapshot.Lines {
		if lineEligible(promotion, line) {
			total += line.LineSubtotalCents
		}
	}
	return total
}

// CalculateDiscount returns the discount in cents for the eligible amount.
// Percentage discounts round half-up; every result clamps to the cap and to
// the eligible amount itself.
func (s *service) CalculateDiscount(promotion *models.Promotion, eligibleAmountCents int) int {
	if promotion == nil || eligibleAmountCents <= 0 {
		return 0
	}

	var discount int
	switch promotion.Type {
	case enums.PromotionTypePercentage:
		discount = percentageOf(eligibleAmountCents, promotion.Value)
	case enums.PromotionTypeFixedAmount:
		discount = promotion.Value
	case enums.PromotionTypeBuyXGetY:
		// Requires item-level pairing logic the evaluator does not perform.
		return 0
	default:
		return 0
	}

	if promotion.MaxDiscountCents != nil && discount > *promotion.MaxDiscountCents {
		discount = *promotion.MaxDiscountCents
	}
	if discount > eligibleAmountCents {
		discount = eligibleAmountCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// RecordUsage appends the redemption row and increments usage_count inside the
// caller's transaction.
func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, promotion *models.Promotion, orderID uuid.UUID, customerID *uuid.UUID, discountCents int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon usage")
	}
	if promotion == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	bumped, err := repo.IncrementUsage(ctx, promotion.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !bumped {
		return invalidCoupon("coupon usage limit reached")
	}

	usage := &models.PromotionUsage{
		PromotionID:   promotion.ID,
		CustomerID:    customerID,
		OrderID:       orderID,
		DiscountCents: discountCents,
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append coupon usage")
	}
	return nil
}

func (s *service) anyLineEligible(promotion *models.Promotion, lines []CartLine) bool {
	if len(promotion.ProductIDs) == 0 && len(promotion.CategoryIDs) == 0 {
		return true
	}
	for _, line := range lines {
		if lineEligible(promotion, line) {
			return true
		}
	}
	return false
}

func lineEligible(promotion *models.Promotion, line CartLine) bool {
	for _, allowed := range promotion.ProductIDs {
		if allowed == line.ProductID {
			return true
		}
	}
	if line.CategoryID != nil {
		for _, allowed := range promotion.CategoryIDs {
			if allowed == *line.CategoryID {
				return true
			}
		}
	}
	return false
}

func percentageOf(amountCents, percent int) int {
	result := decimal.NewFromInt(int64(amountCents)).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(result.IntPart())
}

func invalidCoupon(reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidCoupon, reason)
}

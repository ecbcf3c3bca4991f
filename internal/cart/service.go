package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/internal/promotions"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
)

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error)
}

type couponEvaluator interface {
	Validate(ctx context.Context, code string, snapshot promotions.CartSnapshot) (*models.Promotion, error)
	EligibleAmount(promotion *models.Promotion, snapshot promotions.CartSnapshot) int
	CalculateDiscount(promotion *models.Promotion, eligibleAmountCents int) int
}

// Owner identifies who a cart belongs to. Exactly one field is set.
type Owner struct {
	CustomerID   *uuid.UUID
	SessionToken *string
}

// AddItemInput is the payload for adding a line to a cart.
type AddItemInput struct {
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Quantity    int
}

// Service exposes cart mutations. Totals are recomputed explicitly on every
// mutation, never by persistence hooks.
type Service interface {
	GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	Get(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, owner Owner, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, owner Owner) (*models.Cart, error)
	ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	Snapshot(ctx context.Context, cart *models.Cart) (promotions.CartSnapshot, error)
}

type service struct {
	repo     Repository
	products productLoader
	coupons  couponEvaluator
	guestTTL time.Duration
	now      func() time.Time
}

// NewService builds the cart service.
func NewService(repo Repository, products productLoader, coupons couponEvaluator, guestTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	if guestTTL <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &service{
		repo:     repo,
		products: products,
		coupons:  coupons,
		guestTTL: guestTTL,
		now:      time.Now,
	}, nil
}

func (o Owner) validate() error {
	hasCustomer := o.CustomerID != nil && *o.CustomerID != uuid.Nil
	hasSession := o.SessionToken != nil && *o.SessionToken != ""
	if hasCustomer == hasSession {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be a customer or a session, not both")
	}
	return nil
}

// GetOrCreate returns the owner's cart, creating an empty one if none exists.
// Anonymous carts receive an expiry.
func (s *service) GetOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	cart, err := s.findByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	cart = &models.Cart{
		CustomerID:   owner.CustomerID,
		SessionToken: owner.SessionToken,
	}
	if owner.SessionToken != nil {
		expiresAt := s.now().Add(s.guestTTL)
		cart.ExpiresAt = &expiresAt
	}
	created, err := s.repo.Create(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// Get returns the owner's cart or NotFound.
func (s *service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.findByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

// AddItem appends a line with the unit price snapshotted from the product, or
// bumps the quantity when the same product/variation is already present.
func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*models.Cart, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	unitPrice, err := s.resolveUnitPrice(ctx, input.ProductID, input.VariationID)
	if err != nil {
		return nil, err
	}

	var line *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ProductID == input.ProductID && uuidPtrEqual(cart.Items[i].VariationID, input.VariationID) {
			line = &cart.Items[i]
			break
		}
	}
	if line != nil {
		line.Quantity += input.Quantity
		line.LineSubtotalCents = line.Quantity * line.UnitPriceCents
	} else {
		cart.Items = append(cart.Items, models.CartItem{
			CartID:            cart.ID,
			ProductID:         input.ProductID,
			VariationID:       input.VariationID,
			Quantity:          input.Quantity,
			UnitPriceCents:    unitPrice,
			LineSubtotalCents: input.Quantity * unitPrice,
		})
	}

	return s.recomputeAndSave(ctx, cart)
}

// UpdateItemQuantity sets the quantity on an existing line.
func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	var line *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			line = &cart.Items[i]
			break
		}
	}
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	line.Quantity = quantity
	line.LineSubtotalCents = quantity * line.UnitPriceCents
	return s.recomputeAndSave(ctx, cart)
}

// RemoveItem deletes a line from the cart.
func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	found := false
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	cart.Items = kept

	return s.recomputeAndSave(ctx, cart)
}

// ApplyCoupon validates the code against the cart and stores it with the
// computed discount.
func (s *service) ApplyCoupon(ctx context.Context, owner Owner, code string) (*models.Cart, error) {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot apply a coupon to an empty cart")
	}

	snapshot, err := s.Snapshot(ctx, cart)
	if err != nil {
		return nil, err
	}
	promotion, err := s.coupons.Validate(ctx, code, snapshot)
	if err != nil {
		return nil, err
	}

	cart.CouponCode = &promotion.Code
	eligible := s.coupons.EligibleAmount(promotion, snapshot)
	cart.DiscountCents = s.coupons.CalculateDiscount(promotion, eligible)
	return s.recomputeAndSave(ctx, cart)
}

// RemoveCoupon drops the coupon and its discount from the cart.
func (s *service) RemoveCoupon(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	cart.CouponCode = nil
	cart.DiscountCents = 0
	return s.recomputeAndSave(ctx, cart)
}

// ClearTx empties the cart inside the caller's transaction. Used at the end
// of order creation.
func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to clear cart")
	}
	if err := s.repo.WithTx(tx).Clear(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// Snapshot builds the coupon-evaluation view of the cart, resolving each
// line's category from the catalogue.
func (s *service) Snapshot(ctx context.Context, cart *models.Cart) (promotions.CartSnapshot, error) {
	snapshot := promotions.CartSnapshot{
		CustomerID:    cart.CustomerID,
		SubtotalCents: sumLineSubtotals(cart.Items),
		Lines:         make([]promotions.CartLine, 0, len(cart.Items)),
	}
	for _, item := range cart.Items {
		product, err := s.products.FindProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return promotions.CartSnapshot{}, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists")
			}
			return promotions.CartSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		snapshot.Lines = append(snapshot.Lines, promotions.CartLine{
			ProductID:         item.ProductID,
			CategoryID:        product.CategoryID,
			LineSubtotalCents: item.LineSubtotalCents,
		})
	}
	return snapshot, nil
}

func (s *service) findByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	if owner.CustomerID != nil {
		return s.repo.FindByCustomer(ctx, *owner.CustomerID)
	}
	return s.repo.FindBySessionToken(ctx, *owner.SessionToken)
}

func (s *service) resolveUnitPrice(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (int, error) {
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.Active {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	if variationID == nil {
		return product.PriceCents, nil
	}

	variation, err := s.products.FindVariation(ctx, *variationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variation not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation")
	}
	if variation.ProductID != productID {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to product")
	}
	return variation.PriceCents, nil
}

// recomputeAndSave re-derives subtotal, clamps the discount, and recomputes
// the total before persisting.
func (s *service) recomputeAndSave(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	cart.SubtotalCents = sumLineSubtotals(cart.Items)
	if cart.DiscountCents > cart.SubtotalCents {
		cart.DiscountCents = cart.SubtotalCents
	}
	cart.TotalCents = cart.SubtotalCents + cart.TaxCents + cart.ShippingCents - cart.DiscountCents

	saved, err := s.repo.Save(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return saved, nil
}

func sumLineSubtotals(items []models.CartItem) int {
	total := 0
	for _, item := range items {
		total += item.LineSubtotalCents
	}
	return total
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

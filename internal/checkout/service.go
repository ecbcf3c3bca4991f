package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/internal/cart"
	"github.com/jadorel/afrimarket-backend/internal/inventory"
	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/internal/promotions"
	dbpkg "github.com/jadorel/afrimarket-backend/pkg/db"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/payloads"
	"github.com/jadorel/afrimarket-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	RecordMovement(ctx context.Context, tx *gorm.DB, input inventory.MovementInput) (*models.StockMovement, error)
}

type couponEvaluator interface {
	Validate(ctx context.Context, code string, snapshot promotions.CartSnapshot) (*models.Promotion, error)
	EligibleAmount(promotion *models.Promotion, snapshot promotions.CartSnapshot) int
	CalculateDiscount(promotion *models.Promotion, eligibleAmountCents int) int
	RecordUsage(ctx context.Context, tx *gorm.DB, promotion *models.Promotion, orderID uuid.UUID, customerID *uuid.UUID, discountCents int) error
}

type productLoader interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariation(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error)
}

// Input carries the validated checkout payload.
type Input struct {
	CustomerEmail   string
	CustomerPhone   *string
	PaymentMethod   enums.PaymentMethod
	ShippingAddress types.Address
	BillingAddress  *types.Address
	Notes           *string
}

// Service turns a cart into an order atomically.
type Service interface {
	Execute(ctx context.Context, owner cart.Owner, input Input) (*models.Order, error)
}

type service struct {
	tx        txRunner
	cartRepo  cart.Repository
	orderRepo orders.Repository
	products  productLoader
	ledger    stockLedger
	coupons   couponEvaluator
	outbox    outboxPublisher
	now       func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	orderRepo orders.Repository,
	products productLoader,
	ledger stockLedger,
	coupons couponEvaluator,
	publisher outboxPublisher,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon evaluator required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:        tx,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		products:  products,
		ledger:    ledger,
		coupons:   coupons,
		outbox:    publisher,
		now:       time.Now,
	}, nil
}

// Execute runs the order-creation workflow in one transaction: load the cart,
// reserve stock per line, snapshot the order and its items, re-validate and
// record the coupon, append the initial history row, and clear the cart. The
// order-created event lands in the outbox within the same transaction; payment
// initiation happens after commit, outside this service.
func (s *service) Execute(ctx context.Context, owner cart.Owner, input Input) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		record, err := s.findCart(ctx, cartRepo, owner)
		if err != nil {
			return err
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		billing := input.ShippingAddress
		if input.BillingAddress != nil {
			billing = *input.BillingAddress
		}

		productCache := map[uuid.UUID]*models.Product{}
		items := make([]models.OrderItem, 0, len(record.Items))
		snapshot := promotions.CartSnapshot{
			CustomerID:    record.CustomerID,
			SubtotalCents: record.SubtotalCents,
		}
		for _, line := range record.Items {
			product, err := s.loadProduct(ctx, line.ProductID, productCache)
			if err != nil {
				return err
			}
			item := models.OrderItem{
				ProductID:      &line.ProductID,
				VariationID:    line.VariationID,
				ProductName:    product.Name,
				SKU:            product.SKU,
				UnitPriceCents: line.UnitPriceCents,
				Quantity:       line.Quantity,
				TotalCents:     line.LineSubtotalCents,
			}
			if line.VariationID != nil {
				variation, err := s.products.FindVariation(ctx, *line.VariationID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variation")
				}
				item.VariationName = &variation.Name
				item.SKU = variation.SKU
			}
			items = append(items, item)
			snapshot.Lines = append(snapshot.Lines, promotions.CartLine{
				ProductID:         line.ProductID,
				CategoryID:        product.CategoryID,
				LineSubtotalCents: line.LineSubtotalCents,
			})
		}

		// The order totals snapshot the cart. The coupon is still
		// re-validated, and if the promotion's value changed since it
		// was applied the customer has to re-apply it rather than be
		// charged an amount they never saw.
		discount := record.DiscountCents
		var promotion *models.Promotion
		if record.CouponCode != nil {
			promotion, err = s.coupons.Validate(ctx, *record.CouponCode, snapshot)
			if err != nil {
				return err
			}
			eligible := s.coupons.EligibleAmount(promotion, snapshot)
			if recomputed := s.coupons.CalculateDiscount(promotion, eligible); recomputed != discount {
				return pkgerrors.New(pkgerrors.CodeInvalidCoupon, "coupon discount changed, re-apply the coupon")
			}
		}

		order := &models.Order{
			OrderNumber:   generateOrderNumber(s.now()),
			CustomerID:    record.CustomerID,
			CustomerEmail: input.CustomerEmail,
			CustomerPhone: input.CustomerPhone,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.OrderPaymentStatusPending,
			PaymentMethod: input.PaymentMethod,
			CouponCode:    record.CouponCode,
			Currency:      record.Currency,
			SubtotalCents: record.SubtotalCents,
			DiscountCents: discount,
			TaxCents:      record.TaxCents,
			ShippingCents: record.ShippingCents,
			TotalCents:    record.SubtotalCents + record.TaxCents + record.ShippingCents - discount,
			ShippingAddr:  input.ShippingAddress,
			BillingAddr:   billing,
			Notes:         input.Notes,
			Items:         items,
		}
		created, err := orderRepo.Create(ctx, order)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_order_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order number collision, retry checkout")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		for _, line := range record.Items {
			if _, err := s.ledger.RecordMovement(ctx, tx, inventory.MovementInput{
				ProductID:   line.ProductID,
				VariationID: line.VariationID,
				Delta:       -line.Quantity,
				Reason:      enums.StockMovementReasonSale,
				OrderID:     &created.ID,
			}); err != nil {
				return err
			}
		}

		if promotion != nil {
			if err := s.coupons.RecordUsage(ctx, tx, promotion, created.ID, record.CustomerID, discount); err != nil {
				return err
			}
		}

		if err := orderRepo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: created.ID,
			Status:  enums.OrderStatusPending,
			ActorID: record.CustomerID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		if err := cartRepo.Clear(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         buildActor(record.CustomerID),
			Data: payloads.OrderCreatedEvent{
				OrderID:       created.ID,
				OrderNumber:   created.OrderNumber,
				CustomerID:    created.CustomerID,
				CustomerEmail: created.CustomerEmail,
				PaymentMethod: created.PaymentMethod,
				TotalCents:    created.TotalCents,
				Currency:      created.Currency,
				ItemCount:     len(created.Items),
			},
		}); err != nil {
			return err
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) findCart(ctx context.Context, repo cart.Repository, owner cart.Owner) (*models.Cart, error) {
	var (
		record *models.Cart
		err    error
	)
	switch {
	case owner.CustomerID != nil && *owner.CustomerID != uuid.Nil:
		record, err = repo.FindByCustomer(ctx, *owner.CustomerID)
	case owner.SessionToken != nil && *owner.SessionToken != "":
		record, err = repo.FindBySessionToken(ctx, *owner.SessionToken)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID, cache map[uuid.UUID]*models.Product) (*models.Product, error) {
	if product, ok := cache[productID]; ok {
		return product, nil
	}
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	cache[productID] = product
	return product, nil
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "shipping address")
	}
	if input.BillingAddress != nil {
		if err := input.BillingAddress.Validate(); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "billing address")
		}
	}
	return nil
}

// generateOrderNumber yields AM-YYYYMMDD-XXXXXX with a random hex suffix.
// The unique index on order_number backstops the tiny collision chance.
func generateOrderNumber(now time.Time) string {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		copy(suffix, uuid.New().NodeID())
	}
	return fmt.Sprintf("AM-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix)))
}

func buildActor(customerID *uuid.UUID) *outbox.ActorRef {
	if customerID == nil {
		return nil
	}
	return &outbox.ActorRef{CustomerID: customerID, Role: enums.RoleCustomer.String()}
}

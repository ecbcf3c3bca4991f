package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/payloads"
	"github.com/jadorel/afrimarket-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockReleaser returns reserved stock when an order is voided.
type StockReleaser interface {
	ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.StockMovement, error)
}

// UpdateStatusInput carries a lifecycle transition request.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Note    *string
	ActorID *uuid.UUID
}

// CancelOrderInput carries a cancellation request.
type CancelOrderInput struct {
	OrderID uuid.UUID
	Reason  *string
	ActorID *uuid.UUID
}

// Service drives the order lifecycle after creation.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) error
	CancelOrder(ctx context.Context, input CancelOrderInput) error
	ExpireOrder(ctx context.Context, orderID uuid.UUID, ttl time.Duration) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory StockReleaser
	now       func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, inventory StockReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		inventory: inventory,
		now:       time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetForCustomer(ctx context.Context, orderID, customerID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == nil || *order.CustomerID != customerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	list, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// UpdateStatus transitions the order and appends exactly one history row. A
// transition to the current status is a no-op.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Status {
			return nil
		}

		if err := repo.UpdateStatus(ctx, order.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  input.Status,
			Note:    input.Note,
			ActorID: input.ActorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		note := ""
		if input.Note != nil {
			note = *input.Note
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				FromStatus:  order.Status,
				ToStatus:    input.Status,
				Note:        note,
			},
		})
	})
}

// CancelOrder voids a cancellable order and releases its reserved stock in
// the same transaction.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.cancel(ctx, input.OrderID, input.Reason, input.ActorID, nil)
}

// ExpireOrder cancels an unpaid pending order past its payment TTL.
func (s *service) ExpireOrder(ctx context.Context, orderID uuid.UUID, ttl time.Duration) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	reason := "payment window expired"
	return s.cancel(ctx, orderID, &reason, nil, &ttl)
}

func (s *service) cancel(ctx context.Context, orderID uuid.UUID, reason *string, actorID *uuid.UUID, expiredTTL *time.Duration) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !cancellable(order) {
			return pkgerrors.New(pkgerrors.CodeNotCancellable, "order can no longer be cancelled")
		}

		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if err := repo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Note:    reason,
			ActorID: actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		movements, err := s.inventory.ReleaseOrder(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if len(movements) > 0 {
			released := make([]payloads.StockReleasedLine, 0, len(movements))
			for _, movement := range movements {
				released = append(released, payloads.StockReleasedLine{
					ProductID:   movement.ProductID,
					VariationID: movement.VariationID,
					Quantity:    movement.QuantityDelta,
				})
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockReleased,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data:          payloads.StockReleasedEvent{OrderID: order.ID, Released: released},
			}); err != nil {
				return err
			}
		}

		if expiredTTL != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderExpiredEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					ExpiredAt:   s.now(),
					TTLHours:    int(expiredTTL.Hours()),
				},
			})
		}

		reasonText := ""
		if reason != nil {
			reasonText = *reason
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(actorID),
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerID:  order.CustomerID,
				CancelledAt: s.now(),
				Reason:      reasonText,
			},
		})
	})
}

// cancellable holds both guards: fulfillment has not progressed past
// processing and no settled payment exists.
func cancellable(order *models.Order) bool {
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
		return false
	}
	return order.PaymentStatus != enums.OrderPaymentStatusPaid
}

func buildActor(customerID *uuid.UUID) *outbox.ActorRef {
	if customerID == nil {
		return nil
	}
	return &outbox.ActorRef{CustomerID: customerID, Role: enums.RoleCustomer.String()}
}

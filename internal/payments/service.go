package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/fedapay"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gateway interface {
	CreateCheckout(ctx context.Context, params fedapay.CreateTransactionParams) (*fedapay.CheckoutSession, error)
	GetTransaction(ctx context.Context, id int64) (*fedapay.Transaction, error)
}

type dedupGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
}

// CheckoutIntent is the redirect handed back to the client after payment
// initialization.
type CheckoutIntent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	Reference  string    `json:"reference"`
	PaymentURL string    `json:"payment_url"`
	Token      string    `json:"token"`
}

// CallbackEvent is the normalized gateway webhook payload.
type CallbackEvent struct {
	EventID       string
	Name          string
	TransactionID int64
	Reference     string
	Status        string
	AmountCents   int
	Raw           json.RawMessage
}

// RefundInput carries a refund request against a settled payment.
type RefundInput struct {
	PaymentID   uuid.UUID
	AmountCents int
	Reason      *string
}

// Service owns payment attempts: initialization against the gateway,
// idempotent settlement ingestion, and refunds.
type Service interface {
	Initialize(ctx context.Context, orderID uuid.UUID) (*CheckoutIntent, error)
	HandleCallback(ctx context.Context, event CallbackEvent) error
	MarkSucceeded(ctx context.Context, paymentID uuid.UUID, transactionID string, raw json.RawMessage) error
	MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string, raw json.RawMessage) error
	Refund(ctx context.Context, input RefundInput) (*models.Refund, error)
}

type service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	gateway gateway
	guard   dedupGuard
	outbox  outboxPublisher
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the payments service.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	gw gateway,
	guard dedupGuard,
	publisher outboxPublisher,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if guard == nil {
		return nil, fmt.Errorf("dedup guard required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		orders:  ordersRepo,
		tx:      tx,
		gateway: gw,
		guard:   guard,
		outbox:  publisher,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Initialize opens a hosted checkout session for the order's balance. The
// gateway call happens outside any transaction.
func (s *service) Initialize(ctx context.Context, orderID uuid.UUID) (*CheckoutIntent, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.OrderPaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid")
	}
	if order.PaymentMethod != enums.PaymentMethodFedaPay {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method does not use the gateway")
	}

	payment := &models.Payment{
		OrderID:     order.ID,
		Reference:   generateReference(order.OrderNumber),
		Method:      order.PaymentMethod,
		Status:      enums.PaymentStatusPending,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
	}
	created, err := s.repo.Create(ctx, payment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}

	session, err := s.gateway.CreateCheckout(ctx, fedapay.CreateTransactionParams{
		Reference:     created.Reference,
		Description:   fmt.Sprintf("Order %s", order.OrderNumber),
		AmountCents:   order.TotalCents,
		Currency:      string(order.Currency),
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.ShippingAddr.RecipientName,
	})
	if err != nil {
		if _, markErr := s.repo.MarkFailed(ctx, created.ID, "gateway session creation failed", nil); markErr != nil {
			s.log(ctx, "payment_init", map[string]any{"payment_id": created.ID.String(), "error": markErr.Error()})
		}
		return nil, err
	}

	transactionID := strconv.FormatInt(session.TransactionID, 10)
	if err := s.repo.SetTransactionID(ctx, created.ID, transactionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store transaction id")
	}

	return &CheckoutIntent{
		PaymentID:  created.ID,
		Reference:  created.Reference,
		PaymentURL: session.PaymentURL,
		Token:      session.Token,
	}, nil
}

// HandleCallback ingests one gateway event. Safe under redelivery: the Redis
// guard drops repeats cheaply and the conditional DB transition is the
// authoritative at-most-once barrier.
func (s *service) HandleCallback(ctx context.Context, event CallbackEvent) error {
	if event.EventID != "" {
		seen, err := s.guard.CheckAndMark(ctx, event.EventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "callback dedup")
		}
		if seen {
			s.log(ctx, "callback_duplicate", map[string]any{"event_id": event.EventID})
			return nil
		}
	}

	payment, err := s.findPayment(ctx, event)
	if err != nil {
		return err
	}
	if payment == nil {
		s.log(ctx, "callback_unmatched", map[string]any{
			"reference":      event.Reference,
			"transaction_id": event.TransactionID,
		})
		return nil
	}

	transactionID := ""
	if event.TransactionID != 0 {
		transactionID = strconv.FormatInt(event.TransactionID, 10)
	}

	switch strings.ToLower(event.Status) {
	case "approved", "transferred":
		return s.MarkSucceeded(ctx, payment.ID, transactionID, event.Raw)
	case "declined", "canceled", "failed", "expired":
		return s.MarkFailed(ctx, payment.ID, strings.ToLower(event.Status), event.Raw)
	default:
		s.log(ctx, "callback_ignored", map[string]any{
			"payment_id": payment.ID.String(),
			"status":     event.Status,
		})
		return nil
	}
}

// MarkSucceeded settles the payment and cascades to the order: payment_status
// becomes paid and a pending order advances to processing. Re-runs are no-ops.
func (s *service) MarkSucceeded(ctx context.Context, paymentID uuid.UUID, transactionID string, raw json.RawMessage) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		paidAt := s.now()
		applied, err := repo.MarkCompleted(ctx, payment.ID, transactionID, paidAt, raw)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
		}
		if !applied {
			return nil
		}

		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := ordersRepo.UpdatePaymentStatus(ctx, order.ID, enums.OrderPaymentStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
		}
		if order.Status == enums.OrderStatusPending {
			if err := ordersRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusProcessing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
			}
			note := "payment received"
			if err := ordersRepo.AppendStatusHistory(ctx, &models.OrderStatusHistory{
				OrderID: order.ID,
				Status:  enums.OrderStatusProcessing,
				Note:    &note,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentSettledEvent{
				PaymentID:     payment.ID,
				OrderID:       order.ID,
				Reference:     payment.Reference,
				TransactionID: transactionID,
				AmountCents:   payment.AmountCents,
				Currency:      payment.Currency,
				PaidAt:        paidAt,
			},
		})
	})
}

// MarkFailed records the decline and cascades payment_status only; the order
// itself stays where it is so the buyer can retry.
func (s *service) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string, raw json.RawMessage) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		payment, err := repo.FindByID(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		applied, err := repo.MarkFailed(ctx, payment.ID, reason, raw)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
		}
		if !applied {
			return nil
		}

		order, err := ordersRepo.FindByID(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus != enums.OrderPaymentStatusPaid {
			if err := ordersRepo.UpdatePaymentStatus(ctx, order.ID, enums.OrderPaymentStatusFailed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				Reference:   payment.Reference,
				Reason:      reason,
				AmountCents: payment.AmountCents,
			},
		})
	})
}

// Refund records a reversal. The completed-refund total can never exceed the
// payment amount; a full refund rolls the payment and order up to refunded.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Refund, error) {
	if input.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var result *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)

		payment, err := repo.FindByID(ctx, input.PaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment.Status != enums.PaymentStatusCompleted && payment.Status != enums.PaymentStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeValidation, "only settled payments can be refunded")
		}

		refunded, err := repo.SumCompletedRefunds(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunds")
		}
		if refunded+input.AmountCents > payment.AmountCents {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds payment amount")
		}

		processedAt := s.now()
		refund := &models.Refund{
			PaymentID:   payment.ID,
			OrderID:     payment.OrderID,
			AmountCents: input.AmountCents,
			Status:      enums.RefundStatusCompleted,
			Reason:      input.Reason,
			ProcessedAt: &processedAt,
		}
		created, err := repo.CreateRefund(ctx, refund)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		if refunded+input.AmountCents == payment.AmountCents {
			if err := repo.MarkRefunded(ctx, payment.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
			if err := ordersRepo.UpdatePaymentStatus(ctx, payment.OrderID, enums.OrderPaymentStatusRefunded); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order payment status")
			}
		}

		reason := ""
		if input.Reason != nil {
			reason = *input.Reason
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefunded,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Version:       1,
			Data: payloads.PaymentRefundedEvent{
				RefundID:    created.ID,
				PaymentID:   payment.ID,
				OrderID:     payment.OrderID,
				AmountCents: created.AmountCents,
				Reason:      reason,
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

func (s *service) findPayment(ctx context.Context, event CallbackEvent) (*models.Payment, error) {
	if event.Reference != "" {
		payment, err := s.repo.FindByReference(ctx, event.Reference)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by reference")
		}
	}
	if event.TransactionID != 0 {
		payment, err := s.repo.FindByTransactionID(ctx, strconv.FormatInt(event.TransactionID, 10))
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup payment by transaction id")
		}
	}
	return nil, nil
}

func (s *service) log(ctx context.Context, phase string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	fields["phase"] = phase
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Info(logCtx, "payment event")
}

// generateReference yields <order-number>-P<hex> so callbacks correlate back
// to the merchant-side payment row.
func generateReference(orderNumber string) string {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		copy(suffix, uuid.New().NodeID())
	}
	return fmt.Sprintf("%s-P%s", orderNumber, strings.ToUpper(hex.EncodeToString(suffix)))
}

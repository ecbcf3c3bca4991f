package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/internal/orders"
	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	pkgerrors "github.com/jadorel/afrimarket-backend/pkg/errors"
	"github.com/jadorel/afrimarket-backend/pkg/fedapay"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/pagination"
	"github.com/jadorel/afrimarket-backend/pkg/types"
)

type stubPaymentRepo struct {
	payments map[uuid.UUID]*models.Payment
	refunds  []models.Refund
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{payments: map[uuid.UUID]*models.Payment{}}
}

func (s *stubPaymentRepo) WithTx(_ *gorm.DB) Repository { return s }

func (s *stubPaymentRepo) Create(_ context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	s.payments[payment.ID] = payment
	return payment, nil
}

func (s *stubPaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, ok := s.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (s *stubPaymentRepo) FindByReference(_ context.Context, reference string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.Reference == reference {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.TransactionID != nil && *payment.TransactionID == transactionID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPaymentRepo) SetTransactionID(_ context.Context, paymentID uuid.UUID, transactionID string) error {
	s.payments[paymentID].TransactionID = &transactionID
	return nil
}

func (s *stubPaymentRepo) MarkCompleted(_ context.Context, paymentID uuid.UUID, transactionID string, paidAt time.Time, gatewayResponse json.RawMessage) (bool, error) {
	payment := s.payments[paymentID]
	switch payment.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing, enums.PaymentStatusFailed:
	default:
		return false, nil
	}
	payment.Status = enums.PaymentStatusCompleted
	payment.PaidAt = &paidAt
	if transactionID != "" {
		payment.TransactionID = &transactionID
	}
	if gatewayResponse != nil {
		payment.GatewayResponse = gatewayResponse
	}
	return true, nil
}

func (s *stubPaymentRepo) MarkFailed(_ context.Context, paymentID uuid.UUID, reason string, gatewayResponse json.RawMessage) (bool, error) {
	payment := s.payments[paymentID]
	switch payment.Status {
	case enums.PaymentStatusPending, enums.PaymentStatusProcessing:
	default:
		return false, nil
	}
	payment.Status = enums.PaymentStatusFailed
	payment.FailureReason = &reason
	if gatewayResponse != nil {
		payment.GatewayResponse = gatewayResponse
	}
	return true, nil
}

func (s *stubPaymentRepo) MarkRefunded(_ context.Context, paymentID uuid.UUID) error {
	s.payments[paymentID].Status = enums.PaymentStatusRefunded
	return nil
}

func (s *stubPaymentRepo) CreateRefund(_ context.Context, refund *models.Refund) (*models.Refund, error) {
	if refund.ID == uuid.Nil {
		refund.ID = uuid.New()
	}
	s.refunds = append(s.refunds, *refund)
	return refund, nil
}

func (s *stubPaymentRepo) SumCompletedRefunds(_ context.Context, paymentID uuid.UUID) (int, error) {
	total := 0
	for _, refund := range s.refunds {
		if refund.PaymentID == paymentID && refund.Status == enums.RefundStatusCompleted {
			total += refund.AmountCents
		}
	}
	return total, nil
}

type stubOrderRepo struct {
	orders  map[uuid.UUID]*models.Order
	history []models.OrderStatusHistory
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrderRepo) WithTx(_ *gorm.DB) orders.Repository { return s }

func (s *stubOrderRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrderRepo) FindByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderRepo) ListByCustomer(_ context.Context, _ uuid.UUID, _ pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (s *stubOrderRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	s.orders[orderID].Status = status
	return nil
}

func (s *stubOrderRepo) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, status enums.OrderPaymentStatus) error {
	s.orders[orderID].PaymentStatus = status
	return nil
}

func (s *stubOrderRepo) AppendStatusHistory(_ context.Context, entry *models.OrderStatusHistory) error {
	s.history = append(s.history, *entry)
	return nil
}

func (s *stubOrderRepo) FindPendingBefore(_ context.Context, _ time.Time) ([]models.Order, error) {
	return nil, nil
}

type stubGateway struct {
	session  *fedapay.CheckoutSession
	err      error
	requests []fedapay.CreateTransactionParams
}

func (s *stubGateway) CreateCheckout(_ context.Context, params fedapay.CreateTransactionParams) (*fedapay.CheckoutSession, error) {
	s.requests = append(s.requests, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubGateway) GetTransaction(_ context.Context, _ int64) (*fedapay.Transaction, error) {
	return nil, errors.New("not implemented")
}

type stubGuard struct {
	seen map[string]bool
}

func newStubGuard() *stubGuard { return &stubGuard{seen: map[string]bool{}} }

func (s *stubGuard) CheckAndMark(_ context.Context, eventID string) (bool, error) {
	if s.seen[eventID] {
		return true, nil
	}
	s.seen[eventID] = true
	return false, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubPublisher) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type paymentFixture struct {
	svc       Service
	repo      *stubPaymentRepo
	orders    *stubOrderRepo
	gateway   *stubGateway
	guard     *stubGuard
	publisher *stubPublisher
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		repo:   newStubPaymentRepo(),
		orders: newStubOrderRepo(),
		gateway: &stubGateway{session: &fedapay.CheckoutSession{
			TransactionID: 88421,
			Token:         "tok_test",
			PaymentURL:    "https://checkout.fedapay.com/tok_test",
		}},
		guard:     newStubGuard(),
		publisher: &stubPublisher{},
	}
	svc, err := NewService(f.repo, f.orders, stubTxRunner{}, f.gateway, f.guard, f.publisher, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *paymentFixture) seedOrder(method enums.PaymentMethod, paymentStatus enums.OrderPaymentStatus) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "AM-20260314-0A1B2C",
		CustomerEmail: "ayo@example.com",
		Status:        enums.OrderStatusPending,
		PaymentStatus: paymentStatus,
		PaymentMethod: method,
		Currency:      enums.CurrencyXOF,
		TotalCents:    12500,
		ShippingAddr:  types.Address{RecipientName: "Ayo Dossou"},
	}
	f.orders.orders[order.ID] = order
	return order
}

func (f *paymentFixture) seedPayment(order *models.Order, status enums.PaymentStatus) *models.Payment {
	transactionID := "88421"
	payment := &models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		Reference:     order.OrderNumber + "-P4F2A10",
		Method:        order.PaymentMethod,
		Status:        status,
		AmountCents:   order.TotalCents,
		Currency:      order.Currency,
		TransactionID: &transactionID,
	}
	f.repo.payments[payment.ID] = payment
	return payment
}

func hasPaymentEvent(publisher *stubPublisher, eventType enums.OutboxEventType) bool {
	for _, event := range publisher.events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

func TestInitializeCreatesPendingPaymentAndIntent(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)

	intent, err := f.svc.Initialize(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if intent.PaymentURL != "https://checkout.fedapay.com/tok_test" {
		t.Fatalf("payment url = %q", intent.PaymentURL)
	}
	if intent.Token != "tok_test" {
		t.Fatalf("token = %q", intent.Token)
	}

	payment, ok := f.repo.payments[intent.PaymentID]
	if !ok {
		t.Fatal("payment row not created")
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s", payment.Status)
	}
	if payment.AmountCents != order.TotalCents {
		t.Fatalf("amount = %d, want %d", payment.AmountCents, order.TotalCents)
	}
	if payment.TransactionID == nil || *payment.TransactionID != "88421" {
		t.Fatalf("transaction id = %v", payment.TransactionID)
	}

	if len(f.gateway.requests) != 1 {
		t.Fatalf("gateway calls = %d", len(f.gateway.requests))
	}
	request := f.gateway.requests[0]
	if request.Reference != intent.Reference {
		t.Fatalf("gateway reference = %q, want %q", request.Reference, intent.Reference)
	}
	if request.AmountCents != 12500 || request.Currency != "XOF" {
		t.Fatalf("gateway amount/currency = %d %s", request.AmountCents, request.Currency)
	}
}

func TestInitializeGatewayFailureMarksPaymentFailed(t *testing.T) {
	f := newPaymentFixture(t)
	f.gateway.err = errors.New("fedapay unavailable")
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)

	if _, err := f.svc.Initialize(context.Background(), order.ID); err == nil {
		t.Fatal("expected gateway error")
	}
	if len(f.repo.payments) != 1 {
		t.Fatalf("payments = %d, want 1", len(f.repo.payments))
	}
	for _, payment := range f.repo.payments {
		if payment.Status != enums.PaymentStatusFailed {
			t.Fatalf("payment status = %s, want failed", payment.Status)
		}
	}
}

func TestInitializeRejectsPaidOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPaid)

	_, err := f.svc.Initialize(context.Background(), order.ID)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if len(f.repo.payments) != 0 {
		t.Fatal("no payment should be created for a paid order")
	}
}

func TestInitializeRejectsNonGatewayMethod(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodCashOnDelivery, enums.OrderPaymentStatusPending)

	_, err := f.svc.Initialize(context.Background(), order.ID)
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.gateway.requests) != 0 {
		t.Fatal("gateway should not be called")
	}
}

func TestHandleCallbackApprovedSettlesPaymentAndOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	err := f.svc.HandleCallback(context.Background(), CallbackEvent{
		EventID:       "evt_1",
		Name:          "transaction.approved",
		TransactionID: 88421,
		Reference:     payment.Reference,
		Status:        "approved",
		AmountCents:   payment.AmountCents,
		Raw:           json.RawMessage(`{"id":88421}`),
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", payment.Status)
	}
	if payment.PaidAt == nil {
		t.Fatal("paid_at not set")
	}
	if order.PaymentStatus != enums.OrderPaymentStatusPaid {
		t.Fatalf("order payment status = %s, want paid", order.PaymentStatus)
	}
	if order.Status != enums.OrderStatusProcessing {
		t.Fatalf("order status = %s, want processing", order.Status)
	}
	if len(f.orders.history) != 1 || f.orders.history[0].Status != enums.OrderStatusProcessing {
		t.Fatalf("history = %+v", f.orders.history)
	}
	if !hasPaymentEvent(f.publisher, enums.EventPaymentSettled) {
		t.Fatal("payment settled event not emitted")
	}
}

func TestHandleCallbackDuplicateEventIsDropped(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	event := CallbackEvent{
		EventID:   "evt_dup",
		Reference: payment.Reference,
		Status:    "approved",
	}
	if err := f.svc.HandleCallback(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleCallback(context.Background(), event); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	settled := 0
	for _, emitted := range f.publisher.events {
		if emitted.EventType == enums.EventPaymentSettled {
			settled++
		}
	}
	if settled != 1 {
		t.Fatalf("settled events = %d, want 1", settled)
	}
}

func TestHandleCallbackRedeliveryWithNewEventIDTransitionsOnce(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	first := CallbackEvent{EventID: "evt_a", Reference: payment.Reference, Status: "approved"}
	second := CallbackEvent{EventID: "evt_b", Reference: payment.Reference, Status: "approved"}
	if err := f.svc.HandleCallback(context.Background(), first); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleCallback(context.Background(), second); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	// The conditional completed transition only fires once, so the second
	// delivery produces no second event and no extra history row.
	settled := 0
	for _, emitted := range f.publisher.events {
		if emitted.EventType == enums.EventPaymentSettled {
			settled++
		}
	}
	if settled != 1 {
		t.Fatalf("settled events = %d, want 1", settled)
	}
	if len(f.orders.history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(f.orders.history))
	}
}

func TestHandleCallbackUnmatchedPaymentIsSwallowed(t *testing.T) {
	f := newPaymentFixture(t)

	err := f.svc.HandleCallback(context.Background(), CallbackEvent{
		EventID:       "evt_orphan",
		Reference:     "AM-20260101-FFFFFF-P000000",
		TransactionID: 999,
		Status:        "approved",
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatal("no events expected for an unmatched callback")
	}
}

func TestHandleCallbackDeclinedFailsPaymentOnly(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	err := f.svc.HandleCallback(context.Background(), CallbackEvent{
		EventID:   "evt_declined",
		Reference: payment.Reference,
		Status:    "declined",
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s, want failed", payment.Status)
	}
	if payment.FailureReason == nil || *payment.FailureReason != "declined" {
		t.Fatalf("failure reason = %v", payment.FailureReason)
	}
	if order.PaymentStatus != enums.OrderPaymentStatusFailed {
		t.Fatalf("order payment status = %s, want failed", order.PaymentStatus)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("order status = %s, want pending", order.Status)
	}
	if !hasPaymentEvent(f.publisher, enums.EventPaymentFailed) {
		t.Fatal("payment failed event not emitted")
	}
}

func TestHandleCallbackFailureAfterSettlementKeepsOrderPaid(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPaid)
	payment := f.seedPayment(order, enums.PaymentStatusCompleted)

	err := f.svc.HandleCallback(context.Background(), CallbackEvent{
		EventID:   "evt_late_decline",
		Reference: payment.Reference,
		Status:    "declined",
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment status = %s, want completed", payment.Status)
	}
	if order.PaymentStatus != enums.OrderPaymentStatusPaid {
		t.Fatalf("order payment status = %s, want paid", order.PaymentStatus)
	}
	if len(f.publisher.events) != 0 {
		t.Fatal("no events expected when the transition does not apply")
	}
}

func TestHandleCallbackUnknownStatusIgnored(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	err := f.svc.HandleCallback(context.Background(), CallbackEvent{
		EventID:   "evt_pending",
		Reference: payment.Reference,
		Status:    "pending",
	})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s, want pending", payment.Status)
	}
	if len(f.publisher.events) != 0 {
		t.Fatal("no events expected for an ignored status")
	}
}

func TestRefundPartialThenOverRefundRejected(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPaid)
	payment := f.seedPayment(order, enums.PaymentStatusCompleted)

	refund, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, AmountCents: 5000})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refund.Status != enums.RefundStatusCompleted || refund.ProcessedAt == nil {
		t.Fatalf("refund = %+v", refund)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("partial refund must not flip payment status, got %s", payment.Status)
	}

	_, err = f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, AmountCents: 8000})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.refunds) != 1 {
		t.Fatalf("refund rows = %d, want 1", len(f.repo.refunds))
	}
}

func TestRefundFullAmountRollsUpPaymentAndOrder(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPaid)
	payment := f.seedPayment(order, enums.PaymentStatusCompleted)

	reason := "buyer cancelled after payment"
	if _, err := f.svc.Refund(context.Background(), RefundInput{
		PaymentID:   payment.ID,
		AmountCents: payment.AmountCents,
		Reason:      &reason,
	}); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	if payment.Status != enums.PaymentStatusRefunded {
		t.Fatalf("payment status = %s, want refunded", payment.Status)
	}
	if order.PaymentStatus != enums.OrderPaymentStatusRefunded {
		t.Fatalf("order payment status = %s, want refunded", order.PaymentStatus)
	}
	if !hasPaymentEvent(f.publisher, enums.EventPaymentRefunded) {
		t.Fatal("payment refunded event not emitted")
	}
}

func TestRefundRejectsUnsettledPayment(t *testing.T) {
	f := newPaymentFixture(t)
	order := f.seedOrder(enums.PaymentMethodFedaPay, enums.OrderPaymentStatusPending)
	payment := f.seedPayment(order, enums.PaymentStatusPending)

	_, err := f.svc.Refund(context.Background(), RefundInput{PaymentID: payment.ID, AmountCents: 1000})
	var typed *pkgerrors.Error
	if !errors.As(err, &typed) || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

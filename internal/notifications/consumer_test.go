package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/payloads"
)

type stubOrderLoader struct {
	orders map[uuid.UUID]*models.Order
}

func (s *stubOrderLoader) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func newTestConsumer(repo *fakeRepository, loader *stubOrderLoader) *Consumer {
	return &Consumer{repo: repo, orders: loader}
}

func marshalPayload(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestConsumerOrderCreatedNotifiesCustomer(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, &stubOrderLoader{})

	customerID := uuid.New()
	orderID := uuid.New()
	data := marshalPayload(t, payloads.OrderCreatedEvent{
		OrderID:     orderID,
		OrderNumber: "AM-20260314-0A1B2C",
		CustomerID:  &customerID,
		TotalCents:  12500,
	})

	if err := consumer.handleEvent(context.Background(), enums.EventOrderCreated, data); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d, want 1", len(repo.created))
	}

	row := repo.created[0]
	if row.Type != enums.NotificationTypeOrderConfirmation {
		t.Fatalf("type = %s", row.Type)
	}
	if row.RecipientKind != enums.RecipientKindCustomer {
		t.Fatalf("recipient kind = %s", row.RecipientKind)
	}
	if row.RecipientID == nil || *row.RecipientID != customerID {
		t.Fatalf("recipient id = %v", row.RecipientID)
	}
	if row.Channel != enums.NotificationChannelDatabase {
		t.Fatalf("channel = %s", row.Channel)
	}
	if row.OrderID == nil || *row.OrderID != orderID {
		t.Fatalf("order id = %v", row.OrderID)
	}
}

func TestConsumerGuestOrderSkipsNotification(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, &stubOrderLoader{})

	data := marshalPayload(t, payloads.OrderCreatedEvent{
		OrderID:     uuid.New(),
		OrderNumber: "AM-20260314-FF00AA",
	})

	if err := consumer.handleEvent(context.Background(), enums.EventOrderCreated, data); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("guest order should not produce a notification row")
	}
}

func TestConsumerPaymentSettledResolvesCustomerFromOrder(t *testing.T) {
	repo := &fakeRepository{}
	customerID := uuid.New()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "AM-20260314-0A1B2C",
		CustomerID:  &customerID,
	}
	consumer := newTestConsumer(repo, &stubOrderLoader{orders: map[uuid.UUID]*models.Order{order.ID: order}})

	data := marshalPayload(t, payloads.PaymentSettledEvent{
		PaymentID:   uuid.New(),
		OrderID:     order.ID,
		AmountCents: 12500,
		Currency:    enums.CurrencyXOF,
	})

	if err := consumer.handleEvent(context.Background(), enums.EventPaymentSettled, data); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created = %d, want 1", len(repo.created))
	}
	if repo.created[0].Type != enums.NotificationTypePaymentReceipt {
		t.Fatalf("type = %s", repo.created[0].Type)
	}
	if repo.created[0].RecipientID == nil || *repo.created[0].RecipientID != customerID {
		t.Fatal("recipient not resolved from the order")
	}
}

func TestConsumerPaymentSettledMissingOrderFails(t *testing.T) {
	consumer := newTestConsumer(&fakeRepository{}, &stubOrderLoader{})

	data := marshalPayload(t, payloads.PaymentSettledEvent{OrderID: uuid.New()})
	if err := consumer.handleEvent(context.Background(), enums.EventPaymentSettled, data); err == nil {
		t.Fatal("expected error when the order cannot be loaded")
	}
}

func TestConsumerStatusChangedMapsShippedAndDelivered(t *testing.T) {
	repo := &fakeRepository{}
	customerID := uuid.New()
	order := &models.Order{ID: uuid.New(), OrderNumber: "AM-1", CustomerID: &customerID}
	consumer := newTestConsumer(repo, &stubOrderLoader{orders: map[uuid.UUID]*models.Order{order.ID: order}})

	cases := []struct {
		status enums.OrderStatus
		want   enums.NotificationType
	}{
		{enums.OrderStatusShipped, enums.NotificationTypeOrderShipped},
		{enums.OrderStatusDelivered, enums.NotificationTypeOrderDelivered},
	}
	for _, tc := range cases {
		data := marshalPayload(t, payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			ToStatus:    tc.status,
		})
		if err := consumer.handleEvent(context.Background(), enums.EventOrderStatusChanged, data); err != nil {
			t.Fatalf("handleEvent(%s): %v", tc.status, err)
		}
	}
	if len(repo.created) != 2 {
		t.Fatalf("created = %d, want 2", len(repo.created))
	}
	if repo.created[0].Type != enums.NotificationTypeOrderShipped {
		t.Fatalf("first type = %s", repo.created[0].Type)
	}
	if repo.created[1].Type != enums.NotificationTypeOrderDelivered {
		t.Fatalf("second type = %s", repo.created[1].Type)
	}
}

func TestConsumerStatusChangedIgnoresOtherTransitions(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, &stubOrderLoader{})

	data := marshalPayload(t, payloads.OrderStatusChangedEvent{
		OrderID:  uuid.New(),
		ToStatus: enums.OrderStatusProcessing,
	})
	if err := consumer.handleEvent(context.Background(), enums.EventOrderStatusChanged, data); err != nil {
		t.Fatalf("handleEvent: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatal("processing transition should not notify")
	}
}

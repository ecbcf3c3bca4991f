package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/db/models"
	"github.com/jadorel/afrimarket-backend/pkg/enums"
	"github.com/jadorel/afrimarket-backend/pkg/logger"
	"github.com/jadorel/afrimarket-backend/pkg/outbox"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/idempotency"
	"github.com/jadorel/afrimarket-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type orderLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Consumer watches order and payment events and persists in-app notifications.
type Consumer struct {
	repo         repository
	orders       orderLoader
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, orders orderLoader, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("orders loader required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		orders:       orders,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

var handledEventTypes = map[enums.OutboxEventType]bool{
	enums.EventOrderCreated:       true,
	enums.EventOrderStatusChanged: true,
	enums.EventOrderCancelled:     true,
	enums.EventPaymentSettled:     true,
	enums.EventPaymentFailed:      true,
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType.String(),
	})

	if !handledEventTypes[eventType] {
		c.logg.Info(logCtx, "skipping event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order created payload: %w", err)
		}
		return c.notifyCustomer(ctx, payload.CustomerID, &models.Notification{
			Type:    enums.NotificationTypeOrderConfirmation,
			Title:   "Order confirmed",
			Message: fmt.Sprintf("Your order %s has been received.", payload.OrderNumber),
			OrderID: &payload.OrderID,
			Payload: data,
		})

	case enums.EventOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse status changed payload: %w", err)
		}
		return c.handleStatusChanged(ctx, payload, data)

	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order cancelled payload: %w", err)
		}
		message := fmt.Sprintf("Your order %s has been cancelled.", payload.OrderNumber)
		if payload.Reason != "" {
			message = fmt.Sprintf("Your order %s has been cancelled. Reason: %s", payload.OrderNumber, payload.Reason)
		}
		return c.notifyCustomer(ctx, payload.CustomerID, &models.Notification{
			Type:    enums.NotificationTypeOrderCancelled,
			Title:   "Order cancelled",
			Message: message,
			OrderID: &payload.OrderID,
			Payload: data,
		})

	case enums.EventPaymentSettled:
		var payload payloads.PaymentSettledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payment settled payload: %w", err)
		}
		order, err := c.orders.FindByID(ctx, payload.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", payload.OrderID, err)
		}
		return c.notifyCustomer(ctx, order.CustomerID, &models.Notification{
			Type:  enums.NotificationTypePaymentReceipt,
			Title: "Payment received",
			Message: fmt.Sprintf("We received your payment of %d %s for order %s.",
				payload.AmountCents, payload.Currency, order.OrderNumber),
			OrderID: &payload.OrderID,
			Payload: data,
		})

	case enums.EventPaymentFailed:
		var payload payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payment failed payload: %w", err)
		}
		order, err := c.orders.FindByID(ctx, payload.OrderID)
		if err != nil {
			return fmt.Errorf("load order %s: %w", payload.OrderID, err)
		}
		return c.notifyCustomer(ctx, order.CustomerID, &models.Notification{
			Type:    enums.NotificationTypePaymentFailed,
			Title:   "Payment failed",
			Message: fmt.Sprintf("Payment for order %s did not go through. Please try again.", order.OrderNumber),
			OrderID: &payload.OrderID,
			Payload: data,
		})
	}
	return nil
}

func (c *Consumer) handleStatusChanged(ctx context.Context, payload payloads.OrderStatusChangedEvent, data json.RawMessage) error {
	var notificationType enums.NotificationType
	var title, message string

	switch payload.ToStatus {
	case enums.OrderStatusShipped:
		notificationType = enums.NotificationTypeOrderShipped
		title = "Order shipped"
		message = fmt.Sprintf("Your order %s is on its way.", payload.OrderNumber)
	case enums.OrderStatusDelivered:
		notificationType = enums.NotificationTypeOrderDelivered
		title = "Order delivered"
		message = fmt.Sprintf("Your order %s has been delivered.", payload.OrderNumber)
	default:
		return nil
	}

	order, err := c.orders.FindByID(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}
	return c.notifyCustomer(ctx, order.CustomerID, &models.Notification{
		Type:    notificationType,
		Title:   title,
		Message: message,
		OrderID: &payload.OrderID,
		Payload: data,
	})
}

// notifyCustomer persists an in-app row for the customer. Guest orders have no
// account to deliver to, so they are skipped.
func (c *Consumer) notifyCustomer(ctx context.Context, customerID *uuid.UUID, notification *models.Notification) error {
	if customerID == nil || *customerID == uuid.Nil {
		return nil
	}
	notification.RecipientKind = enums.RecipientKindCustomer
	notification.RecipientID = customerID
	notification.Channel = enums.NotificationChannelDatabase
	return c.repo.Create(ctx, notification)
}

package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderConfirmation NotificationType = "order_confirmation"
	NotificationTypePaymentReceipt    NotificationType = "payment_receipt"
	NotificationTypePaymentFailed     NotificationType = "payment_failed"
	NotificationTypeOrderCancelled    NotificationType = "order_cancelled"
	NotificationTypeOrderShipped      NotificationType = "order_shipped"
	NotificationTypeOrderDelivered    NotificationType = "order_delivered"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderConfirmation,
	NotificationTypePaymentReceipt,
	NotificationTypePaymentFailed,
	NotificationTypeOrderCancelled,
	NotificationTypeOrderShipped,
	NotificationTypeOrderDelivered,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationChannel is the delivery channel for an outbound notification.
type NotificationChannel string

const (
	NotificationChannelDatabase NotificationChannel = "database"
	NotificationChannelMail     NotificationChannel = "mail"
	NotificationChannelSMS      NotificationChannel = "sms"
)

var validNotificationChannels = []NotificationChannel{
	NotificationChannelDatabase,
	NotificationChannelMail,
	NotificationChannelSMS,
}

// String implements fmt.Stringer.
func (n NotificationChannel) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationChannel.
func (n NotificationChannel) IsValid() bool {
	for _, candidate := range validNotificationChannels {
		if candidate == n {
			return true
		}
	}
	return false
}

// RecipientKind discriminates the entity a notification targets.
type RecipientKind string

const (
	RecipientKindCustomer RecipientKind = "customer"
	RecipientKindAdmin    RecipientKind = "admin"
)

var validRecipientKinds = []RecipientKind{
	RecipientKindCustomer,
	RecipientKindAdmin,
}

// String implements fmt.Stringer.
func (r RecipientKind) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecipientKind.
func (r RecipientKind) IsValid() bool {
	for _, candidate := range validRecipientKinds {
		if candidate == r {
			return true
		}
	}
	return false
}

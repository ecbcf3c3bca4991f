package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jadorel/afrimarket-backend/pkg/enums"
)

// Notification stores one queued or delivered notification per recipient and
// channel.
type Notification struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientKind enums.RecipientKind       `gorm:"column:recipient_kind;type:text;not null"`
	RecipientID   *uuid.UUID                `gorm:"column:recipient_id;type:uuid;index"`
	Type          enums.NotificationType    `gorm:"column:type;type:text;not null"`
	Channel       enums.NotificationChannel `gorm:"column:channel;type:text;not null"`
	Title         string                    `gorm:"column:title;not null"`
	Message       string                    `gorm:"column:message;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb"`
	OrderID       *uuid.UUID                `gorm:"column:order_id;type:uuid;index"`
	SentAt        *time.Time                `gorm:"column:sent_at"`
	ReadAt        *time.Time                `gorm:"column:read_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"
)

// Want is a user's standing request for a card held by someone else
type Want struct {
	ID           string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string              `gorm:"type:varchar(36);index;not null" json:"user_id"`
	CardName     string              `gorm:"index;not null" json:"card_name"`
	SetCode      *string             `gorm:"index" json:"set_code"`
	MinCondition *Condition          `json:"min_condition"`
	MaxPrice     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"max_price"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NotificationType distinguishes notification sources
type NotificationType string

const (
	NotificationMatch NotificationType = "marketplace_match"
	NotificationTrend NotificationType = "trend"
)

// Notification is a user-visible message. Only Read changes after insert.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_notifications_dedup,priority:1" json:"user_id"`
	Type      NotificationType `gorm:"not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	DedupKey  string           `gorm:"type:char(64);not null;uniqueIndex:idx_notifications_dedup,priority:2" json:"-"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationDedupKey digests the (type, title, message) triple. Together
// with the owner it identifies a notification for deduplication.
func NotificationDedupKey(typ NotificationType, title, message string) string {
	h := sha256.New()
	for _, part := range []string{string(typ), title, message} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

package models

import "time"

// User is an account owning inventory, wants and notifications.
// Credentials live with the identity provider, not here.
type User struct {
	ID                 string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email              string    `gorm:"uniqueIndex;not null" json:"email"`
	Username           string    `gorm:"uniqueIndex;not null" json:"username"`
	InventoryPublic    bool      `gorm:"not null;default:false" json:"inventory_public"`
	MarketplaceEnabled bool      `gorm:"not null;default:false" json:"marketplace_enabled"`
	NotificationInApp  bool      `gorm:"not null;default:true" json:"notification_in_app"`
	City               *string   `json:"city"`
	StateProvince      *string   `json:"state_province"`
	Country            *string   `json:"country"`
	SubscriptionTier   string    `gorm:"not null;default:free" json:"subscription_tier"`
	CreatedAt          time.Time `json:"created_at"`
}

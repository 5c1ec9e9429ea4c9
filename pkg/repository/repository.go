package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cardvault/pkg/models"
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique field is already taken
var ErrDuplicate = errors.New("record already exists")

// Inventory sort keys
const (
	SortByScanned = "scanned_at"
	SortByValue   = "value"
)

// InventoryQuery filters and pages an owner's inventory listing
type InventoryQuery struct {
	Search    string
	SortBy    string
	SortOrder string // "asc" or "desc"
	Page      int
	Limit     int // <= 0 returns everything
}

// InventoryPage is one page of an inventory listing
type InventoryPage struct {
	Items []models.InventoryEntry
	Total int64
}

// InventorySummary totals an owner's inventory. Cards counts copies, and
// Value is the sum of value times quantity over entries that have a value.
type InventorySummary struct {
	Cards int64
	Value decimal.Decimal
}

// UserUpdate names the user columns to change. Nil fields are left alone;
// an empty location string clears that column.
type UserUpdate struct {
	InventoryPublic    *bool
	MarketplaceEnabled *bool
	NotificationInApp  *bool
	City               *string
	StateProvince      *string
	Country            *string
	SubscriptionTier   *string
}

// Columns returns the changed columns keyed by column name
func (u UserUpdate) Columns() map[string]any {
	cols := make(map[string]any)
	if u.InventoryPublic != nil {
		cols["inventory_public"] = *u.InventoryPublic
	}
	if u.MarketplaceEnabled != nil {
		cols["marketplace_enabled"] = *u.MarketplaceEnabled
	}
	if u.NotificationInApp != nil {
		cols["notification_in_app"] = *u.NotificationInApp
	}
	if u.City != nil {
		cols["city"] = nullable(*u.City)
	}
	if u.StateProvince != nil {
		cols["state_province"] = nullable(*u.StateProvince)
	}
	if u.Country != nil {
		cols["country"] = nullable(*u.Country)
	}
	if u.SubscriptionTier != nil {
		cols["subscription_tier"] = *u.SubscriptionTier
	}
	return cols
}

// Apply copies the changed fields onto user
func (u UserUpdate) Apply(user *models.User) {
	if u.InventoryPublic != nil {
		user.InventoryPublic = *u.InventoryPublic
	}
	if u.MarketplaceEnabled != nil {
		user.MarketplaceEnabled = *u.MarketplaceEnabled
	}
	if u.NotificationInApp != nil {
		user.NotificationInApp = *u.NotificationInApp
	}
	if u.City != nil {
		user.City = nullable(*u.City)
	}
	if u.StateProvince != nil {
		user.StateProvince = nullable(*u.StateProvince)
	}
	if u.Country != nil {
		user.Country = nullable(*u.Country)
	}
	if u.SubscriptionTier != nil {
		user.SubscriptionTier = *u.SubscriptionTier
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarketplaceQuery selects entries of other users who opted into the marketplace
type MarketplaceQuery struct {
	ExcludeUserID string
	CardName      string  // case-insensitive substring
	SetCode       *string // exact match when set
	Limit         int
}

// MarketplaceRow is an inventory entry together with its owner
type MarketplaceRow struct {
	Entry models.InventoryEntry
	Owner models.User
}

// Users defines user persistence
type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// UpdateUser writes only the columns set in u and returns the stored user
	UpdateUser(ctx context.Context, userID string, u UserUpdate) (*models.User, error)
}

// Scans defines scan persistence
type Scans interface {
	CreateScan(ctx context.Context, scan *models.Scan) error
	GetScan(ctx context.Context, userID, scanID string) (*models.Scan, error)
	UpdateScan(ctx context.Context, scan *models.Scan) error
	CountScansSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// Inventory defines read and delete access to inventory entries.
// Inserts only happen through Tx.
type Inventory interface {
	ListInventory(ctx context.Context, userID string, q InventoryQuery) (InventoryPage, error)
	CountInventory(ctx context.Context, userID string) (int64, error)
	SummarizeInventory(ctx context.Context, userID string) (InventorySummary, error)
	DeleteInventoryEntry(ctx context.Context, userID, entryID string) error
	TopValuedEntries(ctx context.Context, userID string, limit int) ([]models.InventoryEntry, error)
	FindMarketplaceEntries(ctx context.Context, q MarketplaceQuery) ([]MarketplaceRow, error)
}

// Wants defines want persistence
type Wants interface {
	CreateWant(ctx context.Context, want *models.Want) error
	ListWants(ctx context.Context, userID string) ([]models.Want, error)
	DeleteWant(ctx context.Context, userID, wantID string) error
}

// Notifications defines notification persistence
type Notifications interface {
	// CreateNotificationIfAbsent inserts n unless the owner already has a
	// notification with the same type, title and message. It reports whether
	// a row was inserted.
	CreateNotificationIfAbsent(ctx context.Context, n *models.Notification) (bool, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

// Tx is the transactional surface used to commit inventory
type Tx interface {
	// CountInventoryForUpdate locks the owner against concurrent commits for
	// the rest of the transaction and returns their current entry count.
	CountInventoryForUpdate(ctx context.Context, userID string) (int64, error)
	CreateInventoryEntries(ctx context.Context, entries []models.InventoryEntry) error
}

// Transactor runs fn atomically. A non-nil error from fn rolls back everything fn wrote.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Store is the full persistence surface
type Store interface {
	Users
	Scans
	Inventory
	Wants
	Notifications
	Transactor
}

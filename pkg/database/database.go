package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

// Open connects to postgres and migrates the schema
func Open(dsn string, logger *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info("connected to database")
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Scan{},
		&models.InventoryEntry{},
		&models.Want{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Store implements repository.Store on gorm
type Store struct {
	db *gorm.DB
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps an open connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.SubscriptionTier == "" {
		user.SubscriptionTier = models.TierFree
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create user %q: %w", user.Username, repository.ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// UpdateUser writes only the changed columns so concurrent updates to
// different settings do not overwrite each other.
func (s *Store) UpdateUser(ctx context.Context, userID string, u repository.UserUpdate) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cols := u.Columns(); len(cols) > 0 {
			res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(cols)
			if res.Error != nil {
				return fmt.Errorf("update user: %w", res.Error)
			}
		}
		return notFound(tx.Where("id = ?", userID).Take(&user).Error)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateScan(ctx context.Context, scan *models.Scan) error {
	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(scan).Error; err != nil {
		return fmt.Errorf("create scan: %w", err)
	}
	return nil
}

func (s *Store) GetScan(ctx context.Context, userID, scanID string) (*models.Scan, error) {
	var scan models.Scan
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", scanID, userID).Take(&scan).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &scan, nil
}

func (s *Store) UpdateScan(ctx context.Context, scan *models.Scan) error {
	res := s.db.WithContext(ctx).Model(&models.Scan{}).Where("id = ?", scan.ID).
		Select("status", "results", "error", "processed_at").Updates(scan)
	if res.Error != nil {
		return fmt.Errorf("update scan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) CountScansSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Scan{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count scans: %w", err)
	}
	return n, nil
}

func (s *Store) ListInventory(ctx context.Context, userID string, q repository.InventoryQuery) (repository.InventoryPage, error) {
	query := s.db.WithContext(ctx).Model(&models.InventoryEntry{}).Where("user_id = ?", userID)
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		query = query.Where("card_name ILIKE ? OR set_code ILIKE ?", pattern, pattern)
	}

	var page repository.InventoryPage
	if err := query.Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("count inventory: %w", err)
	}

	if q.SortBy == repository.SortByValue {
		if q.SortOrder == "asc" {
			query = query.Order("current_value ASC NULLS LAST")
		} else {
			query = query.Order("current_value DESC NULLS LAST")
		}
	} else {
		query = query.Order("scanned_at DESC")
	}
	query = query.Order("id")

	if q.Limit > 0 {
		pageNum := max(q.Page, 1)
		query = query.Offset((pageNum - 1) * q.Limit).Limit(q.Limit)
	}
	if err := query.Find(&page.Items).Error; err != nil {
		return page, fmt.Errorf("list inventory: %w", err)
	}
	return page, nil
}

func (s *Store) CountInventory(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.InventoryEntry{}).Where("user_id = ?", userID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count inventory: %w", err)
	}
	return n, nil
}

func (s *Store) SummarizeInventory(ctx context.Context, userID string) (repository.InventorySummary, error) {
	var row struct {
		Cards int64
		Value decimal.Decimal
	}
	err := s.db.WithContext(ctx).Model(&models.InventoryEntry{}).
		Select("COALESCE(SUM(quantity), 0) AS cards, COALESCE(SUM(current_value * quantity), 0) AS value").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return repository.InventorySummary{}, fmt.Errorf("summarize inventory: %w", err)
	}
	return repository.InventorySummary{Cards: row.Cards, Value: row.Value}, nil
}

func (s *Store) DeleteInventoryEntry(ctx context.Context, userID, entryID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).Delete(&models.InventoryEntry{})
	if res.Error != nil {
		return fmt.Errorf("delete inventory entry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) TopValuedEntries(ctx context.Context, userID string, limit int) ([]models.InventoryEntry, error) {
	var entries []models.InventoryEntry
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("current_value DESC NULLS LAST").Order("id").
		Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("top valued entries: %w", err)
	}
	return entries, nil
}

func (s *Store) FindMarketplaceEntries(ctx context.Context, q repository.MarketplaceQuery) ([]repository.MarketplaceRow, error) {
	query := s.db.WithContext(ctx).Model(&models.InventoryEntry{}).
		Select("inventory_entries.*").
		Joins("JOIN users ON users.id = inventory_entries.user_id").
		Where("users.id <> ? AND users.marketplace_enabled = ?", q.ExcludeUserID, true).
		Where("inventory_entries.card_name ILIKE ?", "%"+escapeLike(q.CardName)+"%")
	if q.SetCode != nil {
		query = query.Where("inventory_entries.set_code = ?", *q.SetCode)
	}
	query = query.Order("inventory_entries.created_at").Order("inventory_entries.id")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var entries []models.InventoryEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("find marketplace entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ownerIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		ownerIDs = append(ownerIDs, e.UserID)
	}
	var owners []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ownerIDs).Find(&owners).Error; err != nil {
		return nil, fmt.Errorf("load marketplace owners: %w", err)
	}
	byID := make(map[string]models.User, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}

	rows := make([]repository.MarketplaceRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, repository.MarketplaceRow{Entry: e, Owner: byID[e.UserID]})
	}
	return rows, nil
}

func (s *Store) CreateWant(ctx context.Context, want *models.Want) error {
	if want.ID == "" {
		want.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(want).Error; err != nil {
		return fmt.Errorf("create want: %w", err)
	}
	return nil
}

func (s *Store) ListWants(ctx context.Context, userID string) ([]models.Want, error) {
	var wants []models.Want
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id").Find(&wants).Error
	if err != nil {
		return nil, fmt.Errorf("list wants: %w", err)
	}
	return wants, nil
}

func (s *Store) DeleteWant(ctx context.Context, userID, wantID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", wantID, userID).Delete(&models.Want{})
	if res.Error != nil {
		return fmt.Errorf("delete want: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateNotificationIfAbsent relies on the (user_id, dedup_key) unique index,
// so concurrent generators cannot insert the same triple twice.
func (s *Store) CreateNotificationIfAbsent(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.DedupKey = models.NotificationDedupKey(n.Type, n.Title, n.Message)

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedup_key"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("create notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var notes []models.Notification
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).Update("read", true)
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// InTx runs fn in a read-committed transaction. Quota safety comes from the
// row lock taken by CountInventoryForUpdate, not from the isolation level.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) CountInventoryForUpdate(ctx context.Context, userID string) (int64, error) {
	var owner models.User
	err := t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", userID).Take(&owner).Error
	if err != nil {
		return 0, notFound(err)
	}

	var n int64
	if err := t.db.WithContext(ctx).Model(&models.InventoryEntry{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count inventory: %w", err)
	}
	return n, nil
}

func (t *gormTx) CreateInventoryEntries(ctx context.Context, entries []models.InventoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}
	if err := t.db.WithContext(ctx).CreateInBatches(entries, 100).Error; err != nil {
		return fmt.Errorf("insert inventory entries: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

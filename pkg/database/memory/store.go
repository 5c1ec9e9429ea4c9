// Package memory is an in-process implementation of repository.Store used for
// local development without postgres and by service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

// Store keeps every record in memory. A single mutex serializes access,
// and InTx holds it for the whole transaction.
type Store struct {
	mu            sync.Mutex
	users         map[string]*models.User
	scans         map[string]*models.Scan
	inventory     []models.InventoryEntry
	wants         []models.Want
	notifications []models.Notification
	now           func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		users: make(map[string]*models.User),
		scans: make(map[string]*models.Scan),
		now:   time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return fmt.Errorf("user %q: %w", user.Username, repository.ErrDuplicate)
		}
	}
	if user.SubscriptionTier == "" {
		user.SubscriptionTier = models.TierFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UpdateUser(_ context.Context, userID string, u repository.UserUpdate) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Apply(user)
	cp := *user
	return &cp, nil
}

func (s *Store) CreateScan(_ context.Context, scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scan.ID == "" {
		scan.ID = uuid.NewString()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = s.now()
	}
	cp := *scan
	s.scans[scan.ID] = &cp
	return nil
}

func (s *Store) GetScan(_ context.Context, userID, scanID string) (*models.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scan, ok := s.scans[scanID]
	if !ok || scan.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *scan
	return &cp, nil
}

func (s *Store) UpdateScan(_ context.Context, scan *models.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.scans[scan.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *scan
	s.scans[scan.ID] = &cp
	return nil
}

func (s *Store) CountScansSince(_ context.Context, userID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, scan := range s.scans {
		if scan.UserID == userID && !scan.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListInventory(_ context.Context, userID string, q repository.InventoryQuery) (repository.InventoryPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(q.Search)
	var items []models.InventoryEntry
	for _, e := range s.inventory {
		if e.UserID != userID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.CardName), search) &&
			!strings.Contains(strings.ToLower(e.SetCode), search) {
			continue
		}
		items = append(items, e)
	}

	if q.SortBy == repository.SortByValue {
		asc := q.SortOrder == "asc"
		sort.SliceStable(items, func(i, j int) bool {
			return valueLess(items[i], items[j], asc)
		})
	} else {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ScannedAt.After(items[j].ScannedAt)
		})
	}

	page := repository.InventoryPage{Total: int64(len(items))}
	if q.Limit <= 0 {
		page.Items = items
		return page, nil
	}
	pageNum := max(q.Page, 1)
	start := min((pageNum-1)*q.Limit, len(items))
	end := min(start+q.Limit, len(items))
	page.Items = items[start:end]
	return page, nil
}

// valueLess orders by current value with missing values last in either direction
func valueLess(a, b models.InventoryEntry, asc bool) bool {
	if a.CurrentValue.Valid != b.CurrentValue.Valid {
		return a.CurrentValue.Valid
	}
	if !a.CurrentValue.Valid {
		return false
	}
	if asc {
		return a.CurrentValue.Decimal.LessThan(b.CurrentValue.Decimal)
	}
	return a.CurrentValue.Decimal.GreaterThan(b.CurrentValue.Decimal)
}

func (s *Store) CountInventory(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked(userID), nil
}

func (s *Store) countLocked(userID string) int64 {
	var n int64
	for _, e := range s.inventory {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

func (s *Store) SummarizeInventory(_ context.Context, userID string) (repository.InventorySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := repository.InventorySummary{Value: decimal.Zero}
	for _, e := range s.inventory {
		if e.UserID != userID {
			continue
		}
		sum.Cards += int64(e.Quantity)
		if e.CurrentValue.Valid {
			sum.Value = sum.Value.Add(e.CurrentValue.Decimal.Mul(decimal.NewFromInt(int64(e.Quantity))))
		}
	}
	return sum, nil
}

func (s *Store) DeleteInventoryEntry(_ context.Context, userID, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.inventory {
		if e.ID == entryID && e.UserID == userID {
			s.inventory = append(s.inventory[:i], s.inventory[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) TopValuedEntries(_ context.Context, userID string, limit int) ([]models.InventoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []models.InventoryEntry
	for _, e := range s.inventory {
		if e.UserID == userID {
			items = append(items, e)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return valueLess(items[i], items[j], false)
	})
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) FindMarketplaceEntries(_ context.Context, q repository.MarketplaceQuery) ([]repository.MarketplaceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(q.CardName)
	var rows []repository.MarketplaceRow
	for _, e := range s.inventory {
		if q.Limit > 0 && len(rows) >= q.Limit {
			break
		}
		if e.UserID == q.ExcludeUserID {
			continue
		}
		owner, ok := s.users[e.UserID]
		if !ok || !owner.MarketplaceEnabled {
			continue
		}
		if !strings.Contains(strings.ToLower(e.CardName), needle) {
			continue
		}
		if q.SetCode != nil && e.SetCode != *q.SetCode {
			continue
		}
		rows = append(rows, repository.MarketplaceRow{Entry: e, Owner: *owner})
	}
	return rows, nil
}

func (s *Store) CreateWant(_ context.Context, want *models.Want) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if want.ID == "" {
		want.ID = uuid.NewString()
	}
	if want.CreatedAt.IsZero() {
		want.CreatedAt = s.now()
	}
	s.wants = append(s.wants, *want)
	return nil
}

// ListWants returns the owner's wants, newest first
func (s *Store) ListWants(_ context.Context, userID string) ([]models.Want, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Want
	for i := len(s.wants) - 1; i >= 0; i-- {
		if s.wants[i].UserID == userID {
			out = append(out, s.wants[i])
		}
	}
	return out, nil
}

func (s *Store) DeleteWant(_ context.Context, userID, wantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.wants {
		if w.ID == wantID && w.UserID == userID {
			s.wants = append(s.wants[:i], s.wants[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) CreateNotificationIfAbsent(_ context.Context, n *models.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.notifications {
		if existing.UserID == n.UserID &&
			existing.Type == n.Type &&
			existing.Title == n.Title &&
			existing.Message == n.Message {
			return false, nil
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.DedupKey == "" {
		n.DedupKey = models.NotificationDedupKey(n.Type, n.Title, n.Message)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications = append(s.notifications, *n)
	return true, nil
}

// ListNotifications returns the owner's notifications, newest first
func (s *Store) ListNotifications(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, note := range s.notifications {
		if note.UserID == userID && !note.Read {
			n++
		}
	}
	return n, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == notificationID && s.notifications[i].UserID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// InTx stages inserts and applies them only when fn succeeds
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.inventory = append(s.inventory, tx.staged...)
	return nil
}

type memTx struct {
	store  *Store
	staged []models.InventoryEntry
}

func (t *memTx) CountInventoryForUpdate(_ context.Context, userID string) (int64, error) {
	if _, ok := t.store.users[userID]; !ok {
		return 0, repository.ErrNotFound
	}
	var staged int64
	for _, e := range t.staged {
		if e.UserID == userID {
			staged++
		}
	}
	return t.store.countLocked(userID) + staged, nil
}

func (t *memTx) CreateInventoryEntries(_ context.Context, entries []models.InventoryEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("inventory entry for %q has no id", e.CardName)
		}
		if e.Quantity < 1 {
			return fmt.Errorf("inventory entry %s: quantity must be at least 1", e.ID)
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = t.store.now()
		}
		t.staged = append(t.staged, e)
	}
	return nil
}

// Package notification creates user notifications from marketplace matches
// and portfolio trends.
//
// Every notification goes through the Deduper: an owner never holds two
// notifications with the same type, title and message. The comparison is
// exact and not scoped by time, so regenerating the same events is free while
// a changed figure in the message produces a new notification.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"cardvault/pkg/metrics"
	"cardvault/pkg/models"
	"cardvault/pkg/services/marketplace"
)

const (
	// MaxMatchNotifications bounds match notifications per generation run
	MaxMatchNotifications = 20

	matchTitle = "Marketplace match found"
	trendTitle = "Portfolio trend"
)

// Candidate is a notification that may already exist
type Candidate struct {
	UserID  string
	Type    models.NotificationType
	Title   string
	Message string
}

// Store inserts notifications unless an identical one exists
type Store interface {
	CreateNotificationIfAbsent(ctx context.Context, n *models.Notification) (bool, error)
}

// Deduper stores a notification only if an identical one is not already there
type Deduper struct {
	store  Store
	logger *slog.Logger
}

// NewDeduper returns a Deduper writing to store
func NewDeduper(store Store, logger *slog.Logger) *Deduper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduper{store: store, logger: logger}
}

// Notify stores c unless the owner already has it. It reports whether a
// notification was created.
func (d *Deduper) Notify(ctx context.Context, c Candidate) (bool, error) {
	n := &models.Notification{
		UserID:   c.UserID,
		Type:     c.Type,
		Title:    c.Title,
		Message:  c.Message,
		DedupKey: models.NotificationDedupKey(c.Type, c.Title, c.Message),
	}
	created, err := d.store.CreateNotificationIfAbsent(ctx, n)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	if created {
		metrics.NotificationsCreated.WithLabelValues(string(c.Type)).Inc()
		d.logger.Debug("notification created", "user_id", c.UserID, "type", c.Type, "notification_id", n.ID)
	}
	return created, nil
}

// Matcher finds marketplace matches for a user
type Matcher interface {
	Matches(ctx context.Context, userID string) ([]marketplace.Match, error)
}

// Inventory exposes an owner's most valuable entries
type Inventory interface {
	TopValuedEntries(ctx context.Context, userID string, limit int) ([]models.InventoryEntry, error)
}

// Generator turns matches and trends into deduplicated notifications
type Generator struct {
	deduper   *Deduper
	matcher   Matcher
	inventory Inventory
	tiers     models.TierTable
	logger    *slog.Logger
}

// NewGenerator returns a Generator
func NewGenerator(deduper *Deduper, matcher Matcher, inventory Inventory, tiers models.TierTable, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		deduper:   deduper,
		matcher:   matcher,
		inventory: inventory,
		tiers:     tiers,
		logger:    logger,
	}
}

// MatchNotificationsFor notifies user about up to MaxMatchNotifications of
// matches and returns how many were new.
func (g *Generator) MatchNotificationsFor(ctx context.Context, user *models.User, matches []marketplace.Match) (int, error) {
	if len(matches) > MaxMatchNotifications {
		matches = matches[:MaxMatchNotifications]
	}

	created := 0
	for _, m := range matches {
		ok, err := g.deduper.Notify(ctx, Candidate{
			UserID:  user.ID,
			Type:    models.NotificationMatch,
			Title:   matchTitle,
			Message: matchMessage(m),
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// MatchNotifications runs the matcher for user, then notifies about the results
func (g *Generator) MatchNotifications(ctx context.Context, user *models.User) ([]marketplace.Match, int, error) {
	matches, err := g.matcher.Matches(ctx, user.ID)
	if err != nil {
		return nil, 0, err
	}
	created, err := g.MatchNotificationsFor(ctx, user, matches)
	return matches, created, err
}

// TrendNotifications notifies user about their top-valued entries. The number
// of entries considered is the tier's trend insight limit; entries without a
// recorded value are skipped.
func (g *Generator) TrendNotifications(ctx context.Context, user *models.User) (int, error) {
	tier := g.tiers.Resolve(user.SubscriptionTier)
	if tier.MaxTrendInsights <= 0 {
		return 0, nil
	}

	entries, err := g.inventory.TopValuedEntries(ctx, user.ID, tier.MaxTrendInsights)
	if err != nil {
		return 0, fmt.Errorf("failed to load top entries: %w", err)
	}

	created := 0
	for _, e := range entries {
		if !e.CurrentValue.Valid || e.CurrentValue.Decimal.IsZero() {
			continue
		}
		ok, err := g.deduper.Notify(ctx, Candidate{
			UserID:  user.ID,
			Type:    models.NotificationTrend,
			Title:   trendTitle,
			Message: trendMessage(e),
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

func matchMessage(m marketplace.Match) string {
	return fmt.Sprintf("You want '%s' and %s has '%s' (%s).",
		m.Want.CardName, m.Owner.Username, m.Entry.CardName, m.Entry.SetCode)
}

func trendMessage(e models.InventoryEntry) string {
	return fmt.Sprintf("'%s' (%s) is trending. Current value: $%s.",
		e.CardName, e.SetCode, e.CurrentValue.Decimal.StringFixed(2))
}

// Package marketplace cross-references a user's wants with what other users
// have made visible in the marketplace.
package marketplace

import (
	"context"
	"fmt"
	"log/slog"

	"cardvault/pkg/models"
	"cardvault/pkg/repository"
)

// MaxMatchesPerWant caps how many entries a single want can match
const MaxMatchesPerWant = 10

// Repository is the read access the matcher needs
type Repository interface {
	ListWants(ctx context.Context, userID string) ([]models.Want, error)
	FindMarketplaceEntries(ctx context.Context, q repository.MarketplaceQuery) ([]repository.MarketplaceRow, error)
}

// Match pairs one of the requester's wants with another user's entry
type Match struct {
	Want        models.Want           `json:"want"`
	RequesterID string                `json:"requester_id"`
	Owner       models.User           `json:"owner"`
	Entry       models.InventoryEntry `json:"entry"`
}

// Matcher pairs a user's wants with cards other users hold
type Matcher struct {
	repo   Repository
	logger *slog.Logger
}

// NewMatcher returns a Matcher reading from repo
func NewMatcher(repo Repository, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{repo: repo, logger: logger}
}

// Matches returns, for every want of userID, up to MaxMatchesPerWant entries
// owned by other opted-in users. Entries match when their name contains the
// wanted name, ignoring case, and, if the want names a set, the set code is
// identical. Wants are visited in the order the repository lists them.
func (m *Matcher) Matches(ctx context.Context, userID string) ([]Match, error) {
	wants, err := m.repo.ListWants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wants: %w", err)
	}

	var matches []Match
	for _, want := range wants {
		q := repository.MarketplaceQuery{
			ExcludeUserID: userID,
			CardName:      want.CardName,
			Limit:         MaxMatchesPerWant,
		}
		if want.SetCode != nil && *want.SetCode != "" {
			q.SetCode = want.SetCode
		}
		rows, err := m.repo.FindMarketplaceEntries(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to search marketplace for want %s: %w", want.ID, err)
		}
		for _, row := range rows {
			matches = append(matches, Match{
				Want:        want,
				RequesterID: userID,
				Owner:       row.Owner,
				Entry:       row.Entry,
			})
		}
	}

	m.logger.Debug("marketplace matched", "user_id", userID, "wants", len(wants), "matches", len(matches))
	return matches, nil
}

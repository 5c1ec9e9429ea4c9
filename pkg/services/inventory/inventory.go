// Package inventory commits detected cards to a user's inventory under their
// subscription ceiling.
//
// There are two entry points with deliberately different quota behavior.
// AutoSave, run after every scan, keeps as many cards as fit and silently
// drops the rest. SaveExplicit, run when the user picks cards to keep, rejects
// the whole request if it does not fit. Both re-check the ceiling inside the
// transaction that inserts, with the owner locked, so concurrent commits for
// one user can never overshoot it.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"cardvault/pkg/errors"
	"cardvault/pkg/metrics"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
	"cardvault/pkg/services/grading"
)

// Repository is the persistence the service needs
type Repository interface {
	repository.Transactor
	CountInventory(ctx context.Context, userID string) (int64, error)
}

// Cropper cuts a card out of its scan image
type Cropper interface {
	CropFromFile(sourcePath string, box models.BoundingBox, id string) (string, bool)
	Remove(path string)
}

// Result reports what a commit persisted
type Result struct {
	Saved     int
	Entries   []models.InventoryEntry
	Truncated bool
}

// Service commits detected cards into a user's inventory under their tier cap
type Service struct {
	repo    Repository
	tiers   models.TierTable
	cropper Cropper
	logger  *slog.Logger
	now     func() time.Time
}

// NewService returns a Service
func NewService(repo Repository, tiers models.TierTable, cropper Cropper, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		tiers:   tiers,
		cropper: cropper,
		logger:  logger,
		now:     time.Now,
	}
}

// AutoSave commits cards in order until the owner's ceiling is reached
func (s *Service) AutoSave(ctx context.Context, user *models.User, scan *models.Scan, cards []models.DetectedCard) (Result, error) {
	return s.commit(ctx, metrics.PathAutoSave, user, scan, cards, false)
}

// SaveExplicit commits every card or none. requested is the number of cards
// the caller asked for, which may exceed len(cards) when some ids did not
// match the scan.
func (s *Service) SaveExplicit(ctx context.Context, user *models.User, scan *models.Scan, cards []models.DetectedCard, requested int) (Result, error) {
	tier := s.tiers.Resolve(user.SubscriptionTier)

	count, err := s.repo.CountInventory(ctx, user.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count inventory: %w", err)
	}
	if count+int64(requested) > int64(tier.MaxCards) {
		metrics.QuotaRejections.WithLabelValues(metrics.PathExplicit).Inc()
		return Result{}, quotaError(tier, count)
	}

	return s.commit(ctx, metrics.PathExplicit, user, scan, cards, true)
}

func quotaError(tier models.Tier, count int64) *errors.Error {
	return errors.QuotaExceededf(
		"Card limit reached. Your %s plan allows %d cards. You currently have %d cards. Please upgrade to add more.",
		tier.Name, tier.MaxCards, count)
}

func (s *Service) commit(ctx context.Context, path string, user *models.User, scan *models.Scan, cards []models.DetectedCard, strict bool) (Result, error) {
	tier := s.tiers.Resolve(user.SubscriptionTier)
	log := s.logger.With("user_id", user.ID, "scan_id", scan.ID, "path", path)

	var (
		entries   []models.InventoryEntry
		crops     []string
		truncated bool
	)

	err := s.repo.InTx(ctx, func(tx repository.Tx) error {
		count, err := tx.CountInventoryForUpdate(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to lock inventory: %w", err)
		}

		for _, card := range cards {
			if count+int64(len(entries)) >= int64(tier.MaxCards) {
				truncated = true
				break
			}
			entry, err := s.newEntry(user, scan, card)
			if err != nil {
				return err
			}
			if entry.CardImageURL != nil {
				crops = append(crops, *entry.CardImageURL)
			}
			entries = append(entries, entry)
		}

		if truncated && strict {
			return quotaError(tier, count)
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInventoryEntries(ctx, entries)
	})
	if err != nil {
		for _, crop := range crops {
			s.cropper.Remove(crop)
		}
		if errors.Is(err, errors.ErrQuotaExceeded) {
			metrics.QuotaRejections.WithLabelValues(path).Inc()
			return Result{}, err
		}
		return Result{}, fmt.Errorf("failed to commit inventory: %w", err)
	}

	if truncated {
		metrics.QuotaRejections.WithLabelValues(path).Inc()
		log.Info("inventory ceiling reached, remaining cards dropped",
			"tier", tier.Key,
			"max_cards", tier.MaxCards,
			"offered", len(cards),
			"saved", len(entries))
	}
	metrics.InventorySaved.WithLabelValues(path).Add(float64(len(entries)))
	log.Debug("inventory committed", "saved", len(entries))

	return Result{Saved: len(entries), Entries: entries, Truncated: truncated}, nil
}

func (s *Service) newEntry(user *models.User, scan *models.Scan, card models.DetectedCard) (models.InventoryEntry, error) {
	id := uuid.NewString()
	condition, grade := grading.Grade(card.EstimatedGrade())

	metadata, err := json.Marshal(models.EntryMetadata{
		CardNumber:       card.CardNumber,
		Year:             card.Year,
		Domain:           card.Domain,
		Confidence:       card.Confidence,
		ConditionDetails: card.Condition,
	})
	if err != nil {
		return models.InventoryEntry{}, fmt.Errorf("failed to encode entry metadata: %w", err)
	}

	now := s.now()
	entry := models.InventoryEntry{
		ID:             id,
		UserID:         user.ID,
		CardName:       card.Name,
		SetCode:        card.SetCode,
		Quantity:       1,
		Condition:      condition,
		ConditionGrade: grade,
		ScanImageURL:   scan.ImageURL,
		Metadata:       datatypes.JSON(metadata),
		ScannedAt:      now,
		CreatedAt:      now,
	}
	if crop, ok := s.cropper.CropFromFile(scan.ImageURL, card.BoundingBox, id); ok {
		entry.CardImageURL = &crop
	}
	return entry, nil
}

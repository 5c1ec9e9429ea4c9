// Package scan runs an uploaded image through detection and into inventory.
package scan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cardvault/pkg/errors"
	"cardvault/pkg/metrics"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
	"cardvault/pkg/services/inventory"
	"cardvault/pkg/services/ocr"
)

const unknownCardName = "Unknown Card"

// Uploads stores original scan images
type Uploads interface {
	SaveUpload(filename string, r io.Reader) (string, error)
}

// Normalizer turns a raw detection payload into cards
type Normalizer interface {
	Normalize(raw string, mode models.ScanMode) []models.DetectedCard
}

// Cropper cuts a card out of its scan image
type Cropper interface {
	CropFromFile(sourcePath string, box models.BoundingBox, id string) (string, bool)
}

// Inventory commits detected cards
type Inventory interface {
	AutoSave(ctx context.Context, user *models.User, scan *models.Scan, cards []models.DetectedCard) (inventory.Result, error)
	SaveExplicit(ctx context.Context, user *models.User, scan *models.Scan, cards []models.DetectedCard, requested int) (inventory.Result, error)
}

// Upload is an image submitted for scanning
type Upload struct {
	Filename string
	Body     io.Reader
	Mode     models.ScanMode
}

// Outcome is the state of a scan after Process returns
type Outcome struct {
	Scan      *models.Scan
	Cards     []models.DetectedCard
	AutoSaved int
}

// Service runs an uploaded image through detection, cropping and grading and
// records the result as a scan.
type Service struct {
	repo       repository.Scans
	uploads    Uploads
	detector   ocr.Detector
	normalizer Normalizer
	cropper    Cropper
	inventory  Inventory
	logger     *slog.Logger
	now        func() time.Time
}

// NewService returns a Service
func NewService(repo repository.Scans, uploads Uploads, detector ocr.Detector, normalizer Normalizer, cropper Cropper, inv Inventory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		uploads:    uploads,
		detector:   detector,
		normalizer: normalizer,
		cropper:    cropper,
		inventory:  inv,
		logger:     logger,
		now:        time.Now,
	}
}

// Process stores the upload, runs detection and auto-saves what was found.
//
// Detection failures are not returned: the scan is marked failed with the
// reason in its Error field and the Outcome carries that scan. The detection
// call ignores cancellation of ctx and is bounded only by the detector's own
// timeout, so a dropped client connection never leaves a scan half-processed.
func (s *Service) Process(ctx context.Context, user *models.User, up Upload) (*Outcome, error) {
	if !up.Mode.Valid() {
		return nil, errors.Validationf("scan_type must be %q or %q", models.ScanModeSingle, models.ScanModeMulti)
	}
	if up.Body == nil {
		return nil, errors.Validation("image is required")
	}

	path, err := s.uploads.SaveUpload(up.Filename, up.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	scan := &models.Scan{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ImageURL:  path,
		ScanType:  up.Mode,
		Status:    models.ScanStatusProcessing,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to create scan: %w", err)
	}

	log := s.logger.With("scan_id", scan.ID, "user_id", user.ID, "scan_type", up.Mode)
	ctx = context.WithoutCancel(ctx)

	raw, err := s.detector.Detect(ctx, path, up.Mode)
	if err != nil {
		log.Warn("detection failed", "error", err)
		s.finish(scan, models.ScanStatusFailed)
		scan.Error = describeDetectionError(err)
		if err := s.repo.UpdateScan(ctx, scan); err != nil {
			return nil, fmt.Errorf("failed to record scan failure: %w", err)
		}
		return &Outcome{Scan: scan, Cards: []models.DetectedCard{}}, nil
	}

	cards := s.normalizer.Normalize(raw, up.Mode)
	if len(cards) == 0 && up.Mode == models.ScanModeSingle {
		cards = []models.DetectedCard{unknownCard()}
	}
	for i := range cards {
		if crop, ok := s.cropper.CropFromFile(path, cards[i].BoundingBox, cards[i].ID); ok {
			cards[i].CropImagePath = crop
		}
	}

	if err := scan.SetResults(cards); err != nil {
		return nil, err
	}
	s.finish(scan, models.ScanStatusCompleted)
	if err := s.repo.UpdateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("failed to store scan results: %w", err)
	}
	metrics.CardsDetected.Add(float64(len(cards)))
	log.Info("scan completed", "cards", len(cards))

	out := &Outcome{Scan: scan, Cards: cards}
	if len(cards) > 0 {
		out.AutoSaved = s.autoSave(ctx, log, user, scan, cards)
	}
	return out, nil
}

func (s *Service) finish(scan *models.Scan, status models.ScanStatus) {
	now := s.now()
	scan.Status = status
	scan.ProcessedAt = &now
	metrics.ScansTotal.WithLabelValues(string(status)).Inc()
}

// autoSave never fails the scan: errors and panics are logged and reported as nothing saved
func (s *Service) autoSave(ctx context.Context, log *slog.Logger, user *models.User, scan *models.Scan, cards []models.DetectedCard) (saved int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("auto-save panicked", "panic", r)
			saved = 0
		}
	}()

	res, err := s.inventory.AutoSave(ctx, user, scan, cards)
	if err != nil {
		log.Error("auto-save failed", "error", err)
		return 0
	}
	return res.Saved
}

func unknownCard() models.DetectedCard {
	return models.DetectedCard{
		ID:          uuid.NewString(),
		Name:        unknownCardName,
		Domain:      "other",
		BoundingBox: models.FullFrameBox(),
	}
}

func describeDetectionError(err error) string {
	var statusErr *ocr.StatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("ML service error: %d - %s", statusErr.Code, statusErr.Body)
	case errors.Is(err, ocr.ErrTimeout):
		return "Timeout error: " + err.Error()
	case errors.Is(err, ocr.ErrUnavailable):
		return "Connection error: " + err.Error()
	default:
		return "Detection error: " + err.Error()
	}
}

// Get returns one of the owner's scans with its detected cards
func (s *Service) Get(ctx context.Context, userID, scanID string) (*models.Scan, []models.DetectedCard, error) {
	scan, err := s.repo.GetScan(ctx, userID, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, errors.NotFound("Scan not found")
		}
		return nil, nil, fmt.Errorf("failed to load scan: %w", err)
	}
	cards, err := scan.DetectedCards()
	if err != nil {
		return nil, nil, err
	}
	if cards == nil {
		cards = []models.DetectedCard{}
	}
	return scan, cards, nil
}

// SaveSelected commits the chosen cards of a completed scan, all or nothing
func (s *Service) SaveSelected(ctx context.Context, user *models.User, scanID string, cardIDs []string) (inventory.Result, error) {
	if len(cardIDs) == 0 {
		return inventory.Result{}, errors.Validation("No cards selected")
	}

	scan, cards, err := s.Get(ctx, user.ID, scanID)
	if err != nil {
		return inventory.Result{}, err
	}
	if scan.Status != models.ScanStatusCompleted {
		return inventory.Result{}, errors.Validation("Scan is not completed")
	}

	wanted := make(map[string]struct{}, len(cardIDs))
	for _, id := range cardIDs {
		wanted[id] = struct{}{}
	}
	var selected []models.DetectedCard
	for _, c := range cards {
		if _, ok := wanted[c.ID]; ok {
			selected = append(selected, c)
		}
	}

	return s.inventory.SaveExplicit(ctx, user, scan, selected, len(cardIDs))
}

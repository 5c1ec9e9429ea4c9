package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// ScanStatus tracks a scan through detection
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// Scan is one uploaded image and the outcome of running detection on it
type Scan struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      string         `gorm:"type:varchar(36);index;not null" json:"user_id"`
	ImageURL    string         `json:"image_url"`
	ScanType    ScanMode       `json:"scan_type"`
	Status      ScanStatus     `gorm:"not null;default:pending" json:"status"`
	Results     datatypes.JSON `json:"results,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// ScanResults is the normalized detection outcome stored on a completed scan
type ScanResults struct {
	Success       bool           `json:"success"`
	DetectedCards []DetectedCard `json:"detected_cards"`
	TotalCards    int            `json:"total_cards"`
}

// SetResults stores the detected cards on the scan
func (s *Scan) SetResults(cards []DetectedCard) error {
	raw, err := json.Marshal(ScanResults{
		Success:       true,
		DetectedCards: cards,
		TotalCards:    len(cards),
	})
	if err != nil {
		return fmt.Errorf("encode scan results: %w", err)
	}
	s.Results = datatypes.JSON(raw)
	return nil
}

// DetectedCards decodes the stored results. Scans without results yield no cards.
func (s *Scan) DetectedCards() ([]DetectedCard, error) {
	if len(s.Results) == 0 {
		return nil, nil
	}
	var results ScanResults
	if err := json.Unmarshal(s.Results, &results); err != nil {
		return nil, fmt.Errorf("decode scan results: %w", err)
	}
	return results.DetectedCards, nil
}

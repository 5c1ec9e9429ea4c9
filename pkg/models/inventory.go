package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Condition is the display label for a card's physical state
type Condition string

const (
	ConditionNearMint         Condition = "Near Mint"
	ConditionLightlyPlayed    Condition = "Lightly Played"
	ConditionModeratelyPlayed Condition = "Moderately Played"
	ConditionHeavilyPlayed    Condition = "Heavily Played"
	ConditionDamaged          Condition = "Damaged"
)

// Valid reports whether c is one of the known labels
func (c Condition) Valid() bool {
	switch c {
	case ConditionNearMint, ConditionLightlyPlayed, ConditionModeratelyPlayed, ConditionHeavilyPlayed, ConditionDamaged:
		return true
	}
	return false
}

// InventoryEntry represents one card owned by a user
type InventoryEntry struct {
	ID             string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string              `gorm:"type:varchar(36);index;not null" json:"user_id"`
	CardName       string              `gorm:"index" json:"card_name"`
	SetCode        string              `gorm:"index" json:"set_code"`
	Quantity       int                 `gorm:"not null;default:1" json:"quantity"`
	Condition      Condition           `json:"condition"`
	ConditionGrade *float64            `json:"condition_grade"`
	CurrentValue   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"current_value"`
	ScanImageURL   string              `json:"scan_image_url"`
	CardImageURL   *string             `json:"card_image_url"`
	Metadata       datatypes.JSON      `json:"metadata_json"`
	ScannedAt      time.Time           `json:"scanned_at"`
	CreatedAt      time.Time           `json:"created_at"`
}

// DisplayImage returns the cropped card image, falling back to the scan image
func (e InventoryEntry) DisplayImage() string {
	if e.CardImageURL != nil && *e.CardImageURL != "" {
		return *e.CardImageURL
	}
	return e.ScanImageURL
}

// EntryMetadata is the auxiliary identity data serialized into InventoryEntry.Metadata
type EntryMetadata struct {
	CardNumber       *string           `json:"card_number"`
	Year             *int              `json:"year"`
	Domain           string            `json:"domain"`
	Confidence       float64           `json:"confidence"`
	ConditionDetails *ConditionMetrics `json:"condition_details"`
}

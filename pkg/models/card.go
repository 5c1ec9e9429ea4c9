package models

// ScanMode selects how many cards the detection service looks for in one image
type ScanMode string

const (
	ScanModeSingle ScanMode = "single"
	ScanModeMulti  ScanMode = "multi"
)

// Valid reports whether the mode is one the detection service understands
func (m ScanMode) Valid() bool {
	return m == ScanModeSingle || m == ScanModeMulti
}

// BoundingBox is an axis-aligned rectangle in image-normalized coordinates
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PlaceholderBox returns the tiled position used when a detection carries no usable box
func PlaceholderBox(index int) BoundingBox {
	return BoundingBox{
		X:      0.1 + float64(index)*0.3,
		Y:      0.2,
		Width:  0.25,
		Height: 0.4,
	}
}

// FullFrameBox is the default box for single-card scans
func FullFrameBox() BoundingBox {
	return BoundingBox{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8}
}

// ConditionMetrics holds the physical condition breakdown reported for a card
type ConditionMetrics struct {
	Centering      float64  `json:"centering"`
	Corners        float64  `json:"corners"`
	Surface        float64  `json:"surface"`
	EstimatedGrade *float64 `json:"estimated_grade,omitempty"`
}

// DetectedCard is one card recognized in a scan image. It is never persisted
// as-is: the inventory service turns accepted cards into InventoryEntry rows.
type DetectedCard struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SetCode       string            `json:"set_code"`
	CardNumber    *string           `json:"card_number,omitempty"`
	Year          *int              `json:"year,omitempty"`
	Domain        string            `json:"domain"`
	Confidence    float64           `json:"confidence"`
	BoundingBox   BoundingBox       `json:"bounding_box"`
	Condition     *ConditionMetrics `json:"condition,omitempty"`
	CropImagePath string            `json:"crop_image_url,omitempty"`
}

// EstimatedGrade returns the grade reported in the condition breakdown, if any
func (c DetectedCard) EstimatedGrade() *float64 {
	if c.Condition == nil {
		return nil
	}
	return c.Condition.EstimatedGrade
}

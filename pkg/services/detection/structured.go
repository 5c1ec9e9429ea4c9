package detection

import (
	"github.com/google/uuid"

	"cardvault/pkg/models"
)

const (
	defaultCardName   = "Unknown Card"
	defaultDomain     = "other"
	defaultConfidence = 0.8
)

// Structured reads the JSON document embedded in a detection payload
type Structured struct {
	newID func() string
}

// NewStructured returns the structured JSON strategy
func NewStructured() *Structured {
	return &Structured{newID: uuid.NewString}
}

func (s *Structured) Name() string { return "structured" }

func (s *Structured) Parse(raw string, mode models.ScanMode) ([]models.DetectedCard, error) {
	doc, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	if mode == models.ScanModeSingle {
		return s.single(doc), nil
	}

	// The detection service sometimes nests the model's own answer as text.
	if obj, ok := doc.(map[string]any); ok {
		if inner, ok := Lookup(obj, "raw_response").OptString(); ok {
			if innerDoc, err := extractJSON(inner); err == nil {
				if cards := s.multi(innerDoc); len(cards) > 0 {
					return cards, nil
				}
			}
		}
	}
	return s.multi(doc), nil
}

func (s *Structured) multi(doc any) []models.DetectedCard {
	items, _ := cardList(doc)
	cards := make([]models.DetectedCard, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		card := s.build(obj, defaultCardName)
		if box, ok := boundingBox(obj); ok {
			card.BoundingBox = box
		} else {
			card.BoundingBox = models.PlaceholderBox(i)
		}
		cards = append(cards, card)
	}
	return cards
}

func (s *Structured) single(doc any) []models.DetectedCard {
	items, container := cardList(doc)

	obj := container
	for _, item := range items {
		if first, ok := item.(map[string]any); ok {
			obj = first
			break
		}
	}
	if obj == nil {
		return nil
	}

	card := s.build(obj, "")
	if card.Name == "" {
		return nil
	}
	if box, ok := boundingBox(obj); ok {
		card.BoundingBox = box
	} else {
		card.BoundingBox = models.FullFrameBox()
	}
	return []models.DetectedCard{card}
}

func (s *Structured) build(obj map[string]any, defaultName string) models.DetectedCard {
	identity, ok := Lookup(obj, "cardIdentity", "card_identity").Object()
	if !ok {
		identity = obj
	}

	card := models.DetectedCard{
		ID:         s.newID(),
		Name:       Lookup(identity, "name", "card_name").String(defaultName),
		SetCode:    Lookup(identity, "set", "set_code", "setCode").String(""),
		Year:       Lookup(identity, "year").OptInt(),
		Domain:     Lookup(identity, "domain").String(defaultDomain),
		Confidence: Lookup(obj, "confidence").Float(defaultConfidence),
		Condition:  conditionMetrics(obj),
	}
	if number, ok := Lookup(identity, "cardNumber", "card_number").OptString(); ok {
		card.CardNumber = &number
	}
	return card
}

// cardList finds the per-card list inside doc. The returned container is the
// object the list was read from, or nil when doc is itself the list.
func cardList(doc any) ([]any, map[string]any) {
	switch v := doc.(type) {
	case map[string]any:
		if list, ok := Lookup(v, "cards", "detected_cards").List(); ok {
			return list, v
		}
		return nil, v
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		if first, ok := v[0].(map[string]any); ok {
			if list, ok := Lookup(first, "cards", "detected_cards").List(); ok {
				return list, first
			}
		}
		return v, nil
	default:
		return nil, nil
	}
}

// boundingBox accepts either [x, y, width, height] or an object with those keys
func boundingBox(obj map[string]any) (models.BoundingBox, bool) {
	f := Lookup(obj, "boundingBox", "bounding_box", "bbox")
	if !f.Present() {
		return models.BoundingBox{}, false
	}

	if values, ok := f.Floats(); ok {
		if len(values) < 4 {
			return models.BoundingBox{}, false
		}
		return models.BoundingBox{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, true
	}

	box, ok := f.Object()
	if !ok {
		return models.BoundingBox{}, false
	}
	x, y := Lookup(box, "x").OptFloat(), Lookup(box, "y").OptFloat()
	w, h := Lookup(box, "width", "w").OptFloat(), Lookup(box, "height", "h").OptFloat()
	if x == nil || y == nil || w == nil || h == nil {
		return models.BoundingBox{}, false
	}
	return models.BoundingBox{X: *x, Y: *y, Width: *w, Height: *h}, true
}

func conditionMetrics(obj map[string]any) *models.ConditionMetrics {
	cond, ok := Lookup(obj, "condition").Object()
	if !ok {
		return nil
	}
	return &models.ConditionMetrics{
		Centering:      Lookup(cond, "centering").Float(0),
		Corners:        Lookup(cond, "corners").Float(0),
		Surface:        Lookup(cond, "surface").Float(0),
		EstimatedGrade: Lookup(cond, "estimated_grade", "estimatedGrade").OptFloat(),
	}
}

package detection

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"cardvault/pkg/models"
)

const (
	maxFreeTextCards      = 5
	freeTextConfidence    = 0.7
	freeTextConfidenceGap = 0.05
)

// nameWord is one word of a card name: an uppercase or caseless letter
// followed by letters, combining marks, digits and in-name punctuation.
const nameWord = `[\p{Lu}\p{Lt}\p{Lo}][\p{L}\p{M}\p{N}_'’,\-]*`

// cardMention matches "Name (CODE)": capitalized words on one line, allowing
// a few lowercase joiners, followed by a 2-6 character set code in parentheses.
var cardMention = regexp.MustCompile(
	`((?:` + nameWord + `)(?:[ \t]+(?:` + nameWord + `|of|the|and|de|to))*)[ \t]*\(([A-Z0-9]{2,6})\)`)

// FreeText recovers card names from prose such as OCR output or a model
// answer that never produced JSON. Only multi-card scans use it.
type FreeText struct {
	newID func() string
}

// NewFreeText returns the free-text fallback strategy
func NewFreeText() *FreeText {
	return &FreeText{newID: uuid.NewString}
}

func (f *FreeText) Name() string { return "free_text" }

func (f *FreeText) Parse(raw string, mode models.ScanMode) ([]models.DetectedCard, error) {
	if mode != models.ScanModeMulti {
		return nil, nil
	}

	matches := cardMention.FindAllStringSubmatch(raw, maxFreeTextCards)
	cards := make([]models.DetectedCard, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimRight(strings.TrimSpace(m[1]), ",")
		if name == "" {
			continue
		}
		i := len(cards)
		cards = append(cards, models.DetectedCard{
			ID:          f.newID(),
			Name:        name,
			SetCode:     m[2],
			Domain:      defaultDomain,
			Confidence:  freeTextConfidence - float64(i)*freeTextConfidenceGap,
			BoundingBox: models.PlaceholderBox(i),
		})
	}
	return cards, nil
}

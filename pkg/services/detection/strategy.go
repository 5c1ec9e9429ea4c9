// Package detection turns the raw payload returned by the card detection
// service into an ordered list of detected cards.
//
// The payload shape is not trusted. Parsing is attempted by an ordered list
// of strategies and the first one that yields cards wins. A payload no
// strategy understands normalizes to an empty list; Normalize never fails.
package detection

import (
	"fmt"
	"log/slog"

	"cardvault/pkg/models"
)

// Strategy is one way of reading a detection payload
type Strategy interface {
	Name() string
	// Parse returns the cards found in raw. An empty result with a nil error
	// means the payload was readable but had nothing this strategy recognizes.
	Parse(raw string, mode models.ScanMode) ([]models.DetectedCard, error)
}

// Normalizer runs strategies in priority order
type Normalizer struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewNormalizer builds a Normalizer. With no strategies given it uses the
// structured parser followed by the free-text fallback.
func NewNormalizer(logger *slog.Logger, strategies ...Strategy) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(strategies) == 0 {
		strategies = []Strategy{NewStructured(), NewFreeText()}
	}
	return &Normalizer{strategies: strategies, logger: logger}
}

// Normalize returns the cards detected in raw, in payload order. The result is
// never nil.
func (n *Normalizer) Normalize(raw string, mode models.ScanMode) []models.DetectedCard {
	for _, s := range n.strategies {
		cards, err := n.run(s, raw, mode)
		if err != nil {
			n.logger.Warn("detection payload not parsed",
				"strategy", s.Name(),
				"scan_type", mode,
				"error", err)
			continue
		}
		if len(cards) > 0 {
			n.logger.Debug("detection payload normalized",
				"strategy", s.Name(),
				"scan_type", mode,
				"cards", len(cards))
			return cards
		}
	}
	return []models.DetectedCard{}
}

func (n *Normalizer) run(s Strategy, raw string, mode models.ScanMode) (cards []models.DetectedCard, err error) {
	defer func() {
		if r := recover(); r != nil {
			cards = nil
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Parse(raw, mode)
}

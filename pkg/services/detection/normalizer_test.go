package detection

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault/pkg/logger"
	"cardvault/pkg/models"
)

const threeCards = `{
  "cards": [
    {
      "cardIdentity": {
        "name": {"value": "Black Lotus", "confidence": 0.97, "source": "vision"},
        "set": {"value": "LEA"},
        "cardNumber": {"value": "232"},
        "year": {"value": 1993},
        "domain": {"value": "mtg"}
      },
      "boundingBox": {"value": [0.05, 0.1, 0.3, 0.8]},
      "condition": {"centering": 8.5, "corners": 7, "surface": 9, "estimated_grade": 8.2}
    },
    {
      "cardIdentity": {"name": {"value": "Charizard"}, "set": {"value": "BS"}},
      "boundingBox": {"value": "unknown"}
    },
    {
      "cardIdentity": {"name": {"value": "Mox Pearl"}},
      "confidence": 0.55,
      "boundingBox": {"value": [0.7, 0.1, 0.25, 0.8]}
    }
  ]
}`

func newTestNormalizer(strategies ...Strategy) *Normalizer {
	return NewNormalizer(logger.Discard(), strategies...)
}

func TestNormalize_StructuredMulti(t *testing.T) {
	cards := newTestNormalizer().Normalize("The model says:\n"+threeCards+"\nDone.", models.ScanModeMulti)
	require.Len(t, cards, 3)

	assert.Equal(t, []string{"Black Lotus", "Charizard", "Mox Pearl"},
		[]string{cards[0].Name, cards[1].Name, cards[2].Name})

	first := cards[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "LEA", first.SetCode)
	require.NotNil(t, first.CardNumber)
	assert.Equal(t, "232", *first.CardNumber)
	require.NotNil(t, first.Year)
	assert.Equal(t, 1993, *first.Year)
	assert.Equal(t, "mtg", first.Domain)
	assert.Equal(t, defaultConfidence, first.Confidence)
	assert.Equal(t, models.BoundingBox{X: 0.05, Y: 0.1, Width: 0.3, Height: 0.8}, first.BoundingBox)
	require.NotNil(t, first.Condition)
	assert.Equal(t, 8.2, *first.EstimatedGrade())

	second := cards[1]
	assert.Equal(t, models.PlaceholderBox(1), second.BoundingBox, "malformed box falls back to tiled placeholder")
	assert.Equal(t, defaultDomain, second.Domain)
	assert.Nil(t, second.Condition)

	assert.Equal(t, 0.55, cards[2].Confidence)
	assert.Empty(t, cards[2].SetCode)

	ids := map[string]bool{}
	for _, c := range cards {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestNormalize_ContainerShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		names []string
	}{
		{
			name:  "detected_cards with bare fields",
			raw:   `{"success": true, "detected_cards": [{"name": "Pikachu", "set_code": "JU", "bounding_box": {"x": 0.1, "y": 0.2, "width": 0.3, "height": 0.4}}]}`,
			names: []string{"Pikachu"},
		},
		{
			name:  "array wrapping a container",
			raw:   `[{"cards": [{"cardIdentity": {"name": {"value": "Sol Ring"}}}]}]`,
			names: []string{"Sol Ring"},
		},
		{
			name:  "bare array of cards",
			raw:   `[{"name": "Island"}, {"name": "Swamp"}]`,
			names: []string{"Island", "Swamp"},
		},
		{
			name:  "raw_response envelope",
			raw:   `{"success": true, "detected_cards": [], "raw_response": "` + "```json\\n{\\\"cards\\\": [{\\\"cardIdentity\\\": {\\\"name\\\": {\\\"value\\\": \\\"Time Walk\\\"}}}]}\\n```" + `"}`,
			names: []string{"Time Walk"},
		},
		{
			name:  "missing name defaults",
			raw:   `{"cards": [{"cardIdentity": {"set": {"value": "M10"}}}]}`,
			names: []string{defaultCardName},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := newTestNormalizer().Normalize(tt.raw, models.ScanModeMulti)
			var got []string
			for _, c := range cards {
				got = append(got, c.Name)
			}
			assert.Equal(t, tt.names, got)
		})
	}
}

func TestNormalize_BoxFieldsNotClamped(t *testing.T) {
	raw := `{"cards": [{"name": "Edge", "boundingBox": [-0.2, 0.5, 1.4, 0.6]}]}`
	cards := newTestNormalizer().Normalize(raw, models.ScanModeMulti)
	require.Len(t, cards, 1)
	assert.Equal(t, models.BoundingBox{X: -0.2, Y: 0.5, Width: 1.4, Height: 0.6}, cards[0].BoundingBox)
}

func TestNormalize_Single(t *testing.T) {
	n := newTestNormalizer()

	t.Run("identity at top level", func(t *testing.T) {
		raw := `{"cardIdentity": {"name": {"value": "Ancestral Recall"}, "set": {"value": "LEB"}}, "condition": {"estimatedGrade": {"value": 9.1}}}`
		cards := n.Normalize(raw, models.ScanModeSingle)
		require.Len(t, cards, 1)
		assert.Equal(t, "Ancestral Recall", cards[0].Name)
		assert.Equal(t, models.FullFrameBox(), cards[0].BoundingBox)
		assert.Equal(t, 9.1, *cards[0].EstimatedGrade())
	})

	t.Run("first of several cards", func(t *testing.T) {
		cards := n.Normalize(threeCards, models.ScanModeSingle)
		require.Len(t, cards, 1)
		assert.Equal(t, "Black Lotus", cards[0].Name)
	})

	t.Run("nameless card yields nothing", func(t *testing.T) {
		assert.Empty(t, n.Normalize(`{"cardIdentity": {"set": {"value": "LEB"}}}`, models.ScanModeSingle))
	})

	t.Run("free text is not used", func(t *testing.T) {
		assert.Empty(t, n.Normalize("Lightning Bolt (M10)", models.ScanModeSingle))
	})
}

func TestNormalize_FreeTextFallback(t *testing.T) {
	n := newTestNormalizer()

	t.Run("extracts name and code pairs in order", func(t *testing.T) {
		raw := "I can see Lightning Bolt (M10), Serra Angel (LEA) and Jace, the Mind Sculptor (WWK) on the table."
		cards := n.Normalize(raw, models.ScanModeMulti)
		require.Len(t, cards, 3)
		assert.Equal(t, "Lightning Bolt", cards[0].Name)
		assert.Equal(t, "M10", cards[0].SetCode)
		assert.Equal(t, "Serra Angel", cards[1].Name)
		assert.Equal(t, "Jace, the Mind Sculptor", cards[2].Name)
		assert.Equal(t, "WWK", cards[2].SetCode)

		assert.InDelta(t, 0.7, cards[0].Confidence, 1e-9)
		assert.InDelta(t, 0.65, cards[1].Confidence, 1e-9)
		assert.InDelta(t, 0.6, cards[2].Confidence, 1e-9)
		for i, c := range cards {
			assert.Equal(t, models.PlaceholderBox(i), c.BoundingBox)
		}
	})

	t.Run("caps at five", func(t *testing.T) {
		raw := ""
		for i := 0; i < 8; i++ {
			raw += fmt.Sprintf("Card Number%d (S%02d) ", i, i)
		}
		cards := n.Normalize(raw, models.ScanModeMulti)
		require.Len(t, cards, maxFreeTextCards)
		assert.Equal(t, "S04", cards[4].SetCode)
	})

	t.Run("accented and non-latin names", func(t *testing.T) {
		raw := "Æther Vial (DST), Lim-Dûl's Vault (ALL), Flabébé (SV1), Pokémon Center Lady (FLF), ピカチュウ (SV4A)"
		cards := n.Normalize(raw, models.ScanModeMulti)
		require.Len(t, cards, 5)
		want := []struct{ name, set string }{
			{"Æther Vial", "DST"},
			{"Lim-Dûl's Vault", "ALL"},
			{"Flabébé", "SV1"},
			{"Pokémon Center Lady", "FLF"},
			{"ピカチュウ", "SV4A"},
		}
		for i, w := range want {
			assert.Equal(t, w.name, cards[i].Name)
			assert.Equal(t, w.set, cards[i].SetCode)
		}
	})

	t.Run("json without cards falls through", func(t *testing.T) {
		cards := n.Normalize(`{"note": "found Shivan Dragon (M10)"}`, models.ScanModeMulti)
		require.Len(t, cards, 1)
		assert.Equal(t, "Shivan Dragon", cards[0].Name)
	})
}

func TestNormalize_Unrecognized(t *testing.T) {
	n := newTestNormalizer()
	for _, raw := range []string{
		"",
		"no cards here, sorry",
		`{"cards": [`,
		`{"cards": "none"}`,
		"```json\n{ broken\n```",
	} {
		for _, mode := range []models.ScanMode{models.ScanModeSingle, models.ScanModeMulti} {
			cards := n.Normalize(raw, mode)
			assert.NotNil(t, cards)
			assert.Empty(t, cards, "%q in %s mode", raw, mode)
		}
	}
}

type stubStrategy struct {
	name  string
	cards []models.DetectedCard
	err   error
	panic bool
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Parse(string, models.ScanMode) ([]models.DetectedCard, error) {
	s.calls++
	if s.panic {
		panic("boom")
	}
	return s.cards, s.err
}

func TestNormalizer_StrategyOrder(t *testing.T) {
	want := []models.DetectedCard{{ID: "c1", Name: "Found"}}

	t.Run("errors and panics fall through", func(t *testing.T) {
		failing := &stubStrategy{name: "failing", err: errors.New("bad payload")}
		panicking := &stubStrategy{name: "panicking", panic: true}
		empty := &stubStrategy{name: "empty"}
		good := &stubStrategy{name: "good", cards: want}
		never := &stubStrategy{name: "never", cards: []models.DetectedCard{{ID: "c2"}}}

		got := newTestNormalizer(failing, panicking, empty, good, never).Normalize("x", models.ScanModeMulti)
		assert.Equal(t, want, got)
		assert.Equal(t, 1, empty.calls)
		assert.Equal(t, 0, never.calls)
	})

	t.Run("all strategies exhausted", func(t *testing.T) {
		got := newTestNormalizer(&stubStrategy{name: "panicking", panic: true}).Normalize("x", models.ScanModeMulti)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

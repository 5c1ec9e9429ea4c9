package detection

import (
	"encoding/json"
	"errors"
	"strings"
)

// maxJSONCandidates bounds how many opening brackets are tried before giving up
const maxJSONCandidates = 64

var errNoJSON = errors.New("no JSON object or array found in payload")

// extractJSON decodes the first JSON object or array embedded in raw text.
// Prose, markdown fences and trailing text around the value are ignored.
// When several independent JSON values appear, only the first decodable one
// is returned.
func extractJSON(raw string) (any, error) {
	texts := []string{strings.TrimSpace(raw)}
	if fenced, ok := fencedBody(raw); ok {
		texts = append([]string{fenced}, texts...)
	}

	for _, text := range texts {
		tried := 0
		for offset := 0; offset < len(text) && tried < maxJSONCandidates; {
			idx := strings.IndexAny(text[offset:], "{[")
			if idx < 0 {
				break
			}
			start := offset + idx
			tried++

			if v, ok := decodeFirst(text[start:]); ok {
				return v, nil
			}
			offset = start + 1
		}
	}
	return nil, errNoJSON
}

func decodeFirst(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	default:
		return nil, false
	}
}

// fencedBody returns the contents of the first markdown code fence
func fencedBody(content string) (string, bool) {
	start := strings.Index(content, "```")
	if start < 0 {
		return "", false
	}
	body := content[start+3:]
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	return body, body != ""
}

package detection

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field is one attribute of a detection payload. The detection service sends
// attributes either bare ("name": "Bolt") or wrapped with provenance
// ("name": {"value": "Bolt", "confidence": 0.9, "source": "ocr"}); Field
// hides the difference and every accessor takes the value to use when the
// attribute is missing or has the wrong shape.
type Field struct {
	value      any
	present    bool
	confidence *float64
	source     string
}

// Lookup returns the first of keys present in obj. A nil obj yields an absent field.
func Lookup(obj map[string]any, keys ...string) Field {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return newField(v)
		}
	}
	return Field{}
}

func newField(v any) Field {
	f := Field{value: v, present: true}
	wrapper, ok := v.(map[string]any)
	if !ok {
		return f
	}
	inner, ok := wrapper["value"]
	if !ok {
		return f
	}
	f.value = inner
	f.present = inner != nil
	if c, ok := toFloat(wrapper["confidence"]); ok {
		f.confidence = &c
	}
	if s, ok := wrapper["source"].(string); ok {
		f.source = s
	}
	return f
}

// Present reports whether the attribute carried a non-null value
func (f Field) Present() bool {
	return f.present
}

// Confidence returns the per-field confidence, when the service supplied one
func (f Field) Confidence() (float64, bool) {
	if f.confidence == nil {
		return 0, false
	}
	return *f.confidence, true
}

// Source returns the provenance tag of a wrapped field
func (f Field) Source() string {
	return f.source
}

// String returns the value as trimmed text, or def when absent or blank
func (f Field) String(def string) string {
	if s, ok := f.OptString(); ok {
		return s
	}
	return def
}

// OptString returns the value as trimmed text and whether it was non-blank
func (f Field) OptString() (string, bool) {
	var s string
	switch v := f.value.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Float returns the value as a number, or def
func (f Field) Float(def float64) float64 {
	if v, ok := toFloat(f.value); ok {
		return v
	}
	return def
}

// OptFloat returns the value as a number, or nil
func (f Field) OptFloat() *float64 {
	if v, ok := toFloat(f.value); ok {
		return &v
	}
	return nil
}

// OptInt returns the value as a whole number, or nil. Numeric text is accepted.
func (f Field) OptInt() *int {
	v, ok := toFloat(f.value)
	if !ok || v != float64(int(v)) {
		return nil
	}
	i := int(v)
	return &i
}

// Floats returns the value as a list of numbers. Any non-numeric element fails the whole list.
func (f Field) Floats() ([]float64, bool) {
	list, ok := f.value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		v, ok := toFloat(item)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// Object returns the value as a JSON object
func (f Field) Object() (map[string]any, bool) {
	obj, ok := f.value.(map[string]any)
	return obj, ok
}

// List returns the value as a JSON array
func (f Field) List() ([]any, bool) {
	list, ok := f.value.([]any)
	return list, ok
}

func toFloat(v any) (float64, bool) {
	var f float64
	var err error
	switch n := v.(type) {
	case json.Number:
		f, err = n.Float64()
	case float64:
		f = n
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

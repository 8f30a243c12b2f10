package interpret

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/raine/visual-measurement/internal/measurement"
)

const (
	// AmbiguousConfidence is the confidence of any field that had to fall
	// back to its default.
	AmbiguousConfidence = 0.3
	// PlainValueConfidence is assumed for attributes reported without a
	// confidence of their own.
	PlainValueConfidence = 0.5
	// MaxColors is the longest accepted dominant color list.
	MaxColors = 3
)

// ParseError means the payload could not be read as a JSON object at all.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Result holds the validated fields of one image measurement.
type Result struct {
	Dimensions     map[measurement.Dimension]measurement.DimensionScore
	Attributes     map[measurement.Attribute]measurement.ObservableAttribute
	Colors         measurement.ColorAttribute
	DegradedFields []string
}

// Parse turns a raw provider payload into validated measurement fields.
// Fields that are missing or out of range degrade to their ambiguous
// default and are listed in DegradedFields. Only a payload without a
// readable JSON object is an error.
func Parse(raw string) (*Result, error) {
	jsonStr, err := extractJSONObject(raw)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("failed to parse response JSON: %w", err)}
	}

	res := &Result{
		Dimensions: make(map[measurement.Dimension]measurement.DimensionScore, len(measurement.Dimensions)),
		Attributes: make(map[measurement.Attribute]measurement.ObservableAttribute, len(measurement.AttributeSpecs)),
	}

	for _, dim := range measurement.Dimensions {
		score, ok := parseDimension(obj[string(dim)])
		if !ok {
			score = measurement.DimensionScore{Score: 0, Confidence: AmbiguousConfidence}
			res.DegradedFields = append(res.DegradedFields, string(dim))
		}
		res.Dimensions[dim] = score
	}

	for _, spec := range measurement.AttributeSpecs {
		attr, ok := parseAttribute(spec, obj[string(spec.Name)])
		if !ok {
			attr = spec.FallbackAttribute(AmbiguousConfidence)
			res.DegradedFields = append(res.DegradedFields, string(spec.Name))
		}
		res.Attributes[spec.Name] = attr
	}

	colors, ok := parseColors(obj[measurement.AttrDominantColors])
	if !ok {
		res.DegradedFields = append(res.DegradedFields, measurement.AttrDominantColors)
	}
	res.Colors = colors

	return res, nil
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %q", truncate(text, 200))
	}
	return text[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func parseDimension(raw json.RawMessage) (measurement.DimensionScore, bool) {
	if len(raw) == 0 {
		return measurement.DimensionScore{}, false
	}
	var v struct {
		Score      *float64 `json:"score"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &v); err != nil || v.Score == nil || v.Confidence == nil {
		return measurement.DimensionScore{}, false
	}
	if *v.Score < measurement.MinScore || *v.Score > measurement.MaxScore || !inUnitRange(*v.Confidence) {
		return measurement.DimensionScore{}, false
	}
	return measurement.DimensionScore{Score: *v.Score, Confidence: *v.Confidence}, true
}

// valueKeys are the keys providers use for the value of a wrapped attribute.
var valueKeys = []string{"value", "detected", "assessment"}

func parseAttribute(spec measurement.AttributeSpec, raw json.RawMessage) (measurement.ObservableAttribute, bool) {
	if len(raw) == 0 {
		return measurement.ObservableAttribute{}, false
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return measurement.ObservableAttribute{}, false
	}

	value := decoded
	confidence := PlainValueConfidence
	if wrapped, ok := decoded.(map[string]any); ok {
		value = nil
		for _, k := range valueKeys {
			if v, ok := wrapped[k]; ok {
				value = v
				break
			}
		}
		if c, ok := wrapped["confidence"]; ok {
			f, isNum := c.(float64)
			if !isNum || !inUnitRange(f) {
				return measurement.ObservableAttribute{}, false
			}
			confidence = f
		}
	}

	switch spec.Kind {
	case measurement.KindBoolean:
		flag, ok := toBool(value)
		if !ok {
			return measurement.ObservableAttribute{}, false
		}
		return measurement.BoolAttribute(flag, confidence), true
	default:
		s, ok := value.(string)
		if !ok {
			return measurement.ObservableAttribute{}, false
		}
		s = normalizeEnum(s)
		if !spec.Allows(s) {
			return measurement.ObservableAttribute{}, false
		}
		return measurement.CategoricalAttribute(s, confidence), true
	}
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// normalizeEnum maps "Cat Eye" and "cat_eye" to "cat-eye".
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	return s
}

var hexPattern = regexp.MustCompile(`^#[0-9A-F]{6}$`)

type rawColor struct {
	Color    string   `json:"color"`
	Name     string   `json:"name"`
	Hex      string   `json:"hex_approximation"`
	HexAlt   string   `json:"hex"`
	Coverage *float64 `json:"coverage_percentage"`
}

func parseColors(raw json.RawMessage) (measurement.ColorAttribute, bool) {
	fallback := measurement.ColorAttribute{Colors: []measurement.ColorEntry{}, Confidence: AmbiguousConfidence}
	if len(raw) == 0 {
		return fallback, false
	}

	var entries []rawColor
	confidence := PlainValueConfidence
	if err := json.Unmarshal(raw, &entries); err != nil {
		var wrapped struct {
			Colors     []rawColor `json:"colors"`
			Confidence *float64   `json:"confidence"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return fallback, false
		}
		entries = wrapped.Colors
		if wrapped.Confidence != nil {
			if !inUnitRange(*wrapped.Confidence) {
				return fallback, false
			}
			confidence = *wrapped.Confidence
		}
	}
	if len(entries) > MaxColors {
		return fallback, false
	}

	out := measurement.ColorAttribute{Colors: make([]measurement.ColorEntry, 0, len(entries)), Confidence: confidence}
	ok := true
	for _, e := range entries {
		c, valid := normalizeColor(e)
		if !valid {
			ok = false
			continue
		}
		out.Colors = append(out.Colors, c)
	}
	if !ok {
		out.Confidence = AmbiguousConfidence
	}
	return out, ok
}

func normalizeColor(e rawColor) (measurement.ColorEntry, bool) {
	hex := strings.ToUpper(strings.TrimSpace(e.Hex))
	if hex == "" {
		hex = strings.ToUpper(strings.TrimSpace(e.HexAlt))
	}
	if hex != "" && !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if !hexPattern.MatchString(hex) {
		return measurement.ColorEntry{}, false
	}
	if e.Coverage == nil || *e.Coverage < 0 || *e.Coverage > 100 {
		return measurement.ColorEntry{}, false
	}
	name := strings.TrimSpace(e.Color)
	if name == "" {
		name = strings.TrimSpace(e.Name)
	}
	if name == "" {
		name = hex
	}
	return measurement.ColorEntry{Name: name, Hex: hex, Coverage: *e.Coverage}, true
}

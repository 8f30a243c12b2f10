package interpret

import (
	"errors"
	"testing"

	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPayload = `{
	"gender_expression": {"score": 1.5, "confidence": 0.7},
	"visual_weight": {"score": -2.0, "confidence": 0.8},
	"embellishment": {"score": -3.0, "confidence": 0.9},
	"unconventionality": {"score": 0.5, "confidence": 0.6},
	"formality": {"score": 2.0, "confidence": 0.7},
	"wirecore_visible": {"detected": false, "confidence": 0.8},
	"frame_geometry": {"value": "Cat Eye", "confidence": 0.9},
	"transparency": {"value": "semi_transparent", "confidence": 0.6},
	"surface_texture": {"value": "glossy", "confidence": 0.7},
	"suitable_for_kids": {"assessment": false, "confidence": 0.6},
	"dominant_colors": [
		{"color": "tortoise brown", "hex_approximation": "#8b4513", "coverage_percentage": 70},
		{"color": "gold", "hex_approximation": "D4AF37", "coverage_percentage": 20}
	],
	"frame_material_apparent": "acetate",
	"lens_tint": "clear",
	"has_nose_pads": false,
	"temple_style": "spring-hinge"
}`

func TestParse_FullPayload(t *testing.T) {
	res, err := Parse(fullPayload)
	require.NoError(t, err)

	assert.Empty(t, res.DegradedFields)
	assert.Equal(t, measurement.DimensionScore{Score: 1.5, Confidence: 0.7}, res.Dimensions[measurement.GenderExpression])
	assert.Equal(t, measurement.DimensionScore{Score: -3.0, Confidence: 0.9}, res.Dimensions[measurement.Embellishment])

	assert.Equal(t, measurement.BoolAttribute(false, 0.8), res.Attributes[measurement.AttrWirecoreVisible])
	assert.Equal(t, measurement.CategoricalAttribute("cat-eye", 0.9), res.Attributes[measurement.AttrFrameGeometry])
	assert.Equal(t, measurement.CategoricalAttribute("semi-transparent", 0.6), res.Attributes[measurement.AttrTransparency])
	assert.Equal(t, measurement.BoolAttribute(false, 0.6), res.Attributes[measurement.AttrSuitableForKids])
	assert.Equal(t, measurement.CategoricalAttribute("acetate", PlainValueConfidence), res.Attributes[measurement.AttrFrameMaterial])
	assert.Equal(t, measurement.BoolAttribute(false, PlainValueConfidence), res.Attributes[measurement.AttrHasNosePads])
	assert.Equal(t, measurement.CategoricalAttribute("spring-hinge", PlainValueConfidence), res.Attributes[measurement.AttrTempleStyle])

	assert.Equal(t, PlainValueConfidence, res.Colors.Confidence)
	assert.Equal(t, []measurement.ColorEntry{
		{Name: "tortoise brown", Hex: "#8B4513", Coverage: 70},
		{Name: "gold", Hex: "#D4AF37", Coverage: 20},
	}, res.Colors.Colors)
}

func TestParse_StripsFencesAndProse(t *testing.T) {
	raw := "Here is the analysis:\n```json\n" + fullPayload + "\n```\nLet me know if you need more."
	res, err := Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, res.DegradedFields)
}

func TestParse_Malformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot analyze this image.",
		"{not json}",
		`["an", "array"]`,
	} {
		_, err := Parse(raw)
		require.Error(t, err, raw)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr))
	}
}

func TestParse_DegradesInvalidFields(t *testing.T) {
	raw := `{
		"gender_expression": {"score": 7.5, "confidence": 0.7},
		"visual_weight": {"score": 1.0, "confidence": 1.4},
		"embellishment": {"score": "high", "confidence": 0.9},
		"unconventionality": {"score": 0.5},
		"frame_geometry": {"value": "square", "confidence": 0.9},
		"transparency": "opaque",
		"suitable_for_kids": {"assessment": "maybe", "confidence": 0.6},
		"has_nose_pads": "yes",
		"lens_tint": {"value": "mirrored", "confidence": -0.1}
	}`
	res, err := Parse(raw)
	require.NoError(t, err)

	ambiguous := measurement.DimensionScore{Score: 0, Confidence: AmbiguousConfidence}
	for _, d := range []measurement.Dimension{
		measurement.GenderExpression,
		measurement.VisualWeight,
		measurement.Embellishment,
		measurement.Unconventionality,
		measurement.Formality,
	} {
		assert.Equal(t, ambiguous, res.Dimensions[d], d)
	}

	assert.Equal(t, measurement.CategoricalAttribute("unknown", AmbiguousConfidence), res.Attributes[measurement.AttrFrameGeometry])
	assert.Equal(t, measurement.CategoricalAttribute("opaque", PlainValueConfidence), res.Attributes[measurement.AttrTransparency])
	assert.Equal(t, measurement.BoolAttribute(false, AmbiguousConfidence), res.Attributes[measurement.AttrSuitableForKids])
	assert.Equal(t, measurement.BoolAttribute(true, PlainValueConfidence), res.Attributes[measurement.AttrHasNosePads])
	assert.Equal(t, measurement.CategoricalAttribute("indeterminate", AmbiguousConfidence), res.Attributes[measurement.AttrLensTint])
	assert.Equal(t, measurement.CategoricalAttribute("smooth", AmbiguousConfidence), res.Attributes[measurement.AttrSurfaceTexture])

	assert.ElementsMatch(t, []string{
		"gender_expression", "visual_weight", "embellishment", "unconventionality", "formality",
		"wirecore_visible", "frame_geometry", "surface_texture", "suitable_for_kids",
		"frame_material_apparent", "lens_tint", "temple_style", "dominant_colors",
	}, res.DegradedFields)

	assert.Empty(t, res.Colors.Colors)
	assert.Equal(t, AmbiguousConfidence, res.Colors.Confidence)
}

func TestParse_Colors(t *testing.T) {
	tests := []struct {
		name       string
		colors     string
		wantCount  int
		confidence float64
		degraded   bool
	}{
		{"empty list", `[]`, 0, PlainValueConfidence, false},
		{"wrapped with confidence", `{"colors": [{"color": "black", "hex_approximation": "#000000", "coverage_percentage": 80}], "confidence": 0.9}`, 1, 0.9, false},
		{"bad hex dropped", `[{"color": "black", "hex_approximation": "#000000", "coverage_percentage": 80}, {"color": "teal", "hex_approximation": "#12345", "coverage_percentage": 10}]`, 1, AmbiguousConfidence, true},
		{"coverage out of range", `[{"color": "black", "hex_approximation": "#000000", "coverage_percentage": 120}]`, 0, AmbiguousConfidence, true},
		{"too many colors", `[
			{"color": "a", "hex_approximation": "#000000", "coverage_percentage": 10},
			{"color": "b", "hex_approximation": "#111111", "coverage_percentage": 10},
			{"color": "c", "hex_approximation": "#222222", "coverage_percentage": 10},
			{"color": "d", "hex_approximation": "#333333", "coverage_percentage": 10}
		]`, 0, AmbiguousConfidence, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(`{"dominant_colors": ` + tt.colors + `}`)
			require.NoError(t, err)
			assert.Len(t, res.Colors.Colors, tt.wantCount)
			assert.Equal(t, tt.confidence, res.Colors.Confidence)
			assert.Equal(t, tt.degraded, contains(res.DegradedFields, "dominant_colors"))
		})
	}
}

func TestParse_ColorNameFallsBackToHex(t *testing.T) {
	res, err := Parse(`{"dominant_colors": [{"hex": "#00ff00", "coverage_percentage": 5}]}`)
	require.NoError(t, err)
	require.Len(t, res.Colors.Colors, 1)
	assert.Equal(t, measurement.ColorEntry{Name: "#00FF00", Hex: "#00FF00", Coverage: 5}, res.Colors.Colors[0])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package measurement

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Dimension is one of the fixed visual scoring axes.
type Dimension string

const (
	GenderExpression  Dimension = "gender_expression"
	VisualWeight      Dimension = "visual_weight"
	Embellishment     Dimension = "embellishment"
	Unconventionality Dimension = "unconventionality"
	Formality         Dimension = "formality"
)

// Dimensions lists every dimension in output order.
var Dimensions = []Dimension{
	GenderExpression,
	VisualWeight,
	Embellishment,
	Unconventionality,
	Formality,
}

const (
	MinScore = -5.0
	MaxScore = 5.0
)

// Attribute names an observable or metadata attribute of a frame.
// Dominant colors are carried separately as a ColorAttribute.
type Attribute string

const (
	AttrWirecoreVisible Attribute = "wirecore_visible"
	AttrFrameGeometry   Attribute = "frame_geometry"
	AttrTransparency    Attribute = "transparency"
	AttrSurfaceTexture  Attribute = "surface_texture"
	AttrSuitableForKids Attribute = "suitable_for_kids"
	AttrFrameMaterial   Attribute = "frame_material_apparent"
	AttrLensTint        Attribute = "lens_tint"
	AttrHasNosePads     Attribute = "has_nose_pads"
	AttrTempleStyle     Attribute = "temple_style"
)

// AttrDominantColors is the payload key for the color list.
const AttrDominantColors = "dominant_colors"

// AttributeKind discriminates the value carried by an ObservableAttribute.
type AttributeKind string

const (
	KindCategorical AttributeKind = "categorical"
	KindBoolean     AttributeKind = "boolean"
)

// AttributeSpec describes the closed value set of an attribute and the value
// used when the provider returns something outside of it.
type AttributeSpec struct {
	Name     Attribute
	Kind     AttributeKind
	Values   []string
	Fallback string
}

// Allows reports whether v is a member of the attribute's value set.
func (s AttributeSpec) Allows(v string) bool {
	return slices.Contains(s.Values, v)
}

// FallbackAttribute is the ambiguous default for the attribute.
func (s AttributeSpec) FallbackAttribute(confidence float64) ObservableAttribute {
	if s.Kind == KindBoolean {
		return BoolAttribute(false, confidence)
	}
	return CategoricalAttribute(s.Fallback, confidence)
}

// AttributeSpecs lists every attribute in output order.
var AttributeSpecs = []AttributeSpec{
	{Name: AttrWirecoreVisible, Kind: KindBoolean},
	{
		Name:     AttrFrameGeometry,
		Kind:     KindCategorical,
		Values:   []string{"rectangular", "round", "oval", "aviator", "cat-eye", "geometric", "irregular", "unknown"},
		Fallback: "unknown",
	},
	{
		Name:     AttrTransparency,
		Kind:     KindCategorical,
		Values:   []string{"opaque", "semi-transparent", "transparent", "mixed"},
		Fallback: "opaque",
	},
	{
		Name:     AttrSurfaceTexture,
		Kind:     KindCategorical,
		Values:   []string{"smooth", "matte", "glossy", "textured", "patterned", "metallic"},
		Fallback: "smooth",
	},
	{Name: AttrSuitableForKids, Kind: KindBoolean},
	{
		Name:     AttrFrameMaterial,
		Kind:     KindCategorical,
		Values:   []string{"metal", "plastic", "acetate", "titanium", "wood", "mixed", "indeterminate"},
		Fallback: "indeterminate",
	},
	{
		Name:     AttrLensTint,
		Kind:     KindCategorical,
		Values:   []string{"clear", "tinted", "gradient", "mirrored", "photochromic", "gray", "brown", "green", "blue", "indeterminate"},
		Fallback: "indeterminate",
	},
	{Name: AttrHasNosePads, Kind: KindBoolean},
	{
		Name:     AttrTempleStyle,
		Kind:     KindCategorical,
		Values:   []string{"standard", "spring-hinge", "cable", "skull", "indeterminate"},
		Fallback: "indeterminate",
	},
}

// SpecFor returns the spec of the named attribute.
func SpecFor(name Attribute) (AttributeSpec, bool) {
	for _, s := range AttributeSpecs {
		if s.Name == name {
			return s, true
		}
	}
	return AttributeSpec{}, false
}

// ObservableAttribute is a categorical or boolean attribute value with the
// provider's confidence in it.
type ObservableAttribute struct {
	Kind       AttributeKind
	Value      string
	Flag       bool
	Confidence float64
}

// CategoricalAttribute builds a categorical attribute value.
func CategoricalAttribute(value string, confidence float64) ObservableAttribute {
	return ObservableAttribute{Kind: KindCategorical, Value: value, Confidence: confidence}
}

// BoolAttribute builds a boolean attribute value.
func BoolAttribute(flag bool, confidence float64) ObservableAttribute {
	return ObservableAttribute{Kind: KindBoolean, Flag: flag, Confidence: confidence}
}

// Key is a comparable representation of the value, used for voting.
func (a ObservableAttribute) Key() string {
	if a.Kind == KindBoolean {
		return fmt.Sprintf("%t", a.Flag)
	}
	return a.Value
}

type attributeJSON struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

func (a ObservableAttribute) MarshalJSON() ([]byte, error) {
	out := attributeJSON{Confidence: a.Confidence}
	if a.Kind == KindBoolean {
		out.Value = a.Flag
	} else {
		out.Value = a.Value
	}
	return json.Marshal(out)
}

func (a *ObservableAttribute) UnmarshalJSON(data []byte) error {
	var in attributeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch v := in.Value.(type) {
	case bool:
		*a = BoolAttribute(v, in.Confidence)
	case string:
		*a = CategoricalAttribute(v, in.Confidence)
	default:
		return fmt.Errorf("unsupported attribute value %v", in.Value)
	}
	return nil
}

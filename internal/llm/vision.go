package llm

import (
	"context"
	"fmt"
	"slices"
)

// ModelVariant names one of the supported vision model variants.
type ModelVariant string

const (
	Gemini25Flash       ModelVariant = "gemini-2.5-flash"
	Gemini25FlashLite   ModelVariant = "gemini-2.5-flash-lite"
	Gemini3FlashPreview ModelVariant = "gemini-3-flash-preview"
)

// KnownVariants lists every supported variant in default fallback order.
var KnownVariants = []ModelVariant{Gemini25Flash, Gemini25FlashLite, Gemini3FlashPreview}

// ParseVariants converts configured model names into variants, keeping
// order. Unknown names are rejected.
func ParseVariants(names []string) ([]ModelVariant, error) {
	out := make([]ModelVariant, 0, len(names))
	for _, n := range names {
		v := ModelVariant(n)
		if !slices.Contains(KnownVariants, v) {
			return nil, fmt.Errorf("unknown model variant %q", n)
		}
		out = append(out, v)
	}
	return out, nil
}

// Image is the input of a single vision call.
type Image struct {
	Data     []byte
	MIMEType string
}

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// Response is the raw provider payload for one image.
type Response struct {
	Text  string
	Usage Usage
}

// VisionCapability measures one image with one model variant. Failures are
// returned as *ProviderError so callers can tell throttling apart from other
// errors.
type VisionCapability interface {
	AnalyzeImage(ctx context.Context, variant ModelVariant, img Image) (*Response, error)
}

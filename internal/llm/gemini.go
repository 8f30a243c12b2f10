package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Gemini pricing (per million tokens)
type geminiPricing struct {
	input  float64
	output float64
}

var geminiPrices = map[ModelVariant]geminiPricing{
	Gemini25Flash:       {input: 0.30, output: 2.50},
	Gemini25FlashLite:   {input: 0.075, output: 0.30},
	Gemini3FlashPreview: {input: 0.50, output: 3.00}, // output includes thinking
}

const defaultMaxOutputTokens = 1500

// GeminiVision uses Google's Gemini API to measure product images.
type GeminiVision struct {
	client          *genai.Client
	maxOutputTokens int32
}

// NewGeminiVision creates a new Gemini-based vision capability.
func NewGeminiVision(ctx context.Context, apiKey string) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiVision{client: client, maxOutputTokens: defaultMaxOutputTokens}, nil
}

// AnalyzeImage sends the measurement prompt and the image to the given
// variant and returns the raw text of the answer.
func (g *GeminiVision) AnalyzeImage(ctx context.Context, variant ModelVariant, img Image) (*Response, error) {
	if len(img.Data) == 0 {
		return nil, &ProviderError{Class: ClassOther, Model: variant, Err: errors.New("empty image")}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(measurementPrompt),
			genai.NewPartFromBytes(img.Data, img.MIMEType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  g.maxOutputTokens,
		ResponseMIMEType: "application/json",
	}

	result, err := g.client.Models.GenerateContent(ctx, string(variant), contents, config)
	if err != nil {
		perr := ClassifyError(variant, err)
		log.Warn().
			Err(err).
			Str("model", string(variant)).
			Str("class", string(perr.Class)).
			Dur("retryAfter", perr.RetryAfter).
			Msg("vision llm call failed")
		return nil, perr
	}

	// An empty candidate list is left to the interpreter, which reports it
	// as a malformed response.
	var text string
	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		text = result.Text()
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(variant, usage.InputTokens, usage.OutputTokens)
	}

	log.Info().
		Str("model", string(variant)).
		Str("promptVersion", PromptVersion).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	return &Response{Text: text, Usage: usage}, nil
}

func calculateGeminiCost(variant ModelVariant, inputTokens, outputTokens int64) float64 {
	price, ok := geminiPrices[variant]
	if !ok {
		return 0
	}
	inputCost := float64(inputTokens) / 1_000_000 * price.input
	outputCost := float64(outputTokens) / 1_000_000 * price.output
	return inputCost + outputCost
}

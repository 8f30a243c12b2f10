package pipeline

import (
	"context"
	"fmt"

	"github.com/raine/visual-measurement/config"
	"github.com/raine/visual-measurement/internal/aggregate"
	"github.com/raine/visual-measurement/internal/dispatch"
	"github.com/raine/visual-measurement/internal/imagefetch"
	"github.com/raine/visual-measurement/internal/llm"
	"github.com/raine/visual-measurement/internal/urlcheck"
)

// NewFromConfig wires the production pipeline: resty based validation and
// download, Gemini vision with model fallback and the default aggregator.
func NewFromConfig(ctx context.Context, cfg config.Config) (*Orchestrator, error) {
	variants, err := llm.ParseVariants(cfg.Models)
	if err != nil {
		return nil, err
	}

	vision, err := llm.NewGeminiVision(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return NewWithVision(cfg, vision, variants)
}

// NewWithVision wires the pipeline around an existing vision capability.
func NewWithVision(cfg config.Config, vision llm.VisionCapability, variants []llm.ModelVariant) (*Orchestrator, error) {
	dispatcher, err := dispatch.New(vision, variants, dispatch.NewPacer(cfg.ImageDelay), cfg.GeminiTimeout)
	if err != nil {
		return nil, err
	}

	heuristics := urlcheck.DefaultHeuristics()
	heuristics.RequireImageHint = cfg.RequireImageHint
	validator := urlcheck.NewValidator().
		WithTimeout(cfg.URLTimeout).
		WithHeuristics(heuristics).
		WithConcurrency(cfg.MaxConcurrency).
		AllowMissingContentType(cfg.AllowMissingContentType)

	fetcher := imagefetch.NewDownloader().
		WithTimeout(cfg.DownloadTimeout).
		WithMaxSize(cfg.MaxImageBytes)

	aggregator := aggregate.New(aggregate.Config{
		HighVarianceThreshold:  cfg.HighVariance,
		LowConfidenceThreshold: cfg.MinConfidence,
	})

	return New(validator, fetcher, dispatcher, aggregator, Config{
		MaxImages:    cfg.MaxImages,
		ProductDelay: cfg.ProductDelay,
	}), nil
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raine/visual-measurement/internal/llm"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/rs/zerolog/log"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 30 * time.Second

// Result is a successful dispatch of one image.
type Result struct {
	Text      string
	Model     llm.ModelVariant
	Attempted []llm.ModelVariant
	Usage     llm.Usage
	Elapsed   time.Duration // time spent in provider calls, pacing excluded
}

// Error is a terminal dispatch failure for one image.
type Error struct {
	Type       measurement.ErrorType
	Model      llm.ModelVariant
	Attempted  []llm.ModelVariant
	RetryAfter time.Duration
	Elapsed    time.Duration
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %v: %v", e.Type, e.Attempted, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Dispatcher sends one image to the vision capability, trying model variants
// strictly in order. Throttling moves on to the next variant, every other
// failure ends the dispatch for that image.
type Dispatcher struct {
	vision         llm.VisionCapability
	variants       []llm.ModelVariant
	pacer          *Pacer
	attemptTimeout time.Duration
}

// New creates a Dispatcher. The variant list must not be empty. A nil pacer
// disables spacing.
func New(vision llm.VisionCapability, variants []llm.ModelVariant, pacer *Pacer, attemptTimeout time.Duration) (*Dispatcher, error) {
	if vision == nil {
		return nil, errors.New("dispatcher requires a vision capability")
	}
	if len(variants) == 0 {
		return nil, errors.New("dispatcher requires at least one model variant")
	}
	if pacer == nil {
		pacer = NewPacer(0)
	}
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Dispatcher{
		vision:         vision,
		variants:       append([]llm.ModelVariant(nil), variants...),
		pacer:          pacer,
		attemptTimeout: attemptTimeout,
	}, nil
}

// Variants returns the configured fallback order.
func (d *Dispatcher) Variants() []llm.ModelVariant {
	return append([]llm.ModelVariant(nil), d.variants...)
}

// Dispatch waits for the pacer and then tries each variant until one answers.
func (d *Dispatcher) Dispatch(ctx context.Context, img llm.Image) (*Result, error) {
	if err := d.pacer.Wait(ctx); err != nil {
		return nil, &Error{
			Type: measurement.ErrorProviderOther,
			Err:  fmt.Errorf("waiting for dispatch slot: %w", err),
		}
	}

	var (
		attempted  []llm.ModelVariant
		elapsed    time.Duration
		retryAfter time.Duration
		lastErr    error
	)

	for _, variant := range d.variants {
		attempted = append(attempted, variant)

		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		start := time.Now()
		resp, err := d.vision.AnalyzeImage(attemptCtx, variant, img)
		elapsed += time.Since(start)
		cancel()

		if err == nil {
			if len(attempted) > 1 {
				log.Info().
					Str("model", string(variant)).
					Int("attempts", len(attempted)).
					Msg("fallback model succeeded")
			}
			return &Result{
				Text:      resp.Text,
				Model:     variant,
				Attempted: attempted,
				Usage:     resp.Usage,
				Elapsed:   elapsed,
			}, nil
		}

		perr := llm.ClassifyError(variant, err)
		if perr.Class != llm.ClassTimeout && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			perr = &llm.ProviderError{Class: llm.ClassTimeout, Model: variant, Err: err}
		}
		lastErr = perr

		if perr.Retryable() {
			if perr.RetryAfter > 0 {
				retryAfter = perr.RetryAfter
			}
			log.Warn().
				Str("model", string(variant)).
				Str("class", string(perr.Class)).
				Dur("retryAfter", perr.RetryAfter).
				Msg("model throttled, trying next variant")
			continue
		}

		log.Warn().
			Err(err).
			Str("model", string(variant)).
			Str("class", string(perr.Class)).
			Msg("vision call failed")
		return nil, &Error{
			Type:      measurement.ErrorProviderOther,
			Model:     variant,
			Attempted: attempted,
			Elapsed:   elapsed,
			Err:       perr,
		}
	}

	return nil, &Error{
		Type:       measurement.ErrorAllModelsExhausted,
		Model:      attempted[len(attempted)-1],
		Attempted:  attempted,
		RetryAfter: retryAfter,
		Elapsed:    elapsed,
		Err:        lastErr,
	}
}

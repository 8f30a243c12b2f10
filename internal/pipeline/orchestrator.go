package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/visual-measurement/internal/aggregate"
	"github.com/raine/visual-measurement/internal/dispatch"
	"github.com/raine/visual-measurement/internal/imagefetch"
	"github.com/raine/visual-measurement/internal/interpret"
	"github.com/raine/visual-measurement/internal/llm"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/rs/zerolog/log"
)

// Validator classifies image locations.
type Validator interface {
	ValidateAll(ctx context.Context, urls []string) []measurement.ValidationOutcome
}

// Fetcher downloads a validated image.
type Fetcher interface {
	Download(ctx context.Context, url string) (*imagefetch.Image, error)
}

// Dispatcher obtains a raw measurement payload for one image.
type Dispatcher interface {
	Dispatch(ctx context.Context, img llm.Image) (*dispatch.Result, error)
}

// Config controls per-product limits.
type Config struct {
	MaxImages    int
	ProductDelay time.Duration
}

// Orchestrator runs products through validation, dispatch and aggregation.
// Runs on one Orchestrator are serialized and spaced by ProductDelay.
type Orchestrator struct {
	validator  Validator
	fetcher    Fetcher
	dispatcher Dispatcher
	aggregator *aggregate.Aggregator
	cfg        Config

	runMu        sync.Mutex
	productPacer *dispatch.Pacer
	newRunID     func() string
}

// New creates an Orchestrator.
func New(validator Validator, fetcher Fetcher, dispatcher Dispatcher, aggregator *aggregate.Aggregator, cfg Config) *Orchestrator {
	if cfg.MaxImages < 1 {
		cfg.MaxImages = 1
	}
	return &Orchestrator{
		validator:    validator,
		fetcher:      fetcher,
		dispatcher:   dispatcher,
		aggregator:   aggregator,
		cfg:          cfg,
		productPacer: dispatch.NewPacer(cfg.ProductDelay),
		newRunID:     uuid.NewString,
	}
}

// run is the mutable state of one product while it moves through the phases.
type run struct {
	record          *measurement.ProductMeasurement
	started         time.Time
	modelsAttempted []string
	retryAfter      time.Duration
}

func (r *run) noteModels(models []llm.ModelVariant) {
	for _, m := range models {
		if name := string(m); !slices.Contains(r.modelsAttempted, name) {
			r.modelsAttempted = append(r.modelsAttempted, name)
		}
	}
}

// Process measures one product. It always returns a record; failures are
// reported through its status and error fields.
func (o *Orchestrator) Process(ctx context.Context, productID string, urls []string) *measurement.ProductMeasurement {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	r := &run{
		started:         time.Now(),
		record:          newRecord(o.newRunID(), productID),
		modelsAttempted: []string{},
	}
	logger := log.With().Str("productId", productID).Str("runId", r.record.RunID).Logger()

	if err := o.productPacer.Wait(ctx); err != nil {
		return o.fail(r, measurement.ErrorCancelled, fmt.Sprintf("cancelled before start: %v", err))
	}
	r.started = time.Now()

	// Validating
	phase := time.Now()
	outcomes := o.validator.ValidateAll(ctx, urls)
	valid, summary := measurement.SummarizeValidation(outcomes)
	r.record.ImageValidation = summary
	r.record.Timing.URLValidationMS = msSince(phase)

	logger.Info().
		Int("total", summary.TotalProvided).
		Int("valid", summary.ValidCount).
		Int("invalid", summary.InvalidCount).
		Msg("url validation done")

	if err := ctx.Err(); err != nil {
		return o.fail(r, measurement.ErrorCancelled, fmt.Sprintf("cancelled during url validation: %v", err))
	}
	if len(valid) == 0 {
		return o.fail(r, measurement.ErrorAllURLsInvalid, fmt.Sprintf("all %d image urls failed validation", summary.TotalProvided))
	}

	if len(valid) > o.cfg.MaxImages {
		logger.Info().Int("valid", len(valid)).Int("max", o.cfg.MaxImages).Msg("capping images")
		valid = valid[:o.cfg.MaxImages]
		r.record.ImagesCapped = true
	}

	// Dispatching
	var images []measurement.ImageMeasurement
	for _, url := range valid {
		if ctx.Err() != nil {
			break
		}
		if m := o.measureImage(ctx, r, url); m != nil {
			images = append(images, *m)
			r.record.ModelUsed = m.Model
		}
	}
	r.record.ModelsAttempted = r.modelsAttempted
	if r.retryAfter > 0 {
		secs := r.retryAfter.Seconds()
		r.record.RetryAfterSeconds = &secs
	}

	if err := ctx.Err(); err != nil {
		return o.fail(r, measurement.ErrorCancelled, fmt.Sprintf("cancelled after %d of %d images: %v", len(images), len(valid), err))
	}

	if len(images) == 0 {
		return o.fail(r, measurement.ErrorAllDispatchFailed, dispatchFailureMessage(r.record.ImageErrors))
	}

	// Aggregating
	phase = time.Now()
	agg, err := o.aggregator.Aggregate(images)
	r.record.Timing.AggregationMS = msSince(phase)
	if err != nil {
		return o.fail(r, measurement.ErrorAllDispatchFailed, err.Error())
	}

	rec := r.record
	rec.PerImage = images
	rec.ImagesAnalyzed = len(images)
	rec.VisualDimensions = agg.Dimensions
	rec.VarianceMetrics = agg.Variance
	rec.AggregateConfidence = agg.Confidence
	rec.Attributes = agg.Attributes
	rec.DominantColors = agg.Colors
	rec.QualityScore = agg.Quality
	rec.QualityFlags = agg.Flags

	rec.Status = measurement.StatusSuccess
	if summary.InvalidCount > 0 || len(rec.ImageErrors) > 0 {
		rec.Status = measurement.StatusPartial
		rec.QualityFlags.PartialAnalysis = true
	}
	rec.Timing.TotalMS = msSince(r.started)

	logger.Info().
		Str("status", string(rec.Status)).
		Int("analyzed", rec.ImagesAnalyzed).
		Float64("quality", rec.QualityScore).
		Int64("totalMs", rec.Timing.TotalMS).
		Msg("product measured")
	return rec
}

// measureImage fetches, dispatches and interprets one image. Failures are
// appended to the record and nil is returned.
func (o *Orchestrator) measureImage(ctx context.Context, r *run, url string) *measurement.ImageMeasurement {
	start := time.Now()
	defer func() {
		r.record.Timing.PerImageMS = append(r.record.Timing.PerImageMS, msSince(start))
	}()

	img, err := o.fetcher.Download(ctx, url)
	r.record.Timing.ImageFetchMS += msSince(start)
	if err != nil {
		r.record.ImageErrors = append(r.record.ImageErrors, measurement.ImageError{
			URL:       url,
			ErrorType: measurement.ErrorImageFetchFailed,
			Message:   err.Error(),
		})
		return nil
	}

	res, err := o.dispatcher.Dispatch(ctx, llm.Image{Data: img.Data, MIMEType: img.MIMEType})
	if err != nil {
		imgErr := measurement.ImageError{
			URL:       url,
			ErrorType: measurement.ErrorProviderOther,
			Message:   err.Error(),
		}
		var derr *dispatch.Error
		if errors.As(err, &derr) {
			imgErr.ErrorType = derr.Type
			imgErr.ModelsAttempted = variantNames(derr.Attempted)
			r.noteModels(derr.Attempted)
			r.record.Timing.VisionAPIMS += derr.Elapsed.Milliseconds()
			if derr.RetryAfter > 0 {
				secs := derr.RetryAfter.Seconds()
				imgErr.RetryAfterSeconds = &secs
				r.retryAfter = derr.RetryAfter
			}
		}
		r.record.ImageErrors = append(r.record.ImageErrors, imgErr)
		return nil
	}
	r.noteModels(res.Attempted)
	r.record.Timing.VisionAPIMS += res.Elapsed.Milliseconds()

	parsed, err := interpret.Parse(res.Text)
	if err != nil {
		r.record.ImageErrors = append(r.record.ImageErrors, measurement.ImageError{
			URL:             url,
			ErrorType:       measurement.ErrorMalformedResponse,
			Message:         err.Error(),
			ModelsAttempted: variantNames(res.Attempted),
		})
		return nil
	}

	return &measurement.ImageMeasurement{
		URL:            url,
		Dimensions:     parsed.Dimensions,
		Attributes:     parsed.Attributes,
		Colors:         parsed.Colors,
		DegradedFields: parsed.DegradedFields,
		Model:          string(res.Model),
		ElapsedMS:      msSince(start),
	}
}

// ProcessBatch measures products one after another. A failing product never
// stops the batch.
func (o *Orchestrator) ProcessBatch(ctx context.Context, products []measurement.Product) []*measurement.ProductMeasurement {
	out := make([]*measurement.ProductMeasurement, 0, len(products))
	for i, p := range products {
		log.Info().Str("productId", p.ID).Int("index", i+1).Int("total", len(products)).Msg("processing product")
		out = append(out, o.Process(ctx, p.ID, p.ImageURLs))
	}
	return out
}

func (o *Orchestrator) fail(r *run, errType measurement.ErrorType, msg string) *measurement.ProductMeasurement {
	rec := r.record
	rec.Status = measurement.StatusFailed
	rec.ErrorType = errType
	rec.ErrorMessage = msg
	rec.ModelsAttempted = r.modelsAttempted
	rec.QualityFlags.PartialAnalysis = false
	rec.QualityFlags.LowConfidence = true
	rec.Timing.TotalMS = msSince(r.started)

	log.Warn().
		Str("productId", rec.ProductID).
		Str("runId", rec.RunID).
		Str("errorType", string(errType)).
		Str("detail", msg).
		Msg("product measurement failed")
	return rec
}

// newRecord returns a failed-shaped record with every collection non-nil, so
// that the JSON always carries the full schema.
func newRecord(runID, productID string) *measurement.ProductMeasurement {
	return &measurement.ProductMeasurement{
		SchemaVersion:     measurement.SchemaVersion,
		RunID:             runID,
		ProductID:         productID,
		Status:            measurement.StatusFailed,
		VisualDimensions:  measurement.ZeroDimensions(),
		VarianceMetrics:   measurement.ZeroVariance(),
		Attributes:        map[measurement.Attribute]measurement.ObservableAttribute{},
		DominantColors:    []measurement.ColorEntry{},
		ImageValidation:   measurement.ImageValidation{InvalidURLs: []measurement.ValidationOutcome{}},
		ImageErrors:       []measurement.ImageError{},
		PerImage:          []measurement.ImageMeasurement{},
		ModelsAttempted:   []string{},
		Timing:            measurement.Timing{PerImageMS: []int64{}},
		AggregationMethod: measurement.AggregationMethod,
	}
}

func dispatchFailureMessage(errs []measurement.ImageError) string {
	counts := make(map[measurement.ErrorType]int)
	var order []measurement.ErrorType
	for _, e := range errs {
		if counts[e.ErrorType] == 0 {
			order = append(order, e.ErrorType)
		}
		counts[e.ErrorType]++
	}
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], t))
	}
	return fmt.Sprintf("no image could be analyzed (%s)", strings.Join(parts, ", "))
}

func variantNames(vs []llm.ModelVariant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

func msSince(t time.Time) int64 {
	return time.Since(t).Milliseconds()
}

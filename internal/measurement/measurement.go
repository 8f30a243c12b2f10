package measurement

// SchemaVersion tags every ProductMeasurement. Bump it when a dimension,
// attribute or field name changes.
const SchemaVersion = "1.0"

// AggregationMethod names how per-image scores are combined.
const AggregationMethod = "confidence_weighted_average"

// Status is the processing outcome of a product.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// FailureReason explains why an image location was rejected before dispatch.
type FailureReason string

const (
	FailureInvalidFormat FailureReason = "invalid_format"
	FailureDNSError      FailureReason = "dns_error"
	FailureTimeout       FailureReason = "timeout"
	FailureNotFound      FailureReason = "not_found"
	FailureServerError   FailureReason = "server_error"
	FailureNotAnImage    FailureReason = "not_an_image"
)

// ErrorType classifies per-image and per-product failures after validation.
type ErrorType string

const (
	ErrorThrottled          ErrorType = "throttled"
	ErrorAllModelsExhausted ErrorType = "all_models_exhausted"
	ErrorProviderOther      ErrorType = "provider_other_error"
	ErrorMalformedResponse  ErrorType = "malformed_response"
	ErrorImageFetchFailed   ErrorType = "image_fetch_failed"
	ErrorAllURLsInvalid     ErrorType = "all_urls_invalid"
	ErrorAllDispatchFailed  ErrorType = "all_dispatch_failed"
	// ErrorCancelled means the caller went away before the run finished.
	ErrorCancelled ErrorType = "cancelled"
)

// Product is one unit of work: an identifier plus candidate image locations.
type Product struct {
	ID        string   `json:"product_id"`
	ImageURLs []string `json:"image_urls"`
}

// ValidationOutcome is the verdict on a single image location.
type ValidationOutcome struct {
	URL     string        `json:"url"`
	Valid   bool          `json:"valid"`
	Reason  FailureReason `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
}

// DimensionScore is a score in [-5, 5] with a confidence in [0, 1].
type DimensionScore struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// ColorEntry is one dominant color of a frame.
type ColorEntry struct {
	Name     string  `json:"color"`
	Hex      string  `json:"hex_approximation"`
	Coverage float64 `json:"coverage_percentage"`
}

// ColorAttribute is the dominant color list reported for one image.
type ColorAttribute struct {
	Colors     []ColorEntry `json:"colors"`
	Confidence float64      `json:"confidence"`
}

// ImageMeasurement is the validated result for one image.
type ImageMeasurement struct {
	URL            string                            `json:"url"`
	Dimensions     map[Dimension]DimensionScore      `json:"dimensions"`
	Attributes     map[Attribute]ObservableAttribute `json:"attributes"`
	Colors         ColorAttribute                    `json:"dominant_colors"`
	DegradedFields []string                          `json:"degraded_fields,omitempty"`
	Model          string                            `json:"model_used"`
	ElapsedMS      int64                             `json:"elapsed_ms"`
}

// ImageError records why a validated image produced no measurement.
type ImageError struct {
	URL               string    `json:"url"`
	ErrorType         ErrorType `json:"error_type"`
	Message           string    `json:"message"`
	ModelsAttempted   []string  `json:"models_attempted,omitempty"`
	RetryAfterSeconds *float64  `json:"retry_after_seconds,omitempty"`
}

// QualityFlags are boolean warnings about a product result.
type QualityFlags struct {
	LowConfidence   bool `json:"low_confidence"`
	HighVariance    bool `json:"high_variance"`
	SingleImageOnly bool `json:"single_image_only"`
	PartialAnalysis bool `json:"partial_analysis"`
}

// ImageValidation summarizes the URL validation phase.
type ImageValidation struct {
	TotalProvided int                 `json:"total_provided"`
	ValidCount    int                 `json:"valid_count"`
	InvalidCount  int                 `json:"invalid_count"`
	InvalidURLs   []ValidationOutcome `json:"invalid_urls"`
}

// Timing holds wall-clock durations per pipeline phase, in milliseconds.
type Timing struct {
	URLValidationMS int64   `json:"url_validation_ms"`
	ImageFetchMS    int64   `json:"image_fetch_ms"`
	VisionAPIMS     int64   `json:"vision_api_ms"`
	AggregationMS   int64   `json:"aggregation_ms"`
	TotalMS         int64   `json:"total_ms"`
	PerImageMS      []int64 `json:"per_image_ms"`
}

// ProductMeasurement is the externally visible result for one product.
type ProductMeasurement struct {
	SchemaVersion       string                            `json:"schema_version"`
	RunID               string                            `json:"run_id"`
	ProductID           string                            `json:"product_id"`
	Status              Status                            `json:"processing_status"`
	ErrorType           ErrorType                         `json:"error_type,omitempty"`
	ErrorMessage        string                            `json:"error_message,omitempty"`
	VisualDimensions    map[Dimension]DimensionScore      `json:"visual_dimensions"`
	VarianceMetrics     map[Dimension]float64             `json:"variance_metrics"`
	AggregateConfidence float64                           `json:"aggregate_confidence"`
	Attributes          map[Attribute]ObservableAttribute `json:"observable_attributes"`
	DominantColors      []ColorEntry                      `json:"dominant_colors"`
	QualityScore        float64                           `json:"quality_score"`
	QualityFlags        QualityFlags                      `json:"quality_flags"`
	ImageValidation     ImageValidation                   `json:"image_validation"`
	ImageErrors         []ImageError                      `json:"image_errors"`
	PerImage            []ImageMeasurement                `json:"per_image_analysis"`
	ImagesCapped        bool                              `json:"images_capped"`
	ImagesAnalyzed      int                               `json:"images_successfully_analyzed"`
	Timing              Timing                            `json:"timing_breakdown"`
	ModelUsed           string                            `json:"model_used,omitempty"`
	ModelsAttempted     []string                          `json:"models_attempted"`
	RetryAfterSeconds   *float64                          `json:"retry_after_seconds,omitempty"`
	AggregationMethod   string                            `json:"aggregation_method"`
}

// ZeroDimensions returns every dimension with score 0 and confidence 0.
func ZeroDimensions() map[Dimension]DimensionScore {
	out := make(map[Dimension]DimensionScore, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = DimensionScore{}
	}
	return out
}

// ZeroVariance returns every dimension with variance 0.
func ZeroVariance() map[Dimension]float64 {
	out := make(map[Dimension]float64, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = 0
	}
	return out
}

// SummarizeValidation splits outcomes into the valid locations, in input
// order, and the validation summary.
func SummarizeValidation(outcomes []ValidationOutcome) ([]string, ImageValidation) {
	summary := ImageValidation{
		TotalProvided: len(outcomes),
		InvalidURLs:   []ValidationOutcome{},
	}
	var valid []string
	for _, o := range outcomes {
		if o.Valid {
			valid = append(valid, o.URL)
			summary.ValidCount++
			continue
		}
		summary.InvalidCount++
		summary.InvalidURLs = append(summary.InvalidURLs, o)
	}
	return valid, summary
}

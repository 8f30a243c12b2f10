package aggregate

import (
	"errors"
	"math"

	"github.com/raine/visual-measurement/internal/measurement"
)

// ErrNoImages is returned when there is nothing to aggregate. The
// orchestrator produces a failed record instead of calling the aggregator.
var ErrNoImages = errors.New("no image measurements to aggregate")

const varianceQualityPenalty = 0.3

// Config holds the thresholds behind quality flags.
type Config struct {
	HighVarianceThreshold  float64
	LowConfidenceThreshold float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{HighVarianceThreshold: 1.5, LowConfidenceThreshold: 0.5}
}

// Result is the reconciled measurement of one product.
type Result struct {
	Dimensions  map[measurement.Dimension]measurement.DimensionScore
	Variance    map[measurement.Dimension]float64
	Confidence  float64
	MaxVariance float64
	Attributes  map[measurement.Attribute]measurement.ObservableAttribute
	Colors      []measurement.ColorEntry
	Quality     float64
	Flags       measurement.QualityFlags
}

// Aggregator combines per-image measurements into one product measurement.
type Aggregator struct {
	cfg Config
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate reconciles the measurements. PartialAnalysis is left for the
// caller, which knows about rejected and failed images.
func (a *Aggregator) Aggregate(images []measurement.ImageMeasurement) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	res := &Result{
		Dimensions: make(map[measurement.Dimension]measurement.DimensionScore, len(measurement.Dimensions)),
		Variance:   make(map[measurement.Dimension]float64, len(measurement.Dimensions)),
		Attributes: make(map[measurement.Attribute]measurement.ObservableAttribute, len(measurement.AttributeSpecs)),
	}

	var confSum float64
	for _, dim := range measurement.Dimensions {
		scores := make([]measurement.DimensionScore, 0, len(images))
		values := make([]float64, 0, len(images))
		for _, img := range images {
			s := img.Dimensions[dim]
			scores = append(scores, s)
			values = append(values, s.Score)
		}
		conf := MeanConfidence(scores)
		res.Dimensions[dim] = measurement.DimensionScore{Score: WeightedScore(scores), Confidence: conf}
		variance := StdDev(values)
		res.Variance[dim] = variance
		res.MaxVariance = math.Max(res.MaxVariance, variance)
		confSum += conf
	}
	res.Confidence = confSum / float64(len(measurement.Dimensions))

	for _, spec := range measurement.AttributeSpecs {
		votes := make([]measurement.ObservableAttribute, 0, len(images))
		for _, img := range images {
			if v, ok := img.Attributes[spec.Name]; ok {
				votes = append(votes, v)
			}
		}
		if len(votes) == 0 {
			res.Attributes[spec.Name] = spec.FallbackAttribute(0)
			continue
		}
		res.Attributes[spec.Name] = Vote(votes)
	}

	// Merged coverage is the sum of member coverages, capped at 100.
	var colors []measurement.ColorEntry
	for _, img := range images {
		colors = append(colors, img.Colors.Colors...)
	}
	res.Colors = DedupeColors(colors)

	res.Quality = QualityScore(res.Confidence, res.MaxVariance, a.cfg.HighVarianceThreshold)
	res.Flags = measurement.QualityFlags{
		LowConfidence:   res.Confidence < a.cfg.LowConfidenceThreshold,
		HighVariance:    res.MaxVariance > a.cfg.HighVarianceThreshold,
		SingleImageOnly: len(images) == 1,
	}
	return res, nil
}

// WeightedScore is the confidence-weighted mean of the scores, or the plain
// mean when every confidence is zero.
func WeightedScore(scores []measurement.DimensionScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var weighted, weights, plain float64
	for _, s := range scores {
		weighted += s.Score * s.Confidence
		weights += s.Confidence
		plain += s.Score
	}
	if weights == 0 {
		return plain / float64(len(scores))
	}
	return weighted / weights
}

// MeanConfidence is the arithmetic mean of the confidences.
func MeanConfidence(scores []measurement.DimensionScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Confidence
	}
	return sum / float64(len(scores))
}

// StdDev is the population standard deviation. It is exactly zero for a
// single value.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// QualityScore discounts confidence by up to 30% as the largest variance
// approaches the threshold.
func QualityScore(confidence, maxVariance, threshold float64) float64 {
	ratio := 1.0
	if threshold > 0 {
		ratio = math.Min(maxVariance/threshold, 1)
	}
	return confidence * (1 - varianceQualityPenalty*ratio)
}

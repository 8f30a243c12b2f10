package bot

import (
	"fmt"
	"strings"

	"github.com/raine/visual-measurement/internal/measurement"
)

var statusEmoji = map[measurement.Status]string{
	measurement.StatusSuccess: "✅",
	measurement.StatusPartial: "⚠️",
	measurement.StatusFailed:  "❌",
}

// formatMeasurement renders a product measurement as a Telegram Markdown reply.
func formatMeasurement(rec *measurement.ProductMeasurement) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *%s*: %s\n", statusEmoji[rec.Status], escapeMarkdown(rec.ProductID), rec.Status)

	if rec.Status == measurement.StatusFailed {
		fmt.Fprintf(&sb, "Error: %s\n", escapeMarkdown(string(rec.ErrorType)))
		if rec.ErrorMessage != "" {
			sb.WriteString(escapeMarkdown(rec.ErrorMessage) + "\n")
		}
		writeInvalidURLs(&sb, rec)
		writeRetryAfter(&sb, rec)
		return sb.String()
	}

	fmt.Fprintf(&sb, "Images analyzed: %d/%d", rec.ImagesAnalyzed, rec.ImageValidation.TotalProvided)
	if rec.ImagesCapped {
		sb.WriteString(" (capped)")
	}
	sb.WriteString("\n\n*Dimensions*\n")
	for _, d := range measurement.Dimensions {
		s := rec.VisualDimensions[d]
		fmt.Fprintf(&sb, "%s: %+.2f (conf %.2f, sd %.2f)\n", escapeMarkdown(string(d)), s.Score, s.Confidence, rec.VarianceMetrics[d])
	}

	sb.WriteString("\n*Attributes*\n")
	for _, spec := range measurement.AttributeSpecs {
		a, ok := rec.Attributes[spec.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", escapeMarkdown(string(spec.Name)), escapeMarkdown(a.Key()))
	}

	if len(rec.DominantColors) > 0 {
		colors := make([]string, len(rec.DominantColors))
		for i, c := range rec.DominantColors {
			colors[i] = fmt.Sprintf("%s %s %.0f%%", escapeMarkdown(c.Name), c.Hex, c.Coverage)
		}
		fmt.Fprintf(&sb, "colors: %s\n", strings.Join(colors, ", "))
	}

	fmt.Fprintf(&sb, "\nConfidence %.2f, quality %.2f\n", rec.AggregateConfidence, rec.QualityScore)
	if flags := qualityFlags(rec.QualityFlags); len(flags) > 0 {
		fmt.Fprintf(&sb, "Flags: %s\n", escapeMarkdown(strings.Join(flags, ", ")))
	}
	if rec.ModelUsed != "" {
		fmt.Fprintf(&sb, "Model: %s\n", escapeMarkdown(rec.ModelUsed))
	}
	writeInvalidURLs(&sb, rec)
	for _, e := range rec.ImageErrors {
		fmt.Fprintf(&sb, "• %s: %s\n", escapeMarkdown(e.URL), escapeMarkdown(string(e.ErrorType)))
	}
	writeRetryAfter(&sb, rec)
	return sb.String()
}

func writeInvalidURLs(sb *strings.Builder, rec *measurement.ProductMeasurement) {
	for _, o := range rec.ImageValidation.InvalidURLs {
		fmt.Fprintf(sb, "• %s: %s\n", escapeMarkdown(o.URL), escapeMarkdown(string(o.Reason)))
	}
}

func writeRetryAfter(sb *strings.Builder, rec *measurement.ProductMeasurement) {
	if rec.RetryAfterSeconds != nil {
		fmt.Fprintf(sb, "Provider is throttling, retry in %.0fs\n", *rec.RetryAfterSeconds)
	}
}

func qualityFlags(f measurement.QualityFlags) []string {
	var out []string
	if f.LowConfidence {
		out = append(out, "low_confidence")
	}
	if f.HighVariance {
		out = append(out, "high_variance")
	}
	if f.SingleImageOnly {
		out = append(out, "single_image_only")
	}
	if f.PartialAnalysis {
		out = append(out, "partial_analysis")
	}
	return out
}

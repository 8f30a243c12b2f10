package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raine/visual-measurement/config"
	"github.com/raine/visual-measurement/internal/imagefetch"
	"github.com/raine/visual-measurement/internal/interpret"
	"github.com/raine/visual-measurement/internal/llm"
	"github.com/raine/visual-measurement/internal/measurement"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [model|all]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nModels: %s\n", strings.Join(variantNames(llm.KnownVariants), ", "))
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	variants := []llm.ModelVariant{llm.Gemini25Flash}
	if len(os.Args) >= 3 {
		if os.Args[2] == "all" {
			variants = llm.KnownVariants
		} else {
			parsed, err := llm.ParseVariants([]string{os.Args[2]})
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			variants = parsed
		}
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	img, err := imagefetch.Sniff(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image: %s (%dx%d, %d bytes)\n", img.MIMEType, img.Width, img.Height, len(img.Data))

	config.LoadEnvFile()
	ctx := context.Background()

	vision, err := llm.NewGeminiVision(ctx, os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating Gemini client: %v\n", err)
		os.Exit(1)
	}

	for i, v := range variants {
		if i > 0 {
			fmt.Println("\n" + strings.Repeat("-", 50))
		}
		fmt.Printf("\n=== %s ===\n", v)
		runVariant(ctx, vision, v, llm.Image{Data: img.Data, MIMEType: img.MIMEType})
	}
}

func runVariant(ctx context.Context, vision *llm.GeminiVision, variant llm.ModelVariant, img llm.Image) {
	resp, err := vision.AnalyzeImage(ctx, variant, img)
	if err != nil {
		fmt.Printf("Error analyzing image: %v\n", err)
		return
	}

	result, err := interpret.Parse(resp.Text)
	if err != nil {
		fmt.Printf("Error parsing response: %v\n", err)
		fmt.Printf("Raw response:\n%s\n", resp.Text)
		return
	}

	fmt.Println("Dimensions:")
	for _, d := range measurement.Dimensions {
		s := result.Dimensions[d]
		fmt.Printf("  %-20s %+.1f  (confidence %.2f)\n", d, s.Score, s.Confidence)
	}

	fmt.Println("Attributes:")
	for _, spec := range measurement.AttributeSpecs {
		a := result.Attributes[spec.Name]
		fmt.Printf("  %-20s %s  (confidence %.2f)\n", spec.Name, a.Key(), a.Confidence)
	}

	fmt.Println("Colors:")
	for _, c := range result.Colors.Colors {
		fmt.Printf("  %-20s %s  %.0f%%\n", c.Name, c.Hex, c.Coverage)
	}

	if len(result.DegradedFields) > 0 {
		fmt.Printf("Degraded:    %s\n", strings.Join(result.DegradedFields, ", "))
	}
	fmt.Println()
	fmt.Printf("Tokens:      %d in / %d out / %d total\n",
		resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	fmt.Printf("Cost:        $%.6f\n", resp.Usage.CostUSD)
}

func variantNames(vs []llm.ModelVariant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

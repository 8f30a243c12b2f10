package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/raine/visual-measurement/config"
	"github.com/raine/visual-measurement/internal/loader"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/raine/visual-measurement/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	inputPath  string
	outputPath string
	limit      int
	apiKey     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "measure-batch",
	Short: "Measure eyewear products listed in a CSV file",
	Long: "Reads products from a CSV file with a \"Product Id\" column and Image columns, " +
		"measures each product and writes the results as a JSON array.",
	SilenceUsage: true,
	RunE:         runBatch,
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input CSV file (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "results/measurements.json", "output JSON file")
	rootCmd.Flags().IntVarP(&limit, "limit", "n", 0, "process at most this many products (0 for all)")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = rootCmd.MarkFlagRequired("input")
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if apiKey != "" {
		cfg.GeminiAPIKey = apiKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	products, err := loader.LoadFile(inputPath, limit)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("no products with images in %s", inputPath)
	}
	log.Info().Str("input", inputPath).Int("products", len(products)).Msg("loaded products")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orchestrator, err := pipeline.NewFromConfig(ctx, cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	results := orchestrator.ProcessBatch(ctx, products)

	if err := writeResults(outputPath, results); err != nil {
		return err
	}

	counts := map[measurement.Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	log.Info().
		Str("output", outputPath).
		Int("success", counts[measurement.StatusSuccess]).
		Int("partial", counts[measurement.StatusPartial]).
		Int("failed", counts[measurement.StatusFailed]).
		Dur("elapsed", time.Since(start)).
		Msg("batch complete")

	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d products: %d success, %d partial, %d failed\n",
		len(results), counts[measurement.StatusSuccess], counts[measurement.StatusPartial], counts[measurement.StatusFailed])
	fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputPath)
	return nil
}

func writeResults(path string, results []*measurement.ProductMeasurement) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/pipeline"
)

var (
	ingestTimeout time.Duration
	workers       int
	noCache       bool
	textModel     string
	visionModel   string
	llmProvider   string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [city...]",
	Short: "Normalize city sources into per-category CSV files",
	Long: `Ingest reads each city's input folder and writes one year,count CSV per
crime category into the city's output folder:
- chart:       chart images are transcribed by a vision model
- report:      annual report PDFs are queried once per category
- offense_log: yearly offense logs are counted per category

With no arguments every configured city is ingested.

Example:
  crimestats ingest
  crimestats ingest "Memphis, Tennessee" --vision-model google/gemini-2.5-pro
  crimestats ingest "Los Angeles, California" --data-dir ./data`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "total timeout for the run")
	ingestCmd.Flags().IntVar(&workers, "workers", 0, "concurrent model calls (default from config)")
	ingestCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the model response cache")
	ingestCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "model provider (openrouter, openai, ollama)")
	ingestCmd.Flags().StringVar(&textModel, "text-model", "", "model for report queries")
	ingestCmd.Flags().StringVar(&visionModel, "vision-model", "", "model for chart images")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if workers > 0 {
		cfg.Concurrency.Workers = workers
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = apiKeyFromEnv(llmProvider)
	}
	if textModel != "" {
		cfg.LLM.TextModel = textModel
	}
	if visionModel != "" {
		cfg.LLM.VisionModel = visionModel
	}

	cities, err := selectCities(cfg, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()
	ctx = logging.WithRunID(ctx, logging.NewRunID())

	banner("crimestats Ingest")
	fmt.Fprintf(os.Stderr, "  Data dir:     %s\n", cfg.DataDir)
	fmt.Fprintf(os.Stderr, "  Cities:       %d\n", len(cities))
	fmt.Fprintf(os.Stderr, "  Years:        %d-%d\n", cfg.Years.Min, cfg.Years.Max)
	fmt.Fprintf(os.Stderr, "  Provider:     %s\n", cfg.LLM.Provider)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(os.Stderr, "  Run id:       %s\n", logging.RunID(ctx))
	fmt.Fprintf(os.Stderr, "\n")

	p := pipeline.FromConfig(ctx, cfg)
	summaries, runErr := p.IngestAll(ctx, cities)

	for _, s := range summaries {
		mark := "✓"
		if len(s.Failures) > 0 || len(s.Fallbacks) > 0 {
			mark = "⚠️ "
		}
		fmt.Fprintf(os.Stderr, "%s %s (%s): %d files, %d fallbacks, %d failures in %v\n",
			mark, s.City, s.Source, len(s.Written), len(s.Fallbacks), len(s.Failures), s.Duration.Round(time.Millisecond))
		if verbose {
			for _, f := range s.Failures {
				fmt.Fprintf(os.Stderr, "    - %s\n", f)
			}
		}
	}
	fmt.Fprintln(os.Stderr)

	if runErr != nil {
		return fmt.Errorf("ingest failed: %w", runErr)
	}
	return nil
}

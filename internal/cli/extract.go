package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crimestats/internal/extract"
	"github.com/ppiankov/crimestats/internal/series"
)

var (
	minYear    int
	maxYear    int
	extractOut string
)

// extractCmd runs the table extractor over a saved model response
var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract a year,count table from a saved model response",
	Long: `Extract parses free-form text (for example a saved vision model answer)
into year,count rows restricted to a year window. When nothing usable is
found the original text is kept as a single "response" cell.

Reads stdin when the file is "-" or omitted.

Example:
  crimestats extract response.txt
  pbpaste | crimestats extract - --min-year 2010 --max-year 2020
  crimestats extract response.txt --out robbery.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().IntVar(&minYear, "min-year", 0, "first accepted year (default from config)")
	extractCmd.Flags().IntVar(&maxYear, "max-year", 0, "last accepted year (default from config)")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "write CSV to this path instead of stdout")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("min-year") {
		cfg.Years.Min = minYear
	}
	if cmd.Flags().Changed("max-year") {
		cfg.Years.Max = maxYear
	}

	var raw []byte
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	result, err := extract.Extract(string(raw), cfg.Years.Min, cfg.Years.Max)
	if err != nil {
		return err
	}

	if extractOut != "" {
		if err := series.WriteResult(extractOut, result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote %d rows to %s\n", len(result.Rows), extractOut)
		return nil
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(result.Header()); err != nil {
		return err
	}
	if err := w.WriteAll(result.Records()); err != nil {
		return err
	}
	if result.Fallback() {
		fmt.Fprintf(os.Stderr, "⚠️  No year,count rows found; kept the raw response\n")
	}
	return nil
}

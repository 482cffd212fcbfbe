package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crimestats/internal/combine"
)

// combineCmd represents the combine command
var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Merge per-city category files into cross-city tables",
	Long: `Combine scans every city folder under the data directory and writes one
city,year,count file per crime category into the combined directory.
Files that hold an unparsed model response are skipped.

Example:
  crimestats combine
  crimestats combine --data-dir ./data`,
	Args: cobra.NoArgs,
	RunE: runCombine,
}

func init() {
	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := combine.Combine(ctx, combine.Options{
		DataDir:   cfg.DataDir,
		OutputDir: cfg.CombinedPath(),
		SkipDirs:  cfg.SkipDirs,
	})
	if err != nil {
		return fmt.Errorf("combine failed: %w", err)
	}

	names := make([]string, 0, len(summary.Files))
	for name := range summary.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(os.Stderr, "✓ Combined %d cities into %d files in %s\n", len(summary.Cities), len(names), cfg.CombinedPath())
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "    %-32s %d rows\n", name, summary.Files[name])
	}
	if len(summary.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Skipped %d files\n", len(summary.Skipped))
		if verbose {
			for _, s := range summary.Skipped {
				fmt.Fprintf(os.Stderr, "    - %s\n", s)
			}
		}
	}
	return nil
}

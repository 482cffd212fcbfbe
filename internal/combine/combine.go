// Package combine merges per-city category files into cross-city tables.
package combine

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/series"
)

// Header of every combined file
var Header = []string{"city", "year", "count"}

// Options configures a combine run
type Options struct {
	// DataDir holds one directory per city
	DataDir string

	// OutputDir receives one combined file per category
	OutputDir string

	// SkipDirs are directory names under DataDir that are not cities
	SkipDirs []string
}

// Summary reports what a combine run did
type Summary struct {
	Cities  []string
	Files   map[string]int // combined file name -> row count
	Skipped []string       // city/file entries that were not merged
}

// Combine scans DataDir for city directories with an output folder and
// writes <OutputDir>/<file> with city,year,count rows for every category
// file found. Fallback response files are skipped.
func Combine(ctx context.Context, opts Options) (*Summary, error) {
	logger := logging.FromContext(ctx)

	entries, err := os.ReadDir(opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}
	skip[filepath.Base(opts.OutputDir)] = true

	summary := &Summary{Files: make(map[string]int)}
	merged := make(map[string][][]string)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || skip[entry.Name()] || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		city := entry.Name()
		outputDir := filepath.Join(opts.DataDir, city, "output")
		files, err := filepath.Glob(filepath.Join(outputDir, "*.csv"))
		if err != nil || len(files) == 0 {
			if _, statErr := os.Stat(outputDir); statErr == nil {
				logger.Info("no category files", "city", city)
			}
			continue
		}
		sort.Strings(files)

		summary.Cities = append(summary.Cities, city)
		logger.Info("processing city", "city", city, "files", len(files))

		for _, file := range files {
			name := filepath.Base(file)
			rows, fallback, err := series.ReadRows(file)
			switch {
			case err != nil:
				logger.Warn("skipping unreadable file", "city", city, "file", name, "error", err)
				summary.Skipped = append(summary.Skipped, city+"/"+name)
				continue
			case fallback:
				logger.Warn("skipping unparsed model response", "city", city, "file", name)
				summary.Skipped = append(summary.Skipped, city+"/"+name)
				continue
			}

			for _, row := range rows {
				merged[name] = append(merged[name], []string{city, row.Year, row.Count})
			}
			if _, ok := merged[name]; !ok {
				merged[name] = nil
			}
		}
	}

	if len(merged) == 0 {
		logger.Warn("no crime data found to combine", "dir", opts.DataDir)
		return summary, nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create combined dir: %w", err)
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(opts.OutputDir, name)
		if err := writeCombined(path, merged[name]); err != nil {
			return nil, err
		}
		summary.Files[name] = len(merged[name])
		logger.Info("saved combined file", "file", name, "rows", len(merged[name]))
	}

	return summary, nil
}

func writeCombined(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(Header); err != nil {
		_ = file.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

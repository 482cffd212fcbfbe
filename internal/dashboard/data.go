// Package dashboard loads the combined crime tables and serves filtered
// aggregates over HTTP.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/series"
)

// Record is one city/year/type count
type Record struct {
	City      string `json:"city"`
	Year      int    `json:"year"`
	CrimeType string `json:"crime_type"`
	Count     int64  `json:"count"`
}

// Dataset is the loaded set of records
type Dataset struct {
	Records []Record
}

// CrimeType derives a display name from a combined file name:
// "grand-theft-auto.csv" -> "Grand Theft Auto"
func CrimeType(fileName string) string {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	words := strings.Fields(strings.ReplaceAll(stem, "-", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Load reads the combined files in dir. With no names given, every CSV in
// dir is loaded. Missing named files and rows with non-numeric year or
// count are skipped with a warning.
func Load(ctx context.Context, dir string, names []string) (*Dataset, error) {
	logger := logging.FromContext(ctx)

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("data folder: %w", err)
	}

	if len(names) == 0 {
		matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("list data files: %w", err)
		}
		for _, m := range matches {
			names = append(names, filepath.Base(m))
		}
		sort.Strings(names)
	}

	ds := &Dataset{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			logger.Warn("data file not found", "file", name)
			continue
		}

		records, skipped, err := loadFile(path)
		if err != nil {
			logger.Warn("could not read data file", "file", name, "error", err)
			continue
		}
		if skipped > 0 {
			logger.Warn("skipped non-numeric rows", "file", name, "rows", skipped)
		}
		ds.Records = append(ds.Records, records...)
	}

	return ds, nil
}

func loadFile(path string) ([]Record, int, error) {
	header, rows, err := series.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	col := make(map[string]int)
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"city", "year", "count"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("missing %q column", required)
		}
	}

	crimeType := CrimeType(path)
	var records []Record
	skipped := 0
	for _, row := range rows {
		if len(row) <= col["city"] || len(row) <= col["year"] || len(row) <= col["count"] {
			skipped++
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(row[col["year"]]))
		if err != nil {
			skipped++
			continue
		}
		count, ok := parseCount(row[col["count"]])
		if !ok {
			skipped++
			continue
		}
		records = append(records, Record{
			City:      row[col["city"]],
			Year:      year,
			CrimeType: crimeType,
			Count:     count,
		})
	}
	return records, skipped, nil
}

// parseCount accepts integers and whole-number floats ("120", "120.0")
func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Package series reads and writes the per-category year,count CSV files.
package series

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/crimestats/internal/extract"
)

var slugDisallowed = regexp.MustCompile(`[^a-z0-9_-]`)

// Slug turns a category name into a file name stem:
// "Larceny/Theft & Fraud" -> "larceny-theft-and-fraud"
func Slug(category string) string {
	s := strings.ToLower(strings.TrimSpace(category))
	s = strings.NewReplacer(" ", "-", "/", "-", "&", "and").Replace(s)
	return slugDisallowed.ReplaceAllString(s, "")
}

// FileName returns the CSV file name for a category
func FileName(category string) string {
	return Slug(category) + ".csv"
}

// WriteResult writes an extraction result: year,count rows, or the
// single-column response file when extraction fell back
func WriteResult(path string, res extract.Result) error {
	return write(path, res.Header(), res.Records())
}

// WriteSeries sorts rows by year and writes them as year,count
func WriteSeries(path string, rows []extract.Row) error {
	sorted := SortRows(rows)

	records := make([][]string, len(sorted))
	for i, row := range sorted {
		records[i] = []string{row.Year, row.Count}
	}
	return write(path, []string{"year", "count"}, records)
}

// SortRows returns a copy of rows ordered by year. Numeric years sort
// numerically and ahead of any non-numeric ones.
func SortRows(rows []extract.Row) []extract.Row {
	sorted := make([]extract.Row, len(rows))
	copy(sorted, rows)

	sort.SliceStable(sorted, func(i, j int) bool {
		yi, erri := strconv.Atoi(sorted[i].Year)
		yj, errj := strconv.Atoi(sorted[j].Year)
		switch {
		case erri == nil && errj == nil:
			return yi < yj
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return sorted[i].Year < sorted[j].Year
		}
	})
	return sorted
}

// ReadFile returns a CSV file's header and records
func ReadFile(path string) (header []string, records [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

// ReadRows reads a year,count file. A response fallback file yields no rows
// and fallback set to true.
func ReadRows(path string) (rows []extract.Row, fallback bool, err error) {
	header, records, err := ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	if len(header) == 1 && header[0] == extract.FallbackColumn {
		return nil, true, nil
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("%s: expected year,count header, got %v", path, header)
	}

	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		rows = append(rows, extract.Row{Year: rec[0], Count: rec[1]})
	}
	return rows, false, nil
}

func write(path string, header []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		_ = file.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write records: %w", err)
	}

	return file.Close()
}

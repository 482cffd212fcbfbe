// Package offense counts offense-log records per category per year.
package offense

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/crimestats/internal/extract"
	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/model"
	"github.com/ppiankov/crimestats/internal/series"
)

// Format is an offense-log file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported offense log format")

// DetectFormat sniffs the file content, falling back to the extension for
// ambiguous types (plain text, generic zip)
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect format: %w", err)
	}

	switch {
	case mtype.Is(xlsxMIME):
		return FormatXLSX, nil
	case mtype.Is("text/csv"):
		return FormatCSV, nil
	case mtype.Is("application/zip") && ext == ".xlsx":
		return FormatXLSX, nil
	case strings.HasPrefix(mtype.String(), "text/") && ext == ".csv":
		return FormatCSV, nil
	}

	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(path), mtype.String())
}

// Series is the yearly count of one category
type Series struct {
	Category string
	Slug     string
	Rows     []extract.Row
}

// Tally accumulates record counts keyed by category and year
type Tally struct {
	counts  map[string]map[int]int
	Files   int
	Records int
	Skipped int
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{counts: make(map[string]map[int]int)}
}

// Add counts one record. Blank categories are ignored.
func (t *Tally) Add(category string, year int) {
	category = strings.TrimSpace(category)
	if category == "" {
		t.Skipped++
		return
	}
	if t.counts[category] == nil {
		t.counts[category] = make(map[int]int)
	}
	t.counts[category][year]++
	t.Records++
}

// Count returns the number of records for category in year
func (t *Tally) Count(category string, year int) int {
	return t.counts[category][year]
}

// Categories returns the distinct categories, sorted
func (t *Tally) Categories() []string {
	out := make([]string, 0, len(t.counts))
	for c := range t.counts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Series returns one series per output file, sorted by slug. Categories
// whose names share a slug are merged.
func (t *Tally) Series() []Series {
	bySlug := make(map[string]*Series)
	years := make(map[string]map[int]int)

	for _, category := range t.Categories() {
		slug := series.Slug(category)
		if slug == "" {
			continue
		}
		if bySlug[slug] == nil {
			bySlug[slug] = &Series{Category: category, Slug: slug}
			years[slug] = make(map[int]int)
		}
		for year, n := range t.counts[category] {
			years[slug][year] += n
		}
	}

	slugs := make([]string, 0, len(bySlug))
	for slug := range bySlug {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	out := make([]Series, 0, len(slugs))
	for _, slug := range slugs {
		s := bySlug[slug]
		sortedYears := make([]int, 0, len(years[slug]))
		for y := range years[slug] {
			sortedYears = append(sortedYears, y)
		}
		sort.Ints(sortedYears)
		for _, y := range sortedYears {
			s.Rows = append(s.Rows, extract.Row{Year: strconv.Itoa(y), Count: strconv.Itoa(years[slug][y])})
		}
		out = append(out, *s)
	}
	return out
}

// Aggregate counts every CSV and XLSX log in dir for the given city.
// Files without a year in their name or with unreadable content are
// skipped with a warning.
func Aggregate(ctx context.Context, dir string, city model.City) (*Tally, error) {
	logger := logging.WithFields(ctx, "city", city.Name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	tally := NewTally()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if entry.IsDir() || strings.HasPrefix(name, "~$") || (ext != ".csv" && ext != ".xlsx") {
			continue
		}

		path := filepath.Join(dir, name)
		yearText, err := city.YearFromFilename(name)
		if err != nil {
			logger.Warn("skipping offense log", "file", name, "error", err)
			continue
		}
		year, _ := strconv.Atoi(yearText)

		n, err := countFile(ctx, path, city.CategoryColumn, year, tally)
		if err != nil {
			logger.Warn("skipping offense log", "file", name, "error", err)
			continue
		}

		tally.Files++
		logger.Info("loaded offense log", "file", name, "year", year, "records", n)
	}

	return tally, nil
}

func countFile(ctx context.Context, path, column string, year int, tally *Tally) (int, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return 0, err
	}

	var rows rowSource
	switch format {
	case FormatXLSX:
		rows, err = openXLSX(path)
	default:
		rows, err = openCSV(ctx, path)
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	header, err := rows.Next()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("column %q not found", column)
	}

	count := 0
	for {
		record, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
		if len(record) > len(header) {
			// Malformed line: more fields than the header
			tally.Skipped++
			continue
		}
		if idx >= len(record) {
			tally.Add("", year)
			continue
		}
		tally.Add(record[idx], year)
		count++
	}

	return count, nil
}

type rowSource interface {
	Next() ([]string, error)
	Close() error
}

type csvRows struct {
	file   *os.File
	reader *csv.Reader
	path   string
	ctx    context.Context
}

func openCSV(ctx context.Context, path string) (*csvRows, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return &csvRows{file: file, reader: reader, path: path, ctx: ctx}, nil
}

// Next returns the next well-formed record, warning about and skipping
// lines the CSV reader rejects
func (r *csvRows) Next() ([]string, error) {
	for {
		record, err := r.reader.Read()
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			logging.FromContext(r.ctx).Warn("skipping malformed line",
				"file", filepath.Base(r.path),
				"line", parseErr.Line,
				"error", parseErr.Err,
			)
			continue
		}
		return record, err
	}
}

func (r *csvRows) Close() error {
	return r.file.Close()
}

type xlsxRows struct {
	file *excelize.File
	rows [][]string
	pos  int
}

// openXLSX reads the first sheet of a workbook
func openXLSX(path string) (*xlsxRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	return &xlsxRows{file: f, rows: rows}, nil
}

func (r *xlsxRows) Next() ([]string, error) {
	for r.pos < len(r.rows) {
		row := r.rows[r.pos]
		r.pos++
		if len(row) == 0 {
			continue
		}
		return row, nil
	}
	return nil, io.EOF
}

func (r *xlsxRows) Close() error {
	return r.file.Close()
}

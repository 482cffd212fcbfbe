// Package extract recovers yearly (year, count) rows from free-form model
// output. It degrades through fallback tiers instead of failing: per-line
// parsing, then a whole-text scan, then a single diagnostic row holding the
// original text.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FallbackColumn is the header of the single-column diagnostic result
const FallbackColumn = "response"

// ErrInvalidWindow is returned when the year window is inverted
var ErrInvalidWindow = errors.New("invalid year window")

var (
	yearPattern = regexp.MustCompile(`^\d{4}$`)

	// yearValuePattern recovers counts run together without line breaks:
	// a year, at most 10 non-digit characters, then a digit run.
	yearValuePattern = regexp.MustCompile(`(\d{4})[^\d]{0,10}(\d+)`)
)

// YearWindow is the inclusive range of accepted years
type YearWindow struct {
	Min int `json:"min" yaml:"min" mapstructure:"min"`
	Max int `json:"max" yaml:"max" mapstructure:"max"`
}

// Validate reports whether the window is usable
func (w YearWindow) Validate() error {
	if w.Min > w.Max {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidWindow, w.Min, w.Max)
	}
	return nil
}

// Contains reports whether year falls inside the window
func (w YearWindow) Contains(year int) bool {
	return year >= w.Min && year <= w.Max
}

// Row is one extracted (year, count) pair. Both fields are kept as the
// tokens found in the text.
type Row struct {
	Year  string `json:"year"`
	Count string `json:"count"`
}

// Result is the outcome of one extraction. Exactly one of Rows or Response
// is set: Rows when structured data was recovered, Response (the original
// text) otherwise.
type Result struct {
	Rows     []Row  `json:"rows,omitempty"`
	Response string `json:"response,omitempty"`
}

// Fallback reports whether the result is the diagnostic row
func (r Result) Fallback() bool {
	return len(r.Rows) == 0
}

// Header returns the CSV header matching the result shape
func (r Result) Header() []string {
	if r.Fallback() {
		return []string{FallbackColumn}
	}
	return []string{"year", "count"}
}

// Records returns the result as CSV records, without the header
func (r Result) Records() [][]string {
	if r.Fallback() {
		return [][]string{{r.Response}}
	}
	records := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		records[i] = []string{row.Year, row.Count}
	}
	return records
}

// TableExtractor extracts rows restricted to a year window.
// It holds no mutable state and is safe for concurrent use.
type TableExtractor struct {
	window YearWindow
}

// NewTableExtractor creates an extractor for the given window
func NewTableExtractor(window YearWindow) (*TableExtractor, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &TableExtractor{window: window}, nil
}

// Extract recovers rows from raw. It never fails; when nothing usable is
// found the result carries raw unchanged as the fallback response.
func (e *TableExtractor) Extract(raw string) Result {
	text := Normalize(raw)

	rows := parseLines(text)
	if len(rows) == 0 {
		rows = scanYearValues(text)
	}

	kept := rows[:0]
	for _, row := range rows {
		year, err := strconv.Atoi(row.Year)
		if err == nil && e.window.Contains(year) {
			kept = append(kept, row)
		}
	}

	if len(kept) == 0 {
		return Result{Response: raw}
	}
	return Result{Rows: kept}
}

// Extract is a convenience wrapper around NewTableExtractor
func Extract(raw string, minYear, maxYear int) (Result, error) {
	e, err := NewTableExtractor(YearWindow{Min: minYear, Max: maxYear})
	if err != nil {
		return Result{}, err
	}
	return e.Extract(raw), nil
}

// parseLines assigns a year and value from each line's tokens
func parseLines(text string) []Row {
	var rows []Row

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := tokenize(line)
		if len(tokens) < 2 {
			continue
		}

		if row, ok := assignYear(tokens); ok {
			rows = append(rows, row)
		}
	}

	return rows
}

// assignYear picks the year/value pair from a line's tokens.
//
// When the year is the last token the first token becomes the value, even if
// it is not numeric. Existing output files depend on this, so keep it.
func assignYear(tokens []string) (Row, bool) {
	if yearPattern.MatchString(tokens[0]) {
		return Row{Year: tokens[0], Count: tokens[1]}, true
	}

	for i, token := range tokens {
		if !yearPattern.MatchString(token) {
			continue
		}
		if i+1 < len(tokens) {
			return Row{Year: token, Count: tokens[i+1]}, true
		}
		return Row{Year: token, Count: tokens[0]}, true
	}

	return Row{}, false
}

// scanYearValues scans the whole text for year/count runs
func scanYearValues(text string) []Row {
	var rows []Row
	for _, m := range yearValuePattern.FindAllStringSubmatch(text, -1) {
		rows = append(rows, Row{Year: m[1], Count: m[2]})
	}
	return rows
}

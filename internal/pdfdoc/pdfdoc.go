// Package pdfdoc extracts per-page text from annual-report PDFs and selects
// the pages worth sending to a model.
package pdfdoc

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Page is the plain text of one PDF page
type Page struct {
	Number int
	Text   string
}

// Document is a PDF reduced to its readable pages
type Document struct {
	Path  string
	Pages []Page
}

// Open reads and parses a PDF file
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// Parse extracts page text from PDF bytes. Unreadable and empty pages are skipped.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc := &Document{}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		doc.Pages = append(doc.Pages, Page{Number: i, Text: text})
	}

	return doc, nil
}

// FindPages returns the pages containing any keyword (case-insensitive).
// With no keywords every page matches.
func (d *Document) FindPages(keywords ...string) []Page {
	if len(keywords) == 0 {
		return d.Pages
	}

	var matches []Page
	for _, page := range d.Pages {
		lower := strings.ToLower(page.Text)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matches = append(matches, page)
				break
			}
		}
	}
	return matches
}

// Combine joins pages into one text with page markers
func Combine(pages []Page) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- page %d ---\n", page.Number)
		b.WriteString(page.Text)
	}
	return b.String()
}

// Text returns all pages combined, truncated to maxChars bytes (0 means no limit)
func (d *Document) Text(maxChars int) string {
	return Truncate(Combine(d.Pages), maxChars)
}

// ReportText returns the pages matching keywords, or every page when none
// match, combined and truncated to maxChars
func (d *Document) ReportText(keywords []string, maxChars int) string {
	pages := d.FindPages(keywords...)
	if len(pages) == 0 {
		pages = d.Pages
	}
	return Truncate(Combine(pages), maxChars)
}

// Truncate cuts s to at most maxChars bytes on a rune boundary
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

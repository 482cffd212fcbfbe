package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// SourceKind identifies how a city publishes its statistics
type SourceKind string

const (
	SourceChart      SourceKind = "chart"       // Crime chart images read by a vision model
	SourceReport     SourceKind = "report"      // Annual-report PDFs queried per category
	SourceOffenseLog SourceKind = "offense_log" // Yearly offense logs (CSV/XLSX) counted locally
)

// Year positions within a file name split by YearSeparator
const (
	YearFirst = "first"
	YearLast  = "last"
)

var fourDigits = regexp.MustCompile(`^\d{4}$`)

// City describes one ingestion source
type City struct {
	Name   string     `yaml:"name" mapstructure:"name"`
	Dir    string     `yaml:"dir,omitempty" mapstructure:"dir"` // Defaults to Name
	Source SourceKind `yaml:"source" mapstructure:"source"`

	// Chart sources: image URLs or local paths
	Images []string `yaml:"images,omitempty" mapstructure:"images"`

	// Report and offense-log sources: how to find the year in a file name.
	// An empty separator uses the whole stem.
	YearSeparator string `yaml:"year_separator,omitempty" mapstructure:"year_separator"`
	YearPosition  string `yaml:"year_position,omitempty" mapstructure:"year_position"`

	// Offense-log sources: column holding the offense category
	CategoryColumn string `yaml:"category_column,omitempty" mapstructure:"category_column"`

	// Report sources: keywords that mark statistics pages in the PDF
	PageKeywords []string `yaml:"page_keywords,omitempty" mapstructure:"page_keywords"`
}

// Validate checks that the city has what its source kind needs
func (c City) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("city name is required")
	}

	switch c.Source {
	case SourceChart:
		if len(c.Images) == 0 {
			return fmt.Errorf("%s: chart source needs at least one image", c.Name)
		}
	case SourceReport:
	case SourceOffenseLog:
		if c.CategoryColumn == "" {
			return fmt.Errorf("%s: offense_log source needs category_column", c.Name)
		}
	default:
		return fmt.Errorf("%s: unknown source %q", c.Name, c.Source)
	}

	switch c.YearPosition {
	case "", YearFirst, YearLast:
	default:
		return fmt.Errorf("%s: year_position must be %q or %q", c.Name, YearFirst, YearLast)
	}

	return nil
}

// InputDir returns the city's input directory relative to its root
func (c City) InputDir(root string) string {
	return filepath.Join(root, "input")
}

// OutputDir returns the city's output directory relative to its root
func (c City) OutputDir(root string) string {
	return filepath.Join(root, "output")
}

// YearFromFilename extracts the 4-digit year from a file name.
//
//	"2014-Annual-Report.pdf"     sep "-" first -> "2014"
//	"New_Offense_Data_2015.csv"  sep "_" last  -> "2015"
//	"2016.pdf"                   sep ""        -> "2016"
func (c City) YearFromFilename(name string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	token := stem
	if c.YearSeparator != "" {
		parts := strings.Split(stem, c.YearSeparator)
		if c.YearPosition == YearLast {
			token = parts[len(parts)-1]
		} else {
			token = parts[0]
		}
	}

	token = strings.TrimSpace(token)
	if !fourDigits.MatchString(token) {
		return "", fmt.Errorf("no year in file name %q (got %q)", name, token)
	}
	return token, nil
}

// DefaultCities returns the five source cities
func DefaultCities() []City {
	return []City{
		{
			Name:          "Chicago, Illinois",
			Source:        SourceReport,
			YearSeparator: "-",
			YearPosition:  YearFirst,
			PageKeywords:  []string{"index crime", "offense", "crime statistics"},
		},
		{
			Name:         "Washington, DC",
			Source:       SourceReport,
			PageKeywords: []string{"crime", "offense"},
		},
		{
			Name:   "Memphis, Tennessee",
			Source: SourceChart,
			Images: []string{
				"https://i.ibb.co/9Ht6dPkW/robbery.webp",
				"https://i.ibb.co/Zp301w42/sexual-assault.webp",
				"https://i.ibb.co/QSLqqW1/aggravated-assault.webp",
				"https://i.ibb.co/KjRwfd3M/burglary.webp",
				"https://i.ibb.co/PGFrpGmm/grand-theft-auto.webp",
				"https://i.ibb.co/G40d4K7p/homicide.webp",
				"https://i.ibb.co/JFgZf7w7/larceny.webp",
			},
		},
		{
			Name:           "Los Angeles, California",
			Source:         SourceOffenseLog,
			YearSeparator:  "-",
			YearPosition:   YearFirst,
			CategoryColumn: "CATEGORY",
		},
		{
			Name:           "Portland, Oregon",
			Source:         SourceOffenseLog,
			YearSeparator:  "_",
			YearPosition:   YearLast,
			CategoryColumn: "OffenseCategory",
		},
	}
}

package dashboard

import (
	"sort"
	"strings"
)

// Filter selects records. Empty lists and zero years mean no restriction.
type Filter struct {
	Cities   []string
	Types    []string
	FromYear int
	ToYear   int
}

func (f Filter) match(r Record) bool {
	if len(f.Cities) > 0 && !containsFold(f.Cities, r.City) {
		return false
	}
	if len(f.Types) > 0 && !containsFold(f.Types, r.CrimeType) {
		return false
	}
	if f.FromYear != 0 && r.Year < f.FromYear {
		return false
	}
	if f.ToYear != 0 && r.Year > f.ToYear {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Filter returns the matching records sorted by city, year and crime type
func (d *Dataset) Filter(f Filter) []Record {
	var out []Record
	for _, r := range d.Records {
		if f.match(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].CrimeType < out[j].CrimeType
	})
	return out
}

// Options lists the available filter values
type Options struct {
	Cities  []string `json:"cities"`
	Types   []string `json:"types"`
	MinYear int      `json:"min_year"`
	MaxYear int      `json:"max_year"`
}

// Options returns the distinct cities and types and the year bounds
func (d *Dataset) Options() Options {
	cities := make(map[string]bool)
	types := make(map[string]bool)
	opts := Options{Cities: []string{}, Types: []string{}}

	for i, r := range d.Records {
		cities[r.City] = true
		types[r.CrimeType] = true
		if i == 0 || r.Year < opts.MinYear {
			opts.MinYear = r.Year
		}
		if i == 0 || r.Year > opts.MaxYear {
			opts.MaxYear = r.Year
		}
	}

	opts.Cities = sortedKeys(cities)
	opts.Types = sortedKeys(types)
	return opts
}

// Metrics summarizes a selection
type Metrics struct {
	Total   int64   `json:"total"`
	Mean    float64 `json:"mean"`
	TopCity string  `json:"top_city"`
	Rows    int     `json:"rows"`
}

// ComputeMetrics returns the total, the mean count per record and the city
// with the highest total ("N/A" for an empty selection)
func ComputeMetrics(records []Record) Metrics {
	m := Metrics{TopCity: "N/A", Rows: len(records)}
	if len(records) == 0 {
		return m
	}

	byCity := make(map[string]int64)
	for _, r := range records {
		m.Total += r.Count
		byCity[r.City] += r.Count
	}
	m.Mean = float64(m.Total) / float64(len(records))

	var best int64
	for _, city := range sortedKeys(byCity) {
		if m.TopCity == "N/A" || byCity[city] > best {
			m.TopCity = city
			best = byCity[city]
		}
	}
	return m
}

// CityYear is a count summed by city and year
type CityYear struct {
	City  string `json:"city"`
	Year  int    `json:"year"`
	Count int64  `json:"count"`
}

// Trend sums counts by city and year, sorted by city then year
func Trend(records []Record) []CityYear {
	sums := make(map[CityYear]int64)
	for _, r := range records {
		sums[CityYear{City: r.City, Year: r.Year}] += r.Count
	}

	out := make([]CityYear, 0, len(sums))
	for k, v := range sums {
		k.Count = v
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// CityType is a count summed by city and crime type
type CityType struct {
	City      string `json:"city"`
	CrimeType string `json:"crime_type"`
	Count     int64  `json:"count"`
}

// Composition sums counts by city and crime type, sorted by city then type
func Composition(records []Record) []CityType {
	sums := make(map[CityType]int64)
	for _, r := range records {
		sums[CityType{City: r.City, CrimeType: r.CrimeType}] += r.Count
	}

	out := make([]CityType, 0, len(sums))
	for k, v := range sums {
		k.Count = v
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].City != out[j].City {
			return out[i].City < out[j].City
		}
		return out[i].CrimeType < out[j].CrimeType
	})
	return out
}

// HeatmapData is a city x year matrix of summed counts.
// Values[i][j] is the total for Cities[i] in Years[j].
type HeatmapData struct {
	Cities []string  `json:"cities"`
	Years  []int     `json:"years"`
	Values [][]int64 `json:"values"`
}

// Heatmap builds the city x year matrix
func Heatmap(records []Record) HeatmapData {
	cities := make(map[string]bool)
	years := make(map[int]bool)
	for _, r := range records {
		cities[r.City] = true
		years[r.Year] = true
	}

	h := HeatmapData{Cities: sortedKeys(cities), Years: make([]int, 0, len(years))}
	for y := range years {
		h.Years = append(h.Years, y)
	}
	sort.Ints(h.Years)

	cityIdx := make(map[string]int, len(h.Cities))
	for i, c := range h.Cities {
		cityIdx[c] = i
	}
	yearIdx := make(map[int]int, len(h.Years))
	for j, y := range h.Years {
		yearIdx[y] = j
	}

	h.Values = make([][]int64, len(h.Cities))
	for i := range h.Values {
		h.Values[i] = make([]int64, len(h.Years))
	}
	for _, r := range records {
		h.Values[cityIdx[r.City]][yearIdx[r.Year]] += r.Count
	}
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

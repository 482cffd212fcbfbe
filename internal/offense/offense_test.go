package offense

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/crimestats/internal/extract"
	"github.com/ppiankov/crimestats/internal/model"
)

var losAngeles = model.City{
	Name:           "Los Angeles, California",
	Source:         model.SourceOffenseLog,
	YearSeparator:  "-",
	YearPosition:   model.YearFirst,
	CategoryColumn: "CATEGORY",
}

var portland = model.City{
	Name:           "Portland, Oregon",
	Source:         model.SourceOffenseLog,
	YearSeparator:  "_",
	YearPosition:   model.YearLast,
	CategoryColumn: "OffenseCategory",
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeXLSX(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAggregate_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2014-PART_I_AND_II_CRIMES.csv",
		"DR_NO,CATEGORY,AREA\n"+
			"1,ROBBERY,77th Street\n"+
			"2,ROBBERY,Central\n"+
			"3,BURGLARY,\"Hollywood, North\"\n"+
			"4,,Central\n"+
			"5,ROBBERY,Central,extra\n")
	writeFile(t, dir, "2015-PART_I_AND_II_CRIMES.csv",
		"DR_NO,CATEGORY,AREA\n"+
			"9,ROBBERY,Harbor\n")
	writeFile(t, dir, "readme.csv", "CATEGORY\nROBBERY\n")
	writeFile(t, dir, "notes.txt", "ignored")

	tally, err := Aggregate(context.Background(), dir, losAngeles)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if tally.Files != 2 {
		t.Errorf("expected 2 files loaded, got %d", tally.Files)
	}
	if got := tally.Count("ROBBERY", 2014); got != 2 {
		t.Errorf("expected 2 robberies in 2014, got %d", got)
	}
	if got := tally.Count("ROBBERY", 2015); got != 1 {
		t.Errorf("expected 1 robbery in 2015, got %d", got)
	}
	if got := tally.Count("BURGLARY", 2014); got != 1 {
		t.Errorf("expected 1 burglary in 2014, got %d", got)
	}
	if tally.Skipped != 2 {
		t.Errorf("expected blank and malformed rows skipped, got %d", tally.Skipped)
	}
	if !reflect.DeepEqual(tally.Categories(), []string{"BURGLARY", "ROBBERY"}) {
		t.Errorf("unexpected categories %v", tally.Categories())
	}

	series := tally.Series()
	if len(series) != 2 || series[1].Slug != "robbery" {
		t.Fatalf("unexpected series %+v", series)
	}
	expected := []extract.Row{{Year: "2014", Count: "2"}, {Year: "2015", Count: "1"}}
	if !reflect.DeepEqual(series[1].Rows, expected) {
		t.Errorf("expected %v, got %v", expected, series[1].Rows)
	}
}

func TestAggregate_XLSX(t *testing.T) {
	dir := t.TempDir()
	writeXLSX(t, dir, "New_Offense_Data_2016.xlsx", [][]any{
		{"Address", "OffenseCategory"},
		{"100 Main St", "Larceny Offenses"},
		{"200 Oak Ave", "Larceny Offenses"},
		{"300 Elm St", "Assault Offenses"},
	})
	writeFile(t, dir, "New_Offense_Data_2017.csv", "Address,OffenseCategory\n1 A St,Assault Offenses\n")

	tally, err := Aggregate(context.Background(), dir, portland)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if tally.Files != 2 {
		t.Errorf("expected 2 files, got %d", tally.Files)
	}
	if got := tally.Count("Larceny Offenses", 2016); got != 2 {
		t.Errorf("expected 2 larcenies in 2016, got %d", got)
	}
	if got := tally.Count("Assault Offenses", 2017); got != 1 {
		t.Errorf("expected 1 assault in 2017, got %d", got)
	}
}

func TestAggregate_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2014-crimes.csv", "DR_NO,CRIME\n1,ROBBERY\n")

	tally, err := Aggregate(context.Background(), dir, losAngeles)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if tally.Files != 0 || tally.Records != 0 {
		t.Errorf("expected file without category column to be skipped, got %+v", tally)
	}
}

func TestAggregate_MissingDir(t *testing.T) {
	if _, err := Aggregate(context.Background(), filepath.Join(t.TempDir(), "absent"), losAngeles); err == nil {
		t.Error("expected error for missing input dir")
	}
}

func TestAggregate_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2014-crimes.csv", "CATEGORY\nROBBERY\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Aggregate(ctx, dir, losAngeles); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()

	csvPath := writeFile(t, dir, "2014.csv", "a,b\n1,2\n3,4\n")
	if f, err := DetectFormat(csvPath); err != nil || f != FormatCSV {
		t.Errorf("DetectFormat(csv) = %v, %v", f, err)
	}

	xlsxPath := writeXLSX(t, dir, "2014.xlsx", [][]any{{"a"}, {"b"}})
	if f, err := DetectFormat(xlsxPath); err != nil || f != FormatXLSX {
		t.Errorf("DetectFormat(xlsx) = %v, %v", f, err)
	}

	png := writeFile(t, dir, "2014-chart.csv", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	if _, err := DetectFormat(png); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for png content, got %v", err)
	}
}

func TestTally_SeriesMergesSlugCollisions(t *testing.T) {
	tally := NewTally()
	tally.Add("Assault/Battery", 2014)
	tally.Add("Assault Battery", 2014)
	tally.Add("Assault Battery", 2015)
	tally.Add("   ", 2015)
	tally.Add("!!!", 2015)

	series := tally.Series()
	if len(series) != 1 {
		t.Fatalf("expected one merged series, got %+v", series)
	}
	if series[0].Slug != "assault-battery" {
		t.Errorf("unexpected slug %q", series[0].Slug)
	}
	expected := []extract.Row{{Year: "2014", Count: "2"}, {Year: "2015", Count: "1"}}
	if !reflect.DeepEqual(series[0].Rows, expected) {
		t.Errorf("expected %v, got %v", expected, series[0].Rows)
	}
	if tally.Skipped != 1 {
		t.Errorf("expected 1 blank category skipped, got %d", tally.Skipped)
	}
}

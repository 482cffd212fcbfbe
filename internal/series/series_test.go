package series

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ppiankov/crimestats/internal/extract"
)

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Robbery":                   "robbery",
		"Larceny/Theft & Fraud":     "larceny-theft-and-fraud",
		"  Aggravated Assault ":     "aggravated-assault",
		"Motor Vehicle Theft (MVT)": "motor-vehicle-theft-mvt",
		"sex_offenses":              "sex_offenses",
		"Homicide!":                 "homicide",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
	if FileName("Grand Theft Auto") != "grand-theft-auto.csv" {
		t.Errorf("unexpected file name %q", FileName("Grand Theft Auto"))
	}
}

func TestWriteResult_Rows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output", "robbery.csv")
	res := extract.Result{Rows: []extract.Row{{Year: "2015", Count: "98"}, {Year: "2014", Count: "120"}}}

	if err := WriteResult(path, res); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Extraction order is kept
	if string(data) != "year,count\n2015,98\n2014,120\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestWriteResult_Fallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "homicide.csv")
	res := extract.Result{Response: "I cannot read this chart, sorry."}

	if err := WriteResult(path, res); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}

	header, records, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !reflect.DeepEqual(header, []string{"response"}) {
		t.Errorf("unexpected header %v", header)
	}
	if len(records) != 1 || records[0][0] != res.Response {
		t.Errorf("unexpected records %v", records)
	}

	rows, fallback, err := ReadRows(path)
	if err != nil || !fallback || rows != nil {
		t.Errorf("ReadRows on fallback file = %v, %v, %v", rows, fallback, err)
	}
}

func TestWriteSeries_SortsByYear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burglary.csv")
	rows := []extract.Row{
		{Year: "2019", Count: "ERROR"},
		{Year: "2014", Count: "300"},
		{Year: "2016", Count: "280"},
	}

	if err := WriteSeries(path, rows); err != nil {
		t.Fatalf("WriteSeries failed: %v", err)
	}

	got, fallback, err := ReadRows(path)
	if err != nil || fallback {
		t.Fatalf("ReadRows failed: %v (fallback %v)", err, fallback)
	}
	expected := []extract.Row{
		{Year: "2014", Count: "300"},
		{Year: "2016", Count: "280"},
		{Year: "2019", Count: "ERROR"},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}

	// Input is not reordered
	if rows[0].Year != "2019" {
		t.Error("WriteSeries must not modify its input")
	}
}

func TestSortRows_NonNumericLast(t *testing.T) {
	got := SortRows([]extract.Row{{Year: "n/a"}, {Year: "2020"}, {Year: "2011"}})
	if got[0].Year != "2011" || got[1].Year != "2020" || got[2].Year != "n/a" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadRows_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.csv")
	if err := os.WriteFile(path, []byte("only\n1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadRows(path); err == nil {
		t.Error("expected error for single non-response column")
	}
}

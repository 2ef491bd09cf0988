package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elanleads/go-scrape-leads/models"
)

func sampleLead() *models.Lead {
	return &models.Lead{
		Name:      "Orxan M.",
		Phone:     "504787463",
		Website:   "tezbazar.az",
		Link:      "https://tezbazar.az/elan/ev-12345.html",
		ScrapedAt: time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC),
		RawData:   `{"title":"3 otaqlı mənzil"}`,
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Lead{sampleLead()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "name" || records[0][1] != "phone" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][1] != "504787463" {
		t.Fatalf("phone=%q, want 504787463", records[1][1])
	}
	if records[1][4] != "2026-08-20T10:30:00Z" {
		t.Fatalf("scraped_at=%q", records[1][4])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leads.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.Lead{sampleLead()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("expected one JSONL line")
	}

	var lead models.Lead
	if err := json.Unmarshal(scanner.Bytes(), &lead); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if lead.Phone != "504787463" {
		t.Fatalf("phone=%q, want 504787463", lead.Phone)
	}
	if lead.Name != "Orxan M." {
		t.Fatalf("name=%q", lead.Name)
	}
	if scanner.Scan() {
		t.Fatalf("unexpected extra line: %q", scanner.Text())
	}
}

func TestDualWriterWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "leads")

	writer, err := NewDualWriter(base+".csv", base+".json")
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.Lead{sampleLead()}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	for _, path := range []string{base + ".csv", base + ".json"} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}
}

func TestNewWriterSelectsFormat(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		format string
		valid  bool
	}{
		{"csv", true},
		{"json", true},
		{"dual", true},
		{"none", true},
		{"xml", false},
	}

	for _, tc := range cases {
		writer, err := NewWriter(tc.format, filepath.Join(dir, "out-"+tc.format))
		if tc.valid && err != nil {
			t.Fatalf("format %q: unexpected error %v", tc.format, err)
		}
		if !tc.valid {
			if err == nil {
				t.Fatalf("format %q: expected error", tc.format)
			}
			continue
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("format %q: close: %v", tc.format, err)
		}
	}
}

func TestCSVWriterCreatesMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "leads.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat created file: %v", err)
	}
}

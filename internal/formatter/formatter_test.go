package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/pxm/internal/models"
	tu "github.com/desertthunder/pxm/internal/testing"
)

func fixtureRuns() []*models.MigrationRun {
	started := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	finished := started.Add(95 * time.Second)
	return []*models.MigrationRun{
		{
			RunID:          "b7e3c1d2-0000-4000-8000-000000000002",
			Sequence:       2,
			Source:         "Flickr",
			Destination:    "Google Photos",
			Status:         models.RunFailed,
			PagesTotal:     3,
			PagesMigrated:  1,
			PagesSkipped:   1,
			PhotosUploaded: 50,
			ErrorMessage:   "page unrecoverable: page 1",
			StartedAt:      started,
			FinishedAt:     &finished,
		},
		{
			RunID:       "a1f2e3d4-0000-4000-8000-000000000001",
			Sequence:    1,
			Source:      "Flickr",
			Destination: "Google Photos",
			Status:      models.RunRunning,
			PagesTotal:  3,
			StartedAt:   started.Add(-time.Hour),
		},
	}
}

func fixtureReport() RunReport {
	run := fixtureRuns()[0]
	return RunReport{
		Run: run,
		Pages: []models.PageOutcome{
			{RunID: run.RunID, Page: 3, Outcome: models.OutcomeSkipped, CreatedAt: run.StartedAt},
			{RunID: run.RunID, Page: 2, Outcome: models.OutcomeRetired, Photos: 50, CreatedAt: run.StartedAt},
			{RunID: run.RunID, Page: 1, Outcome: models.OutcomeFailed, Photos: 50, ErrorMessage: "partial batch", CreatedAt: run.StartedAt},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"json", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRuns(t *testing.T) {
	runs := fixtureRuns()

	t.Run("CSV", func(t *testing.T) {
		data, err := Runs(runs, FormatCSV)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "Sequence,RunID,Status,Pages,Migrated,Skipped,Photos,Started,Finished,Error" {
			t.Errorf("unexpected header: %s", lines[0])
		}
		if !strings.Contains(lines[1], "failed") || !strings.Contains(lines[1], "page unrecoverable: page 1") {
			t.Errorf("unexpected first row: %s", lines[1])
		}
		if !strings.HasSuffix(lines[2], ",,") {
			t.Errorf("running run should have empty finished and error: %s", lines[2])
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := Runs(runs, FormatJSON)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0]["status"] != "failed" {
			t.Errorf("unexpected JSON: %s", data)
		}
		if _, ok := decoded[1]["finished_at"]; ok {
			t.Error("running run should omit finished_at")
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := Runs(runs, FormatMarkdown)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "# Migration runs") || !strings.Contains(output, "| 2 | `b7e3c1d2` | failed | 1/3 |") {
			t.Errorf("unexpected markdown:\n%s", output)
		}
	})

	t.Run("Text", func(t *testing.T) {
		data, err := Runs(runs, FormatText)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "#2") || !strings.Contains(output, "error: page unrecoverable") {
			t.Errorf("unexpected text:\n%s", output)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		for _, f := range []Format{FormatText, FormatMarkdown} {
			data, err := Runs(nil, f)
			if err != nil {
				t.Fatalf("Runs(%s) failed: %v", f, err)
			}
			if !strings.Contains(string(data), "No runs recorded.") {
				t.Errorf("Runs(%s) = %q", f, data)
			}
		}
	})
}

func TestReport(t *testing.T) {
	report := fixtureReport()

	t.Run("Text", func(t *testing.T) {
		data, err := Report(report, FormatText)
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"Route: Flickr -> Google Photos", "Status: failed", "page 1", "partial batch"} {
			if !strings.Contains(output, want) {
				t.Errorf("text report missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("Markdown", func(t *testing.T) {
		data, err := Report(report, FormatMarkdown)
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"# Run #2", "**Duration**: 1m35s", "- page 2: retired (50 photos)", "> **Error**"} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown report missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("CSV", func(t *testing.T) {
		data, err := Report(report, FormatCSV)
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		if !strings.HasPrefix(string(data), "Page,Outcome,Photos,At,Error\n3,skipped,0,") {
			t.Errorf("unexpected CSV:\n%s", data)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := Report(report, FormatJSON)
		if err != nil {
			t.Fatalf("Report failed: %v", err)
		}
		var decoded struct {
			RunID string `json:"run_id"`
			Pages []struct {
				Page    int    `json:"page"`
				Outcome string `json:"outcome"`
			} `json:"pages"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.RunID != report.Run.RunID || len(decoded.Pages) != 3 || decoded.Pages[2].Outcome != "failed" {
			t.Errorf("unexpected JSON: %s", data)
		}
	})

	t.Run("NilRun", func(t *testing.T) {
		if _, err := Report(RunReport{}, FormatText); err == nil {
			t.Error("expected error for report without a run")
		}
	})
}

func TestWriteReport(t *testing.T) {
	report := fixtureReport()

	t.Run("WithDefaultPath", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tempDir)
		defer tu.MustChdir(t, originalDir)

		path, err := WriteReport(report, FormatMarkdown, "")
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if path != "run_2.md" {
			t.Errorf("Expected 'run_2.md', got '%s'", path)
		}
		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "# Run #2") {
			t.Errorf("report file missing title")
		}
	})

	t.Run("WithCustomPath", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "latest.json")

		got, err := WriteReport(report, FormatJSON, path)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != path {
			t.Errorf("Expected %s, got %s", path, got)
		}
		tu.AssertDirExists(t, filepath.Dir(path))
		tu.AssertFileExists(t, path)
	})
}

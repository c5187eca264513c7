// package formatter renders the run journal (runs and their page outcomes) as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/pxm/internal/models"
)

// Format names an output format accepted by [Runs] and [Report].
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user supplied format name. "md" is accepted for markdown; empty means text.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format %q (text, json, csv, markdown)", s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	default:
		return ".txt"
	}
}

// RunReport is one run with its page outcomes.
type RunReport struct {
	Run   *models.MigrationRun
	Pages []models.PageOutcome
}

type runJSON struct {
	RunID          string     `json:"run_id"`
	Sequence       int        `json:"sequence"`
	Source         string     `json:"source"`
	Destination    string     `json:"destination"`
	Status         string     `json:"status"`
	PagesTotal     int        `json:"pages_total"`
	PagesMigrated  int        `json:"pages_migrated"`
	PagesSkipped   int        `json:"pages_skipped"`
	PhotosUploaded int        `json:"photos_uploaded"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Pages          []pageJSON `json:"pages,omitempty"`
}

type pageJSON struct {
	Page    int       `json:"page"`
	Outcome string    `json:"outcome"`
	Photos  int       `json:"photos"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

func toRunJSON(run *models.MigrationRun, pages []models.PageOutcome) runJSON {
	out := runJSON{
		RunID:          run.RunID,
		Sequence:       run.Sequence,
		Source:         run.Source,
		Destination:    run.Destination,
		Status:         string(run.Status),
		PagesTotal:     run.PagesTotal,
		PagesMigrated:  run.PagesMigrated,
		PagesSkipped:   run.PagesSkipped,
		PhotosUploaded: run.PhotosUploaded,
		Error:          run.ErrorMessage,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
	for _, p := range pages {
		out.Pages = append(out.Pages, pageJSON{Page: p.Page, Outcome: string(p.Outcome), Photos: p.Photos, Error: p.ErrorMessage, At: p.CreatedAt})
	}
	return out
}

// Runs renders a run history listing in format f.
func Runs(runs []*models.MigrationRun, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		out := make([]runJSON, len(runs))
		for i, run := range runs {
			out[i] = toRunJSON(run, nil)
		}
		return json.MarshalIndent(out, "", "  ")
	case FormatCSV:
		return RunsToCSV(runs)
	case FormatMarkdown:
		return RunsToMarkdown(runs)
	default:
		return RunsToText(runs)
	}
}

// Report renders a single run with its page outcomes in format f.
func Report(report RunReport, f Format) ([]byte, error) {
	if report.Run == nil {
		return nil, fmt.Errorf("report has no run")
	}
	switch f {
	case FormatJSON:
		return json.MarshalIndent(toRunJSON(report.Run, report.Pages), "", "  ")
	case FormatCSV:
		return PagesToCSV(report.Pages)
	case FormatMarkdown:
		return ReportToMarkdown(report)
	default:
		return ReportToText(report)
	}
}

// RunsToCSV converts runs to CSV with columns: Sequence, RunID, Status, Pages, Migrated, Skipped, Photos, Started, Finished, Error
func RunsToCSV(runs []*models.MigrationRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "RunID", "Status", "Pages", "Migrated", "Skipped", "Photos", "Started", "Finished", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		record := []string{
			strconv.Itoa(run.Sequence),
			run.RunID,
			string(run.Status),
			strconv.Itoa(run.PagesTotal),
			strconv.Itoa(run.PagesMigrated),
			strconv.Itoa(run.PagesSkipped),
			strconv.Itoa(run.PhotosUploaded),
			run.StartedAt.Format(time.RFC3339),
			formatFinished(run.FinishedAt, time.RFC3339),
			run.ErrorMessage,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// PagesToCSV converts page outcomes to CSV with columns: Page, Outcome, Photos, At, Error
func PagesToCSV(pages []models.PageOutcome) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Page", "Outcome", "Photos", "At", "Error"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, p := range pages {
		record := []string{strconv.Itoa(p.Page), string(p.Outcome), strconv.Itoa(p.Photos), p.CreatedAt.Format(time.RFC3339), p.ErrorMessage}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// RunsToMarkdown renders runs as a Markdown table.
func RunsToMarkdown(runs []*models.MigrationRun) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Migration runs\n\n")
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Run | Status | Migrated | Skipped | Photos | Started |\n")
	buf.WriteString("|---|-----|--------|----------|---------|--------|---------|\n")
	for _, run := range runs {
		fmt.Fprintf(&buf, "| %d | `%s` | %s | %d/%d | %d | %d | %s |\n",
			run.Sequence, shortID(run.RunID), run.Status, run.PagesMigrated, run.PagesTotal,
			run.PagesSkipped, run.PhotosUploaded, run.StartedAt.Format(time.DateTime))
	}
	return buf.Bytes(), nil
}

// ReportToMarkdown renders one run and its page outcomes as Markdown.
func ReportToMarkdown(report RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := report.Run

	fmt.Fprintf(&buf, "# Run #%d\n\n", run.Sequence)
	fmt.Fprintf(&buf, "**Run**: `%s`\n", run.RunID)
	fmt.Fprintf(&buf, "**Route**: %s → %s\n", run.Source, run.Destination)
	fmt.Fprintf(&buf, "**Status**: %s\n", run.Status)
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt.Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(&buf, "**Duration**: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(&buf, "**Pages**: %d migrated, %d skipped of %d\n", run.PagesMigrated, run.PagesSkipped, run.PagesTotal)
	fmt.Fprintf(&buf, "**Photos uploaded**: %d\n", run.PhotosUploaded)
	if run.ErrorMessage != "" {
		fmt.Fprintf(&buf, "\n> **Error**: %s\n", run.ErrorMessage)
	}

	if len(report.Pages) > 0 {
		buf.WriteString("\n## Pages\n\n")
		for _, p := range report.Pages {
			fmt.Fprintf(&buf, "- page %d: %s", p.Page, p.Outcome)
			if p.Photos > 0 {
				fmt.Fprintf(&buf, " (%d photos)", p.Photos)
			}
			if p.ErrorMessage != "" {
				fmt.Fprintf(&buf, " %s", p.ErrorMessage)
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// RunsToText renders runs one per line.
func RunsToText(runs []*models.MigrationRun) ([]byte, error) {
	var buf bytes.Buffer

	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes(), nil
	}
	for _, run := range runs {
		fmt.Fprintf(&buf, "#%-4d %s  %-7s  pages %d/%d (skipped %d)  photos %d  %s\n",
			run.Sequence, shortID(run.RunID), run.Status, run.PagesMigrated, run.PagesTotal,
			run.PagesSkipped, run.PhotosUploaded, run.StartedAt.Format(time.DateTime))
		if run.ErrorMessage != "" {
			fmt.Fprintf(&buf, "      error: %s\n", run.ErrorMessage)
		}
	}
	return buf.Bytes(), nil
}

// ReportToText renders one run and its page outcomes as plain text.
func ReportToText(report RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := report.Run

	fmt.Fprintf(&buf, "Run: #%d %s\n", run.Sequence, run.RunID)
	fmt.Fprintf(&buf, "Route: %s -> %s\n", run.Source, run.Destination)
	fmt.Fprintf(&buf, "Status: %s\n", run.Status)
	fmt.Fprintf(&buf, "Started: %s\n", run.StartedAt.Format(time.DateTime))
	fmt.Fprintf(&buf, "Finished: %s\n", formatFinished(run.FinishedAt, time.DateTime))
	fmt.Fprintf(&buf, "Pages: %d migrated, %d skipped of %d\n", run.PagesMigrated, run.PagesSkipped, run.PagesTotal)
	fmt.Fprintf(&buf, "Photos uploaded: %d\n", run.PhotosUploaded)
	if run.ErrorMessage != "" {
		fmt.Fprintf(&buf, "Error: %s\n", run.ErrorMessage)
	}

	if len(report.Pages) > 0 {
		buf.WriteString("\n")
		for _, p := range report.Pages {
			fmt.Fprintf(&buf, "  page %-5d %-10s %3d photos", p.Page, p.Outcome, p.Photos)
			if p.ErrorMessage != "" {
				fmt.Fprintf(&buf, "  %s", p.ErrorMessage)
			}
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}

// WriteReport writes report to a file in format f.
//
// Defaults to run_{sequence}{ext} in the current directory.
func WriteReport(report RunReport, f Format, path string) (string, error) {
	if report.Run == nil {
		return "", fmt.Errorf("report has no run")
	}
	if path == "" {
		path = fmt.Sprintf("run_%d%s", report.Run.Sequence, f.Extension())
	}

	data, err := Report(report, f)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func formatFinished(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

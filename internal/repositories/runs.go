package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/shared"
)

// ErrRunNotFound is returned when no run matches an id.
var ErrRunNotFound = errors.New("run not found")

// RunRepository implements models.Repository[*models.MigrationRun] for the run journal.
//
// It also stores the per-page outcomes of each run.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, sequence, source, destination, status, pages_total,
	pages_migrated, pages_skipped, photos_uploaded, error_message,
	started_at, finished_at
`

// Create inserts a new run with a generated sequence. An empty RunID gets a generated one.
func (r *RunRepository) Create(run *models.MigrationRun) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.RunID == "" {
		run.RunID = shared.GenerateID()
	}
	run.Sequence = sequence
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.RunID,
		run.Sequence,
		run.Source,
		run.Destination,
		string(run.Status),
		run.PagesTotal,
		run.PagesMigrated,
		run.PagesSkipped,
		run.PhotosUploaded,
		nullString(run.ErrorMessage),
		run.StartedAt,
		nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	return scanRun(r.db.QueryRow(query, id))
}

// Latest returns the most recently started run.
func (r *RunRepository) Latest() (*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY sequence DESC LIMIT 1`
	return scanRun(r.db.QueryRow(query))
}

// Update writes the run's status, counters and finish time.
func (r *RunRepository) Update(run *models.MigrationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE runs
		SET status = ?, pages_total = ?, pages_migrated = ?, pages_skipped = ?,
			photos_uploaded = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(run.Status),
		run.PagesTotal,
		run.PagesMigrated,
		run.PagesSkipped,
		run.PhotosUploaded,
		nullString(run.ErrorMessage),
		nullTime(run.FinishedAt),
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.RunID)
	}

	return nil
}

// Delete removes a run and, through the foreign key, its page outcomes.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string or models.RunStatus), "source" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.MigrationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// RecordPage appends a page outcome to a run.
func (r *RunRepository) RecordPage(outcome models.PageOutcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO page_outcomes (run_id, page, outcome, photos, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		outcome.RunID,
		outcome.Page,
		string(outcome.Outcome),
		outcome.Photos,
		nullString(outcome.ErrorMessage),
		outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert page outcome: %w", err)
	}
	return nil
}

// Outcomes returns a run's page outcomes in the order they were recorded.
func (r *RunRepository) Outcomes(runID string) ([]models.PageOutcome, error) {
	query := `
		SELECT run_id, page, outcome, photos, error_message, created_at
		FROM page_outcomes
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list page outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []models.PageOutcome{}
	for rows.Next() {
		var (
			o            models.PageOutcome
			outcome      string
			errorMessage sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Page, &outcome, &o.Photos, &errorMessage, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page outcome: %w", err)
		}
		o.Outcome = models.Outcome(outcome)
		if errorMessage.Valid {
			o.ErrorMessage = errorMessage.String
		}
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating page outcomes: %w", err)
	}

	return outcomes, nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.MigrationRun, error) {
	var (
		run          models.MigrationRun
		status       string
		errorMessage sql.NullString
		finishedAt   sql.NullTime
	)

	err := row.Scan(
		&run.RunID, &run.Sequence, &run.Source, &run.Destination, &status,
		&run.PagesTotal, &run.PagesMigrated, &run.PagesSkipped, &run.PhotosUploaded,
		&errorMessage, &run.StartedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = models.RunStatus(status)
	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

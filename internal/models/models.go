// package models defines the data model for the photo migration tool
package models

import (
	"fmt"
	"strings"
	"time"
)

// PageSize is the fixed number of source items per page.
const PageSize = 50

// PageCount returns how many pages hold total items. An empty library has no pages.
func PageCount(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// StagedPhoto is a locally cached source photo with the metadata carried to the destination.
//
// LocalPath exists on disk from the moment the photo is staged until its page is retired.
type StagedPhoto struct {
	SourceID    string    `json:"source_id"`
	DisplayName string    `json:"display_name"`
	CapturedAt  time.Time `json:"captured_at"`
	Tags        []string  `json:"tags"`
	Albums      []string  `json:"albums"`
	LocalPath   string    `json:"local_path"`
}

// Description is the destination description: the tags joined by single spaces.
func (p StagedPhoto) Description() string {
	return strings.Join(p.Tags, " ")
}

// FileName is the name the destination shows for the uploaded file.
func (p StagedPhoto) FileName() string {
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		name = p.SourceID
	}
	if !strings.HasSuffix(strings.ToLower(name), ".jpg") {
		name += ".jpg"
	}
	return name
}

// UploadToken is the ephemeral handle returned by a raw byte upload.
type UploadToken string

// Rendition is one entry of a source photo's size list.
type Rendition struct {
	Label string
	URL   string
	Media string
}

// Album is a destination album.
type Album struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NewMediaItem is one entry of a batch-create request.
type NewMediaItem struct {
	Description string
	FileName    string
	Token       UploadToken
}

// MediaItemResult is the destination's answer for one [NewMediaItem].
type MediaItemResult struct {
	Token         UploadToken
	MediaItemID   string
	StatusCode    int
	StatusMessage string
}

// OK reports whether the item was created.
func (r MediaItemResult) OK() bool {
	return r.MediaItemID != "" && r.StatusCode == 0
}

// RunStatus is the lifecycle state of a [MigrationRun].
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// MigrationRun is the journal record of one migration invocation.
type MigrationRun struct {
	RunID          string
	Sequence       int
	Source         string
	Destination    string
	Status         RunStatus
	PagesTotal     int
	PagesMigrated  int
	PagesSkipped   int
	PhotosUploaded int
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

func (r *MigrationRun) ID() string           { return r.RunID }
func (r *MigrationRun) CreatedAt() time.Time { return r.StartedAt }

func (r *MigrationRun) UpdatedAt() time.Time {
	if r.FinishedAt != nil {
		return *r.FinishedAt
	}
	return r.StartedAt
}

func (r *MigrationRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.Source == "" || r.Destination == "" {
		return fmt.Errorf("source and destination are required")
	}
	switch r.Status {
	case RunRunning, RunDone, RunFailed:
	default:
		return fmt.Errorf("invalid run status: %q", r.Status)
	}
	if r.PagesTotal < 0 || r.PagesMigrated < 0 || r.PagesSkipped < 0 || r.PhotosUploaded < 0 {
		return fmt.Errorf("run counters cannot be negative")
	}
	return nil
}

// Outcome is what happened to one page during a run.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeResumed    Outcome = "resumed"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeRetired    Outcome = "retired"
	OutcomeFailed     Outcome = "failed"
)

// PageOutcome is the journal record of one page step.
type PageOutcome struct {
	RunID        string
	Page         int
	Outcome      Outcome
	Photos       int
	ErrorMessage string
	CreatedAt    time.Time
}

func (o PageOutcome) Validate() error {
	if o.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if o.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", o.Page)
	}
	switch o.Outcome {
	case OutcomeDownloaded, OutcomeResumed, OutcomeSkipped, OutcomeRetired, OutcomeFailed:
	default:
		return fmt.Errorf("invalid page outcome: %q", o.Outcome)
	}
	return nil
}

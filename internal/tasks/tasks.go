package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/desertthunder/pxm/internal/stage"
)

// State is the engine's position in the migration state machine.
type State int

const (
	Idle State = iota
	ComputingPageRange
	CheckStage
	Download
	Upload
	Retire
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ComputingPageRange:
		return "computing_page_range"
	case CheckStage:
		return "check_stage"
	case Download:
		return "download"
	case Upload:
		return "upload"
	case Retire:
		return "retire"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// RunRecorder persists the run journal. Failures are logged and never stop a migration.
type RunRecorder interface {
	Create(run *models.MigrationRun) error
	Update(run *models.MigrationRun) error
	RecordPage(outcome models.PageOutcome) error
}

// RunOptions restricts and shapes a single run.
type RunOptions struct {
	FromPage int  // Lowest page to process (0: first page)
	ToPage   int  // Highest page to process (0: last page)
	DryRun   bool // Inspect stage state only; no downloads, uploads or deletions
}

// PageReport describes what happened to one page.
type PageReport struct {
	Page    int
	State   stage.PageState // State found on disk before processing
	Outcome models.Outcome
	Photos  int
	Error   error
}

// MigrationResult summarizes a run.
type MigrationResult struct {
	RunID          string
	PhotosTotal    int
	PageCount      int
	PagesMigrated  int
	PagesSkipped   int
	PhotosUploaded int
	AlbumsCreated  int
	Pages          []PageReport
}

// EngineConfig wires a [MigrationEngine].
type EngineConfig struct {
	Source      services.Source
	Destination services.Destination
	Stage       *stage.Stage
	Stamper     DateStamper
	Reader      ReaderOptions
	Recorder    RunRecorder // optional
	Logger      *log.Logger
}

// MigrationEngine runs the migration state machine:
//
//	Idle -> ComputingPageRange -> for each page, highest first: CheckStage -> Download -> Upload -> Retire -> Done
//
// Any error moves the engine to Failed and aborts the run, leaving the page's stage directory as it is.
type MigrationEngine struct {
	source   services.Source
	dest     services.Destination
	stage    *stage.Stage
	reader   *SourceReader
	writer   *DestinationWriter
	albums   *AlbumIndex
	recorder RunRecorder
	logger   *log.Logger
	state    State
	runID    string
}

// NewMigrationEngine creates an engine from cfg.
func NewMigrationEngine(cfg EngineConfig) (*MigrationEngine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: source service not initialized", shared.ErrServiceUnavailable)
	}
	if cfg.Destination == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}
	if cfg.Stage == nil {
		return nil, fmt.Errorf("%w: stage not configured", shared.ErrInvalidConfig)
	}
	if cfg.Stamper == nil {
		return nil, fmt.Errorf("%w: date stamper not configured", shared.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}

	albums := NewAlbumIndex(cfg.Destination, cfg.Logger)
	return &MigrationEngine{
		source:   cfg.Source,
		dest:     cfg.Destination,
		stage:    cfg.Stage,
		reader:   NewSourceReader(cfg.Source, cfg.Stage, cfg.Stamper, cfg.Reader, cfg.Logger),
		writer:   NewDestinationWriter(cfg.Destination, albums, cfg.Logger),
		albums:   albums,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		state:    Idle,
	}, nil
}

// State returns the engine's current state.
func (e *MigrationEngine) State() State { return e.state }

// sendProgress sends a progress update through the channel without blocking.
func (e *MigrationEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run migrates every page in range, highest page first.
func (e *MigrationEngine) Run(ctx context.Context, opts RunOptions, progress chan<- ProgressUpdate) (*MigrationResult, error) {
	run := &models.MigrationRun{
		RunID:       shared.GenerateID(),
		Source:      e.source.Name(),
		Destination: e.dest.Name(),
		Status:      models.RunRunning,
		StartedAt:   time.Now(),
	}
	result := &MigrationResult{RunID: run.RunID}
	e.runID = run.RunID
	logger := shared.WithLogger(e.logger, "run", run.RunID[:8])

	e.state = ComputingPageRange

	if !opts.DryRun {
		e.record(logger, func(r RunRecorder) error { return r.Create(run) })

		if err := e.albums.Load(ctx); err != nil {
			return result, e.fail(logger, run, result, 0, err)
		}
	}

	total, err := e.source.PhotoCount(ctx)
	if err != nil {
		return result, e.fail(logger, run, result, 0, fmt.Errorf("failed to count source photos: %w", err))
	}

	result.PhotosTotal = total
	result.PageCount = models.PageCount(total)
	low, high := pageRange(result.PageCount, opts)
	steps := max(high-low+1, 0)

	run.PagesTotal = steps
	logger.Info("computed page range", "photos", total, "pages", result.PageCount, "from", high, "to", low)
	e.sendProgress(progress, computePagesUpdate(total, result.PageCount))

	step := 0
	for page := high; page >= low; page-- {
		step++
		if err := ctx.Err(); err != nil {
			return result, e.fail(logger, run, result, page, err)
		}

		var report PageReport
		if opts.DryRun {
			report, err = e.inspectPage(page)
		} else {
			report, err = e.processPage(ctx, shared.WithLogger(logger, "page", page), page, step, steps, result.PageCount, progress)
		}
		result.Pages = append(result.Pages, report)
		if err != nil {
			return result, e.fail(logger, run, result, page, err)
		}

		if opts.DryRun {
			continue
		}
		switch report.Outcome {
		case models.OutcomeSkipped:
			result.PagesSkipped++
		case models.OutcomeRetired:
			result.PagesMigrated++
			result.PhotosUploaded += report.Photos
		}
		run.PagesMigrated = result.PagesMigrated
		run.PagesSkipped = result.PagesSkipped
		run.PhotosUploaded = result.PhotosUploaded
	}

	e.state = Done
	result.AlbumsCreated = e.albums.Created()

	if !opts.DryRun {
		finished := time.Now()
		run.Status = models.RunDone
		run.FinishedAt = &finished
		e.record(logger, func(r RunRecorder) error { return r.Update(run) })
	}

	logger.Info("migration finished", "migrated", result.PagesMigrated, "skipped", result.PagesSkipped, "photos", result.PhotosUploaded)
	e.sendProgress(progress, completeUpdate(result))
	return result, nil
}

// processPage takes one page from its on-disk state to retired.
func (e *MigrationEngine) processPage(ctx context.Context, logger *log.Logger, page, step, steps, pages int, progress chan<- ProgressUpdate) (PageReport, error) {
	report := PageReport{Page: page}

	e.state = CheckStage
	state, err := e.stage.Inspect(page)
	if err != nil {
		return report, err
	}
	report.State = state
	e.sendProgress(progress, processingPageUpdate(step, steps, page, pages, state))
	logger.Info(fmt.Sprintf("processing page %d of %d", page, pages), "state", state)

	var photos []models.StagedPhoto
	switch state {
	case stage.Retired:
		report.Outcome = models.OutcomeSkipped
		e.recordPage(logger, report)
		e.sendProgress(progress, skipPageUpdate(step, steps, page))
		return report, nil

	case stage.Missing, stage.Pending:
		e.state = Download
		e.sendProgress(progress, downloadPageUpdate(step, steps, page, state == stage.Pending))
		photos, err = e.reader.FetchPage(ctx, page)
		if err != nil {
			return report, err
		}
		report.Outcome = models.OutcomeDownloaded
		if state == stage.Pending {
			report.Outcome = models.OutcomeResumed
		}

	case stage.Staged:
		photos, err = e.stage.Photos(page)
		if err != nil {
			return report, err
		}
		report.Outcome = models.OutcomeResumed
		logger.Info("page already staged, uploading from disk", "photos", len(photos))
	}
	report.Photos = len(photos)
	e.recordPage(logger, report)

	e.state = Upload
	if len(photos) > 0 {
		e.sendProgress(progress, uploadPageUpdate(step, steps, page, len(photos)))
		if _, err := e.writer.WritePage(ctx, photos); err != nil {
			return report, err
		}
	}

	e.state = Retire
	if err := e.stage.Retire(page); err != nil {
		return report, err
	}
	report.Outcome = models.OutcomeRetired
	e.recordPage(logger, report)
	e.sendProgress(progress, retirePageUpdate(step, steps, page, len(photos)))
	return report, nil
}

// inspectPage reports the planned action for a page without touching it.
func (e *MigrationEngine) inspectPage(page int) (PageReport, error) {
	state, err := e.stage.Inspect(page)
	if err != nil {
		return PageReport{Page: page}, err
	}

	report := PageReport{Page: page, State: state}
	switch state {
	case stage.Retired:
		report.Outcome = models.OutcomeSkipped
	case stage.Missing:
		report.Outcome = models.OutcomeDownloaded
	default:
		report.Outcome = models.OutcomeResumed
	}
	if state == stage.Staged || state == stage.Pending {
		if files, err := e.stage.Files(page); err == nil {
			report.Photos = len(files)
		}
	}
	return report, nil
}

// fail moves the engine to Failed and journals the error.
func (e *MigrationEngine) fail(logger *log.Logger, run *models.MigrationRun, result *MigrationResult, page int, err error) error {
	e.state = Failed
	result.AlbumsCreated = e.albums.Created()
	logger.Error("migration aborted", "page", page, "error", err)

	if page > 0 {
		if n := len(result.Pages); n > 0 && result.Pages[n-1].Page == page {
			result.Pages[n-1].Outcome = models.OutcomeFailed
			result.Pages[n-1].Error = err
			e.recordPage(logger, result.Pages[n-1])
		} else {
			e.recordPage(logger, PageReport{Page: page, Outcome: models.OutcomeFailed, Error: err})
		}
	}

	finished := time.Now()
	run.Status = models.RunFailed
	run.ErrorMessage = err.Error()
	run.FinishedAt = &finished
	e.record(logger, func(r RunRecorder) error { return r.Update(run) })
	return err
}

func (e *MigrationEngine) record(logger *log.Logger, fn func(RunRecorder) error) {
	if e.recorder == nil {
		return
	}
	if err := fn(e.recorder); err != nil {
		logger.Warn("failed to write run journal", "error", err)
	}
}

func (e *MigrationEngine) recordPage(logger *log.Logger, report PageReport) {
	if e.recorder == nil || report.Outcome == "" {
		return
	}
	outcome := models.PageOutcome{
		RunID:     e.runID,
		Page:      report.Page,
		Outcome:   report.Outcome,
		Photos:    report.Photos,
		CreatedAt: time.Now(),
	}
	if report.Error != nil {
		outcome.ErrorMessage = report.Error.Error()
	}
	e.record(logger, func(r RunRecorder) error { return r.RecordPage(outcome) })
}

// pageRange clamps the options to [1, pages].
func pageRange(pages int, opts RunOptions) (low, high int) {
	low, high = 1, pages
	if opts.FromPage > low {
		low = opts.FromPage
	}
	if opts.ToPage > 0 && opts.ToPage < high {
		high = opts.ToPage
	}
	return low, high
}

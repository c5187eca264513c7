package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/tasks"
)

// recentEvents is how many progress messages the migrate view keeps on screen.
const recentEvents = 6

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PageListView ViewState = iota
	ConfirmView
	MigrateView
	ResultView
)

// Migrator runs the migration. [tasks.MigrationEngine] implements it.
type Migrator interface {
	Run(ctx context.Context, opts tasks.RunOptions, progress chan<- tasks.ProgressUpdate) (*tasks.MigrationResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	migrator Migrator
	opts     tasks.RunOptions
	width    int
	height   int
	scanned  bool
	pageList list.Model
	scan     *tasks.MigrationResult
	progCh   chan tasks.ProgressUpdate
	doneCh   chan runOutcome
	progress tasks.ProgressUpdate
	events   []string
	bar      progress.Model
	spinner  spinner.Model
	result   *tasks.MigrationResult
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model that migrates the pages selected by opts.
func NewModel(ctx context.Context, migrator Migrator, opts tasks.RunOptions) *Model {
	opts.DryRun = false
	return &Model{
		ctx:      ctx,
		view:     PageListView,
		migrator: migrator,
		opts:     opts,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init scans the stage directory to show what a run would do.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scanPages())
}

// Err returns the error that ended the last scan or migration, if any.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.scanned {
			m.pageList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PageListView:
			return m.handlePageListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case MigrateView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.scanned && m.view != MigrateView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPagesScanned:
		outcome := msg.data.(runOutcome)
		m.scanned = true
		m.err = outcome.err
		m.scan = outcome.result

		var items []list.Item
		if outcome.result != nil {
			items = make([]list.Item, len(outcome.result.Pages))
			for i, report := range outcome.result.Pages {
				items[i] = pageItem{report: report}
			}
		}
		m.pageList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.pageList.Title = "Flickr pages"
		m.pageList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		m.events = append(m.events, m.progress.Message)
		if len(m.events) > recentEvents {
			m.events = m.events[len(m.events)-recentEvents:]
		}
		return m, m.waitForProgress()

	case MsgMigrationComplete:
		outcome := msg.data.(runOutcome)
		m.result = outcome.result
		m.err = outcome.err
		m.view = ResultView
		m.progCh = nil
		m.doneCh = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePageListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.scanned && m.pageList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.pageList, cmd = m.pageList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if m.scanned && m.err == nil {
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.rescan):
		return m, m.rescan()
	}
	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = MigrateView
		return m, tea.Batch(m.spinner.Tick, m.startMigration())
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = PageListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.rescan):
		m.view = PageListView
		m.result = nil
		m.events = nil
		m.progress = tasks.ProgressUpdate{}
		return m, m.rescan()
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PageListView || !m.scanned {
		return m, nil
	}
	var cmd tea.Cmd
	m.pageList, cmd = m.pageList.Update(msg)
	return m, cmd
}

func (m *Model) rescan() tea.Cmd {
	m.scanned = false
	m.err = nil
	return tea.Batch(m.spinner.Tick, m.scanPages())
}

func (m *Model) scanPages() tea.Cmd {
	opts := m.opts
	opts.DryRun = true
	return func() tea.Msg {
		result, err := m.migrator.Run(m.ctx, opts, nil)
		return pagesScannedMsg(result, err)
	}
}

// startMigration runs the engine in the background.
//
// The outcome is buffered in doneCh before progCh is closed, so [Model.waitForProgress] always finds it once the updates are drained.
func (m *Model) startMigration() tea.Cmd {
	m.progCh = make(chan tasks.ProgressUpdate, 50)
	m.doneCh = make(chan runOutcome, 1)
	m.events = nil

	progCh, doneCh := m.progCh, m.doneCh
	go func() {
		result, err := m.migrator.Run(m.ctx, m.opts, progCh)
		doneCh <- runOutcome{result: result, err: err}
		close(progCh)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progCh, doneCh := m.progCh, m.doneCh
	return func() tea.Msg {
		if progCh == nil {
			return migrationCompleteMsg(m.result, m.err)
		}

		update, ok := <-progCh
		if !ok {
			outcome := <-doneCh
			return migrationCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PageListView:
		return m.renderPageList()
	case ConfirmView:
		return m.renderConfirm()
	case MigrateView:
		return m.renderMigrate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderPageList() string {
	if !m.scanned {
		return fmt.Sprintf("%s Scanning stage directory...", m.spinner.View())
	}
	if m.err != nil {
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.rescan, m.keys.quit})
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Error: %v", m.err)), helpView)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.rescan, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.pageList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Migrate Flickr photos to Google Photos?")

	var pending, skipped int
	if m.scan != nil {
		for _, report := range m.scan.Pages {
			if report.Outcome == models.OutcomeSkipped {
				skipped++
			} else {
				pending++
			}
		}
	}

	info := fmt.Sprintf("\nPhotos on Flickr: %d\nPages to migrate: %d\nPages already migrated: %d\n", m.scanTotal(), pending, skipped)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) scanTotal() int {
	if m.scan == nil {
		return 0
	}
	return m.scan.PhotosTotal
}

func (m *Model) renderMigrate() string {
	title := styles.title.Render("Migrating pages")

	var percent float64
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	var phase string
	switch m.progress.Phase {
	case tasks.ComputePages:
		phase = "Counting photos..."
	case tasks.DownloadPage:
		phase = "Downloading"
	case tasks.UploadPage:
		phase = "Uploading"
	case tasks.RetirePage, tasks.SkipPage, tasks.InspectPage:
		phase = "Working"
	default:
		phase = "Starting..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s %s\n%s\n\n", title, m.spinner.View(), phase, m.bar.ViewAs(percent))
	for _, event := range m.events {
		b.WriteString(styles.help.Render(event))
		b.WriteByte('\n')
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.rescan, m.keys.quit})

	if m.err != nil {
		msg := fmt.Sprintf("Migration failed: %v", m.err)
		if m.result != nil && len(m.result.Pages) > 0 {
			last := m.result.Pages[len(m.result.Pages)-1]
			msg += fmt.Sprintf("\n\nPage %d was left on disk and will resume on the next run.", last.Page)
		}
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(msg), helpView)
	}

	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	title := styles.ok.Render("✓ Migration Complete!")
	info := fmt.Sprintf(
		"\nPages migrated: %d\nPages skipped: %d\nPhotos uploaded: %d\nAlbums created: %d",
		m.result.PagesMigrated,
		m.result.PagesSkipped,
		m.result.PhotosUploaded,
		m.result.AlbumsCreated,
	)
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

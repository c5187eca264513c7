package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/pxm/internal/formatter"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/repositories"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/desertthunder/pxm/internal/tasks"
	"github.com/urfave/cli/v3"
)

func runOptions(cmd *cli.Command) (tasks.RunOptions, error) {
	opts := tasks.RunOptions{FromPage: cmd.Int("from"), ToPage: cmd.Int("to")}
	if opts.FromPage < 0 || opts.ToPage < 0 {
		return opts, fmt.Errorf("%w: --from and --to must be positive page numbers", shared.ErrInvalidFlag)
	}
	if opts.ToPage > 0 && opts.FromPage > opts.ToPage {
		return opts, fmt.Errorf("%w: --from %d is above --to %d", shared.ErrInvalidFlag, opts.FromPage, opts.ToPage)
	}
	return opts, nil
}

// MigrateRun migrates every page in range, highest page first.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("tui") {
		return r.TUI(ctx, cmd)
	}
	if cmd.Bool("dry-run") {
		return r.MigratePages(ctx, cmd)
	}

	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}

	engine, closeJournal, err := r.engine(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer closeJournal()

	r.logger.Info("starting migration", "from", opts.FromPage, "to", opts.ToPage)
	r.writePlain("Starting Flickr → Google Photos migration...\n\n")

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ComputePages:
				r.writePlain("📥 %s\n\n", update.Message)
			case tasks.InspectPage:
				r.writePlain("%s\n", update.Message)
			case tasks.DownloadPage, tasks.UploadPage:
				r.writePlain("   %s\n", update.Message)
			case tasks.RetirePage, tasks.SkipPage:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, opts, progressCh)
	close(progressCh)
	<-printed

	if err != nil {
		if result != nil && len(result.Pages) > 0 {
			last := result.Pages[len(result.Pages)-1]
			r.writePlainln("✗ Page %d failed; its stage directory was kept and will resume on the next run.", last.Page)
		}
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Migration Complete!")
	r.writePlain("Photos on Flickr: %d (%d pages)\n", result.PhotosTotal, result.PageCount)
	r.writePlain("Pages migrated: %d\n", result.PagesMigrated)
	r.writePlain("Pages skipped: %d\n", result.PagesSkipped)
	r.writePlain("Photos uploaded: %d\n", result.PhotosUploaded)
	r.writePlain("Albums created: %d\n", result.AlbumsCreated)
	return nil
}

type pageJSON struct {
	Page   int    `json:"page"`
	State  string `json:"state"`
	Action string `json:"action"`
	Photos int    `json:"photos"`
}

// MigratePages inspects the stage directory for every page in range without downloading or uploading.
func (r *Runner) MigratePages(ctx context.Context, cmd *cli.Command) error {
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	opts.DryRun = true

	engine, closeJournal, err := r.engine(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer closeJournal()

	result, err := engine.Run(ctx, opts, nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		pages := make([]pageJSON, len(result.Pages))
		for i, p := range result.Pages {
			pages[i] = pageJSON{Page: p.Page, State: p.State.String(), Action: string(p.Outcome), Photos: p.Photos}
		}
		return r.writeJSON(pages, true)
	}

	r.writePlain("Found %d photos in %d pages\n\n", result.PhotosTotal, result.PageCount)
	var pending int
	for _, p := range result.Pages {
		action := "download and upload"
		switch p.Outcome {
		case models.OutcomeSkipped:
			action = "already migrated"
		case models.OutcomeResumed:
			action = fmt.Sprintf("resume (%d files staged)", p.Photos)
		}
		if p.Outcome != models.OutcomeSkipped {
			pending++
		}
		r.writePlain("  page %-5d %-8s %s\n", p.Page, p.State, action)
	}
	r.writePlainln("%d of %d pages still to migrate", pending, len(result.Pages))
	return nil
}

// MigrateHistory lists journaled runs, newest first.
func (r *Runner) MigrateHistory(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, closeJournal, err := r.journal(ctx, config)
	if err != nil {
		return err
	}
	defer closeJournal()

	criteria := map[string]any{}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = limit
	}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}

	data, err := formatter.Runs(runs, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// MigrateShow prints one run with its page outcomes, or writes it to --output.
func (r *Runner) MigrateShow(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	repo, closeJournal, err := r.journal(ctx, config)
	if err != nil {
		return err
	}
	defer closeJournal()

	var run *models.MigrationRun
	if id := cmd.StringArg("run"); id != "" {
		run, err = repo.Get(id)
	} else {
		run, err = repo.Latest()
	}
	if errors.Is(err, repositories.ErrRunNotFound) {
		return fmt.Errorf("%w: no matching run in %s", shared.ErrInvalidArgument, config.Database.Path)
	} else if err != nil {
		return err
	}

	pages, err := repo.Outcomes(run.RunID)
	if err != nil {
		return err
	}
	report := formatter.RunReport{Run: run, Pages: pages}

	if output := cmd.String("output"); output != "" {
		path, err := formatter.WriteReport(report, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
		return r.writePlain("✓ Report saved to %s\n", path)
	}

	data, err := formatter.Report(report, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

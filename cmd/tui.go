package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/desertthunder/pxm/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for the migration.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}

	fileLogger, err := shared.NewFileLogger("./tmp/pxm-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	engine, closeJournal, err := r.engine(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer closeJournal()

	model := ui.NewModel(ctx, engine, opts)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}

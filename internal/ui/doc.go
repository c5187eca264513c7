// Package ui implements an interactive terminal interface for the page migration using bubbletea's Elm architecture.
//
// The TUI walks through four views:
//  1. [PageListView] : Pages in migration order with the state found on disk
//  2. [ConfirmView] : Confirm the run
//  3. [MigrateView] : Progress bar and recent events while pages migrate
//  4. [ResultView] : Pages migrated, skipped and photos uploaded, or the error that stopped the run
//
// The (view) [Model] implements the standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress updates flow through a channel from the migration engine, which never blocks on a slow renderer.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, r, q) with contextual help from charmbracelet/bubbles/help.
package ui

// Package tasks migrates a photo library page by page from a source service to a destination service
// with real-time progress reporting.
//
// # Core Operations
//
// [MigrationEngine.Run] walks the source library from the highest page to page 1:
//
//  1. Compute the page range from the source photo count (50 photos per page)
//  2. Inspect the page's stage directory
//     - Retired (empty directory): skip
//     - Missing or Pending: download through [SourceReader]
//     - Staged: upload what is already on disk
//  3. Upload, create media items and assign albums through [DestinationWriter]
//  4. Retire the page by emptying its directory
//
// Any failure stops the run and leaves the page directory untouched, so the next run resumes where this one stopped.
//
// # Albums
//
// [AlbumIndex] is loaded from the destination at the start of every run. Albums are looked up by title before
// one is created, so repeating a run never duplicates an album.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run Journal
//
// The optional [RunRecorder] interface persists runs and page outcomes (repositories.RunRepository).
//
// Journal errors are logged and never abort a migration.
package tasks

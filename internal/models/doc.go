// Package models defines domain entities and persistence interfaces for the pxm photo migration tool.
//
// The package contains two categories of types:
//
// 1. Pipeline values: plain structs handed between the source reader, the stage and the destination writer
//   - [StagedPhoto] : one downloaded photo plus the metadata that must survive the transfer
//   - [Rendition] : one size variant of a source photo
//   - [Album] : a destination album
//   - [NewMediaItem] and [MediaItemResult] : batch-create request entries and their outcomes
//
// 2. Persistent Entities: journal rows written to SQLite
//   - [MigrationRun] : one invocation of the migration
//   - [PageOutcome] : what happened to a single page during a run
//
// Persistent entities implement the [Model] interface; the [Repository] interface defines standard CRUD operations for database access.
package models

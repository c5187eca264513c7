package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
)

// AlbumIndex maps destination album titles to ids for one run.
//
// It is rebuilt from the destination on every run and consulted before any album is created,
// so re-running never produces a second album with the same title.
type AlbumIndex struct {
	dest    services.Destination
	ids     map[string]string
	created int
	logger  *log.Logger
}

// NewAlbumIndex creates an empty index backed by dest.
func NewAlbumIndex(dest services.Destination, logger *log.Logger) *AlbumIndex {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AlbumIndex{dest: dest, ids: make(map[string]string), logger: logger}
}

// Load replaces the index with the destination's current albums. When titles repeat, the first listed album wins.
// Destination titles are matched the way [AlbumIndex.Resolve] trims source titles.
func (a *AlbumIndex) Load(ctx context.Context) error {
	albums, err := a.dest.ListAlbums(ctx)
	if err != nil {
		return fmt.Errorf("failed to list destination albums: %w", err)
	}

	a.ids = make(map[string]string, len(albums))
	for _, album := range albums {
		key := albumKey(album.Title)
		if key == "" {
			continue
		}
		if _, ok := a.ids[key]; ok {
			a.logger.Warn("duplicate album title on destination", "title", album.Title, "id", album.ID)
			continue
		}
		a.ids[key] = album.ID
	}
	a.logger.Debug("album index loaded", "albums", len(a.ids))
	return nil
}

// Lookup returns the id for title without touching the destination.
func (a *AlbumIndex) Lookup(title string) (string, bool) {
	id, ok := a.ids[albumKey(title)]
	return id, ok
}

// Resolve returns the id for title, creating the album on the destination when it is not indexed yet.
func (a *AlbumIndex) Resolve(ctx context.Context, title string) (string, error) {
	title = albumKey(title)
	if title == "" {
		return "", fmt.Errorf("%w: empty album title", shared.ErrInvalidInput)
	}
	if id, ok := a.ids[title]; ok {
		return id, nil
	}

	album, err := a.dest.CreateAlbum(ctx, title)
	if err != nil {
		return "", fmt.Errorf("failed to create album %q: %w", title, err)
	}

	a.ids[title] = album.ID
	a.created++
	a.logger.Info("created album", "title", title, "id", album.ID)
	return album.ID, nil
}

// albumKey is the form titles are indexed and created under. Surrounding whitespace is not significant.
func albumKey(title string) string {
	return strings.TrimSpace(title)
}

// Len returns the number of indexed albums.
func (a *AlbumIndex) Len() int { return len(a.ids) }

// Created returns how many albums this index created.
func (a *AlbumIndex) Created() int { return a.created }

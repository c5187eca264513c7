package tasks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
)

// UploadedPhoto pairs a staged photo with its upload token.
type UploadedPhoto struct {
	Photo models.StagedPhoto
	Token models.UploadToken
}

// DestinationWriter uploads staged photos and attaches them to albums.
type DestinationWriter struct {
	dest   services.Destination
	albums *AlbumIndex
	logger *log.Logger
}

// NewDestinationWriter creates a writer resolving albums through index.
func NewDestinationWriter(dest services.Destination, index *AlbumIndex, logger *log.Logger) *DestinationWriter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DestinationWriter{dest: dest, albums: index, logger: logger}
}

// UploadBytes sends the staged file and returns its upload token.
func (w *DestinationWriter) UploadBytes(ctx context.Context, photo models.StagedPhoto) (models.UploadToken, error) {
	data, err := os.ReadFile(photo.LocalPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStage, err)
	}

	token, err := w.dest.Upload(ctx, photo.FileName(), http.DetectContentType(data), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", photo.SourceID, err)
	}
	return token, nil
}

// CreateMediaItems creates every uploaded photo in one batch call and maps each token to its media item id.
//
// Any item the destination did not create fails the whole batch with [shared.ErrPartialBatch].
func (w *DestinationWriter) CreateMediaItems(ctx context.Context, uploads []UploadedPhoto) (map[models.UploadToken]string, error) {
	if len(uploads) == 0 {
		return map[models.UploadToken]string{}, nil
	}

	items := make([]models.NewMediaItem, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, models.NewMediaItem{
			Description: u.Photo.Description(),
			FileName:    u.Photo.FileName(),
			Token:       u.Token,
		})
	}

	results, err := w.dest.BatchCreate(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to create media items: %w", err)
	}

	ids := make(map[models.UploadToken]string, len(results))
	rejected := make(map[models.UploadToken]bool)
	var failures []string
	for _, r := range results {
		if !r.OK() {
			rejected[r.Token] = true
			failures = append(failures, fmt.Sprintf("%s (%d %s)", r.Token, r.StatusCode, r.StatusMessage))
			continue
		}
		ids[r.Token] = r.MediaItemID
	}

	for _, u := range uploads {
		if _, ok := ids[u.Token]; !ok && !rejected[u.Token] {
			failures = append(failures, fmt.Sprintf("%s (no result)", u.Token))
		}
	}

	if len(failures) > 0 {
		return nil, fmt.Errorf("%w: %d of %d items not created: %s", shared.ErrPartialBatch, len(failures), len(uploads), strings.Join(failures, ", "))
	}
	return ids, nil
}

// AssignToAlbums adds created items to every album their photo belongs to, one batched call per album.
//
// Albums are resolved through the index so an existing title is reused and a missing one is created once.
func (w *DestinationWriter) AssignToAlbums(ctx context.Context, uploads []UploadedPhoto, ids map[models.UploadToken]string) error {
	var order []string
	members := make(map[string][]string)
	seen := make(map[string]map[string]bool)

	for _, u := range uploads {
		itemID, ok := ids[u.Token]
		if !ok {
			return fmt.Errorf("%w: no media item for %s", shared.ErrPartialBatch, u.Photo.SourceID)
		}

		for _, title := range u.Photo.Albums {
			albumID, err := w.albums.Resolve(ctx, title)
			if err != nil {
				return err
			}
			if _, ok := members[albumID]; !ok {
				order = append(order, albumID)
				seen[albumID] = make(map[string]bool)
			}
			if seen[albumID][itemID] {
				continue
			}
			seen[albumID][itemID] = true
			members[albumID] = append(members[albumID], itemID)
		}
	}

	for _, albumID := range order {
		itemIDs := members[albumID]
		for start := 0; start < len(itemIDs); start += services.MaxBatchSize {
			end := min(start+services.MaxBatchSize, len(itemIDs))
			if err := w.dest.AddToAlbum(ctx, albumID, itemIDs[start:end]); err != nil {
				return fmt.Errorf("failed to add items to album %s: %w", albumID, err)
			}
		}
		w.logger.Debug("assigned items to album", "album", albumID, "items", len(itemIDs))
	}
	return nil
}

// WritePage uploads photos, creates their media items and assigns albums. It returns only after every step succeeded.
func (w *DestinationWriter) WritePage(ctx context.Context, photos []models.StagedPhoto) (int, error) {
	uploads := make([]UploadedPhoto, 0, len(photos))
	for _, p := range photos {
		token, err := w.UploadBytes(ctx, p)
		if err != nil {
			return 0, err
		}
		uploads = append(uploads, UploadedPhoto{Photo: p, Token: token})
	}

	ids, err := w.CreateMediaItems(ctx, uploads)
	if err != nil {
		return 0, err
	}

	if err := w.AssignToAlbums(ctx, uploads, ids); err != nil {
		return 0, err
	}
	return len(uploads), nil
}

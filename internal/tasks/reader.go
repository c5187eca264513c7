package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/services"
	"github.com/desertthunder/pxm/internal/shared"
	"github.com/desertthunder/pxm/internal/stage"
)

// DateStamper writes a capture date into a file on disk.
type DateStamper interface {
	Stamp(path string, capturedAt time.Time) error
}

// ReaderOptions tunes the source reader's retry behavior.
type ReaderOptions struct {
	PreferredSize    string        // Rendition label to download (default "X-Large 4K")
	PageRetries      int           // Attempts per page before giving up (default 5)
	RetryDelay       time.Duration // Fixed delay between page attempts
	DownloadAttempts int           // Download+stamp attempts per photo within one page attempt (default 3)
}

// SourceReader downloads one page of the source library into the stage.
type SourceReader struct {
	source  services.Source
	stage   *stage.Stage
	stamper DateStamper
	opts    ReaderOptions
	logger  *log.Logger
}

// NewSourceReader creates a reader that stages photos from source.
func NewSourceReader(source services.Source, stg *stage.Stage, stamper DateStamper, opts ReaderOptions, logger *log.Logger) *SourceReader {
	if opts.PreferredSize == "" {
		opts.PreferredSize = "X-Large 4K"
	}
	if opts.PageRetries <= 0 {
		opts.PageRetries = 5
	}
	if opts.DownloadAttempts <= 0 {
		opts.DownloadAttempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SourceReader{source: source, stage: stg, stamper: stamper, opts: opts, logger: logger}
}

// ChooseRendition picks the rendition labelled preferred, or the last listed one when that label is absent.
func ChooseRendition(renditions []models.Rendition, preferred string) (models.Rendition, bool) {
	if len(renditions) == 0 {
		return models.Rendition{}, false
	}
	for _, r := range renditions {
		if r.Label == preferred {
			return r, true
		}
	}
	return renditions[len(renditions)-1], true
}

// Downloadable reports whether a rendition is a still image rather than a video player or preview.
func Downloadable(r models.Rendition) bool {
	return r.URL != "" && r.Media != "video" && !strings.Contains(r.URL, "/play/")
}

// FetchPage stages every downloadable photo of page, retrying the whole page with a fixed delay.
//
// Photos already recorded in the page manifest with a file on disk are not downloaded again.
// Exhausting the retries returns [shared.ErrPageUnrecoverable] and leaves the page directory in place.
func (r *SourceReader) FetchPage(ctx context.Context, page int) ([]models.StagedPhoto, error) {
	logger := shared.WithLogger(r.logger, "page", page)
	attempt := 0

	photos, err := backoff.Retry(ctx, func() ([]models.StagedPhoto, error) {
		attempt++
		photos, err := r.fetchOnce(ctx, page, logger)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return photos, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.opts.RetryDelay)),
		backoff.WithMaxTries(uint(r.opts.PageRetries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("page fetch failed, retrying", "attempt", attempt, "of", r.opts.PageRetries, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: page %d after %d attempts: %v", shared.ErrPageUnrecoverable, page, attempt, err)
	}
	return photos, nil
}

// fetchOnce is a single attempt at staging a page.
func (r *SourceReader) fetchOnce(ctx context.Context, page int, logger *log.Logger) ([]models.StagedPhoto, error) {
	if err := r.stage.Create(page); err != nil {
		return nil, err
	}

	manifest, err := r.stage.ReadManifest(page)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		manifest = &stage.Manifest{}
		if err := r.stage.WriteManifest(page, manifest); err != nil {
			return nil, err
		}
	}

	refs, err := r.source.ListPhotos(ctx, page, models.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list page %d: %w", page, err)
	}

	photos := make([]models.StagedPhoto, 0, len(refs))
	for _, ref := range refs {
		if p, ok := manifest.Lookup(ref.ID); ok && fileExists(r.stage.PhotoPath(page, ref.ID)) {
			logger.Debug("photo already staged", "id", ref.ID)
			p.LocalPath = r.stage.PhotoPath(page, ref.ID)
			photos = append(photos, p)
			continue
		}

		photo, ok, err := r.stagePhoto(ctx, page, ref, logger)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		manifest.Put(photo)
		if err := r.stage.WriteManifest(page, manifest); err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	manifest.Downloaded = true
	if err := r.stage.WriteManifest(page, manifest); err != nil {
		return nil, err
	}
	return photos, nil
}

// stagePhoto resolves metadata for ref and downloads it. ok is false when the photo is skipped.
func (r *SourceReader) stagePhoto(ctx context.Context, page int, ref services.PhotoRef, logger *log.Logger) (photo models.StagedPhoto, ok bool, err error) {
	info, err := r.source.PhotoInfo(ctx, ref.ID)
	if err != nil {
		return photo, false, fmt.Errorf("failed to get info for photo %s: %w", ref.ID, err)
	}

	albums, err := r.source.PhotoAlbums(ctx, ref.ID)
	if err != nil {
		return photo, false, fmt.Errorf("failed to get albums for photo %s: %w", ref.ID, err)
	}

	renditions, err := r.source.Renditions(ctx, ref.ID)
	if err != nil {
		return photo, false, fmt.Errorf("failed to get sizes for photo %s: %w", ref.ID, err)
	}

	rendition, found := ChooseRendition(renditions, r.opts.PreferredSize)
	if !found {
		logger.Warn("photo has no renditions, skipping", "id", ref.ID)
		return photo, false, nil
	}
	if !Downloadable(rendition) {
		logger.Info("skipping non-image asset", "id", ref.ID, "label", rendition.Label, "media", rendition.Media)
		return photo, false, nil
	}

	name := ref.Title
	if name == "" {
		name = info.Title
	}
	if name == "" {
		name = ref.ID
	}

	photo = models.StagedPhoto{
		SourceID:    ref.ID,
		DisplayName: name,
		CapturedAt:  info.CapturedAt,
		Tags:        shared.UniqueStrings(info.Tags),
		Albums:      shared.UniqueStrings(albums),
		LocalPath:   r.stage.PhotoPath(page, ref.ID),
	}

	var lastErr error
	for i := 1; i <= r.opts.DownloadAttempts; i++ {
		lastErr = r.download(ctx, page, photo, rendition.URL)
		if lastErr == nil {
			logger.Debug("staged photo", "id", ref.ID, "label", rendition.Label)
			return photo, true, nil
		}
		if ctx.Err() != nil {
			return photo, false, ctx.Err()
		}
		logger.Warn("download failed", "id", ref.ID, "attempt", i, "error", lastErr)
	}
	return photo, false, fmt.Errorf("%w: photo %s: %v", shared.ErrNotDownloadable, ref.ID, lastErr)
}

// download writes the rendition to a hidden temporary file, stamps it, then moves it into place.
//
// The final path only ever holds a file whose capture date was applied.
func (r *SourceReader) download(ctx context.Context, page int, photo models.StagedPhoto, url string) error {
	tmp := r.stage.TempPath(page, photo.SourceID)

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStage, err)
	}

	if err := r.source.Download(ctx, url, f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrStage, err)
	}

	if err := r.stamper.Stamp(tmp, photo.CapturedAt); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, photo.LocalPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrStage, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

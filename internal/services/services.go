// package services defines the Source and Destination interfaces for the hosted photo APIs
//
// Flickr (source), Google Photos Library API (destination)
package services

import (
	"context"
	"io"
	"time"

	"github.com/desertthunder/pxm/internal/models"
)

// Source is a hosted photo library photos are read from.
type Source interface {
	// PhotoCount returns the number of photos in the configured user's library.
	PhotoCount(ctx context.Context) (int, error)

	// ListPhotos returns one page of the library, most recent first.
	ListPhotos(ctx context.Context, page, perPage int) ([]PhotoRef, error)

	// PhotoInfo resolves the capture time and tags of a photo.
	PhotoInfo(ctx context.Context, photoID string) (*PhotoInfo, error)

	// PhotoAlbums returns the titles of every album (set) containing the photo.
	PhotoAlbums(ctx context.Context, photoID string) ([]string, error)

	// Renditions returns the photo's size variants in the order the service lists them.
	Renditions(ctx context.Context, photoID string) ([]models.Rendition, error)

	// Download streams the bytes at url into w.
	Download(ctx context.Context, url string, w io.Writer) error

	// Name returns the name of the service (e.g., "Flickr")
	Name() string
}

// Destination is a hosted photo library photos are written to.
type Destination interface {
	// ListAlbums returns every album visible to the client.
	ListAlbums(ctx context.Context) ([]models.Album, error)

	// CreateAlbum creates an album with the given title.
	CreateAlbum(ctx context.Context, title string) (*models.Album, error)

	// Upload sends raw bytes of the given MIME type and returns the ephemeral upload token.
	Upload(ctx context.Context, fileName, contentType string, r io.Reader) (models.UploadToken, error)

	// BatchCreate turns upload tokens into media items with one request.
	BatchCreate(ctx context.Context, items []models.NewMediaItem) ([]models.MediaItemResult, error)

	// AddToAlbum adds existing media items to an album with one request.
	AddToAlbum(ctx context.Context, albumID string, mediaItemIDs []string) error

	// Name returns the name of the service (e.g., "Google Photos")
	Name() string
}

// PhotoRef is a photo as listed in a library page.
type PhotoRef struct {
	ID    string
	Title string
}

// PhotoInfo is the per-photo metadata carried to the destination.
type PhotoInfo struct {
	Title      string
	CapturedAt time.Time
	Tags       []string
}

// Google Photos Library API implementation of [Destination]
//
// Endpoints based on https://developers.google.com/photos/library/reference/rest
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/shared"
)

const (
	googlePhotosBaseURL = "https://photoslibrary.googleapis.com/v1"

	// MaxBatchSize is the API limit for batchCreate and batchAddMediaItems.
	MaxBatchSize = 50
)

// GoogleAlbum is an album resource.
type GoogleAlbum struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ProductURL      string `json:"productUrl,omitempty"`
	MediaItemsCount string `json:"mediaItemsCount,omitempty"`
}

type googleAlbumList struct {
	Albums        []GoogleAlbum `json:"albums"`
	NextPageToken string        `json:"nextPageToken"`
}

type googleSimpleMediaItem struct {
	FileName    string `json:"fileName"`
	UploadToken string `json:"uploadToken"`
}

type googleNewMediaItem struct {
	Description     string                `json:"description"`
	SimpleMediaItem googleSimpleMediaItem `json:"simpleMediaItem"`
}

type googleStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type googleMediaItemResult struct {
	UploadToken string       `json:"uploadToken"`
	Status      googleStatus `json:"status"`
	MediaItem   *struct {
		ID string `json:"id"`
	} `json:"mediaItem"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GooglePhotosService implements [Destination] for the Google Photos Library API.
type GooglePhotosService struct {
	baseURL    string
	credential CredentialProvider
	httpClient *http.Client
	logger     *log.Logger
}

// NewGooglePhotosService creates a destination that authorizes every request through credential.
func NewGooglePhotosService(credential CredentialProvider, client *http.Client, baseURL string, logger *log.Logger) *GooglePhotosService {
	if baseURL == "" {
		baseURL = googlePhotosBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &GooglePhotosService{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		credential: credential,
		httpClient: client,
		logger:     logger,
	}
}

func (g *GooglePhotosService) Name() string {
	return "Google Photos"
}

// newRequest builds a request carrying a freshly validated bearer token.
func (g *GooglePhotosService) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if g.credential == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := g.credential.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// do sends req and returns the body of a 2xx response.
func (g *GooglePhotosService) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", shared.ErrDestinationRequest, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrDestinationRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr googleError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s %s: status %d: %s", shared.ErrDestinationRequest, req.Method, req.URL.Path, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s %s: status %d", shared.ErrDestinationRequest, req.Method, req.URL.Path, resp.StatusCode)
	}
	return body, nil
}

// doJSON performs a JSON request and decodes the response into result.
func (g *GooglePhotosService) doJSON(ctx context.Context, method, endpoint string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := g.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := g.do(req)
	if err != nil {
		return err
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrDestinationRequest, err)
		}
	}
	return nil
}

// ListAlbums pages through every album visible to this client.
func (g *GooglePhotosService) ListAlbums(ctx context.Context) ([]models.Album, error) {
	var albums []models.Album
	pageToken := ""

	for {
		params := url.Values{"pageSize": {"50"}}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var response googleAlbumList
		if err := g.doJSON(ctx, http.MethodGet, "/albums?"+params.Encode(), nil, &response); err != nil {
			return nil, err
		}

		for _, a := range response.Albums {
			albums = append(albums, models.Album{ID: a.ID, Title: a.Title})
		}

		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	g.logger.Debug("listed albums", "count", len(albums))
	return albums, nil
}

// CreateAlbum creates an album titled title.
func (g *GooglePhotosService) CreateAlbum(ctx context.Context, title string) (*models.Album, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: album title is empty", shared.ErrInvalidInput)
	}

	payload := map[string]any{"album": map[string]string{"title": title}}
	var album GoogleAlbum
	if err := g.doJSON(ctx, http.MethodPost, "/albums", payload, &album); err != nil {
		return nil, err
	}
	if album.ID == "" {
		return nil, fmt.Errorf("%w: create album %q returned no id", shared.ErrDestinationRequest, title)
	}
	return &models.Album{ID: album.ID, Title: album.Title}, nil
}

// Upload sends raw bytes and returns the upload token from the response body.
func (g *GooglePhotosService) Upload(ctx context.Context, fileName, contentType string, r io.Reader) (models.UploadToken, error) {
	req, err := g.newRequest(ctx, http.MethodPost, "/uploads", r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Goog-Upload-Content-Type", contentType)
	req.Header.Set("X-Goog-Upload-File-Name", fileName)
	req.Header.Set("X-Goog-Upload-Protocol", "raw")

	body, err := g.do(req)
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", fmt.Errorf("%w: upload of %s returned an empty token", shared.ErrDestinationRequest, fileName)
	}
	return models.UploadToken(token), nil
}

// BatchCreate creates media items for up to [MaxBatchSize] upload tokens in one request.
func (g *GooglePhotosService) BatchCreate(ctx context.Context, items []models.NewMediaItem) ([]models.MediaItemResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d items", shared.ErrInvalidInput, len(items), MaxBatchSize)
	}

	entries := make([]googleNewMediaItem, 0, len(items))
	for _, item := range items {
		entries = append(entries, googleNewMediaItem{
			Description: item.Description,
			SimpleMediaItem: googleSimpleMediaItem{
				FileName:    item.FileName,
				UploadToken: string(item.Token),
			},
		})
	}

	var response struct {
		NewMediaItemResults []googleMediaItemResult `json:"newMediaItemResults"`
	}
	payload := map[string]any{"newMediaItems": entries}
	if err := g.doJSON(ctx, http.MethodPost, "/mediaItems:batchCreate", payload, &response); err != nil {
		return nil, err
	}

	results := make([]models.MediaItemResult, 0, len(response.NewMediaItemResults))
	for _, r := range response.NewMediaItemResults {
		result := models.MediaItemResult{
			Token:         models.UploadToken(r.UploadToken),
			StatusCode:    r.Status.Code,
			StatusMessage: r.Status.Message,
		}
		if r.MediaItem != nil {
			result.MediaItemID = r.MediaItem.ID
		}
		results = append(results, result)
	}
	return results, nil
}

// AddToAlbum adds up to [MaxBatchSize] media items to an album in one request.
func (g *GooglePhotosService) AddToAlbum(ctx context.Context, albumID string, mediaItemIDs []string) error {
	if len(mediaItemIDs) == 0 {
		return nil
	}
	if len(mediaItemIDs) > MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds %d items", shared.ErrInvalidInput, len(mediaItemIDs), MaxBatchSize)
	}

	endpoint := "/albums/" + url.PathEscape(albumID) + ":batchAddMediaItems"
	payload := map[string]any{"mediaItemIds": mediaItemIDs}
	return g.doJSON(ctx, http.MethodPost, endpoint, payload, nil)
}

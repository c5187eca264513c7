// Flickr REST API implementation of [Source]
//
// Response shapes follow https://www.flickr.com/services/api/ with format=json&nojsoncallback=1
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/shared"
	"golang.org/x/time/rate"
)

const (
	flickrBaseURL     = "https://api.flickr.com/services/rest/"
	flickrTakenLayout = "2006-01-02 15:04:05"

	flickrCodeUserNotFound = 1
)

// flexInt decodes Flickr counters, which arrive as numbers or numeric strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid flickr number %s: %w", b, err)
	}
	*f = flexInt(n)
	return nil
}

type flickrContent struct {
	Content string `json:"_content"`
}

type flickrEnvelope struct {
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FlickrPhoto is a photo as listed by flickr.people.getPhotos.
type FlickrPhoto struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FlickrPhotoInfo is the subset of flickr.photos.getInfo used for migration.
type FlickrPhotoInfo struct {
	ID    string        `json:"id"`
	Title flickrContent `json:"title"`
	Dates struct {
		Taken string `json:"taken"`
	} `json:"dates"`
	Tags struct {
		Tag []FlickrTag `json:"tag"`
	} `json:"tags"`
}

// FlickrTag is a photo tag; Raw is the tag as the owner typed it.
type FlickrTag struct {
	ID      string `json:"id"`
	Raw     string `json:"raw"`
	Content string `json:"_content"`
}

// FlickrSet is a photoset context of a photo.
type FlickrSet struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// FlickrSize is one rendition from flickr.photos.getSizes.
type FlickrSize struct {
	Label  string  `json:"label"`
	Width  flexInt `json:"width"`
	Height flexInt `json:"height"`
	Source string  `json:"source"`
	Media  string  `json:"media"`
}

// FlickrOptions configures a [FlickrService].
type FlickrOptions struct {
	BaseURL    string
	Username   string
	Credential CredentialProvider
	HTTPClient *http.Client
	RateLimit  float64 // requests per second; 0 disables pacing
	Logger     *log.Logger
}

// FlickrService implements [Source] against the Flickr REST API using an API key.
type FlickrService struct {
	baseURL    string
	username   string
	userID     string
	credential CredentialProvider
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewFlickrService creates a Flickr source for the given username.
func NewFlickrService(opts FlickrOptions) (*FlickrService, error) {
	if opts.Credential == nil {
		return nil, fmt.Errorf("%w: flickr api key", shared.ErrMissingCredentials)
	}
	if opts.Username == "" {
		return nil, fmt.Errorf("%w: flickr username", shared.ErrMissingConfig)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = flickrBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &FlickrService{
		baseURL:    opts.BaseURL,
		username:   opts.Username,
		credential: opts.Credential,
		httpClient: opts.HTTPClient,
		limiter:    limiter,
		logger:     opts.Logger,
	}, nil
}

func (f *FlickrService) Name() string {
	return "Flickr"
}

// call invokes a REST method and decodes the JSON response into result.
func (f *FlickrService) call(ctx context.Context, method string, params url.Values, result any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	apiKey, err := f.credential.ValidToken(ctx)
	if err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	params.Set("api_key", apiKey)
	params.Set("format", "json")
	params.Set("nojsoncallback", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrAPIRequest, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", shared.ErrAPIRequest, method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: status %d", shared.ErrAPIRequest, method, resp.StatusCode)
	}

	var envelope flickrEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrAPIRequest, method, err)
	}
	if envelope.Stat != "ok" {
		if method == "flickr.people.findByUsername" && envelope.Code == flickrCodeUserNotFound {
			return fmt.Errorf("%w: %s", shared.ErrUserNotFound, f.username)
		}
		return fmt.Errorf("%w: %s: code %d: %s", shared.ErrAPIRequest, method, envelope.Code, envelope.Message)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("%w: %s: failed to decode response: %v", shared.ErrAPIRequest, method, err)
		}
	}
	return nil
}

// UserID resolves and caches the NSID of the configured username.
func (f *FlickrService) UserID(ctx context.Context) (string, error) {
	if f.userID != "" {
		return f.userID, nil
	}

	var response struct {
		User struct {
			NSID string `json:"nsid"`
		} `json:"user"`
	}
	params := url.Values{"username": {f.username}}
	if err := f.call(ctx, "flickr.people.findByUsername", params, &response); err != nil {
		return "", err
	}
	if response.User.NSID == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrUserNotFound, f.username)
	}

	f.userID = response.User.NSID
	f.logger.Debug("resolved flickr user", "username", f.username, "nsid", f.userID)
	return f.userID, nil
}

// PhotoCount returns the number of photos the user has uploaded.
func (f *FlickrService) PhotoCount(ctx context.Context) (int, error) {
	userID, err := f.UserID(ctx)
	if err != nil {
		return 0, err
	}

	var response struct {
		Person struct {
			Photos struct {
				Count struct {
					Content flexInt `json:"_content"`
				} `json:"count"`
			} `json:"photos"`
		} `json:"person"`
	}
	if err := f.call(ctx, "flickr.people.getInfo", url.Values{"user_id": {userID}}, &response); err != nil {
		return 0, err
	}
	return int(response.Person.Photos.Count.Content), nil
}

// ListPhotos returns one page of the user's photos.
func (f *FlickrService) ListPhotos(ctx context.Context, page, perPage int) ([]PhotoRef, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1, got %d", shared.ErrInvalidInput, page)
	}
	userID, err := f.UserID(ctx)
	if err != nil {
		return nil, err
	}

	var response struct {
		Photos struct {
			Pages flexInt       `json:"pages"`
			Photo []FlickrPhoto `json:"photo"`
		} `json:"photos"`
	}
	params := url.Values{
		"user_id":  {userID},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	if err := f.call(ctx, "flickr.people.getPhotos", params, &response); err != nil {
		return nil, err
	}

	refs := make([]PhotoRef, 0, len(response.Photos.Photo))
	for _, p := range response.Photos.Photo {
		refs = append(refs, PhotoRef{ID: p.ID, Title: p.Title})
	}
	return refs, nil
}

// PhotoInfo resolves the capture time, title and raw tags of a photo.
//
// Flickr reports the taken date as wall-clock time without a zone; it is read in the local zone.
func (f *FlickrService) PhotoInfo(ctx context.Context, photoID string) (*PhotoInfo, error) {
	var response struct {
		Photo FlickrPhotoInfo `json:"photo"`
	}
	if err := f.call(ctx, "flickr.photos.getInfo", url.Values{"photo_id": {photoID}}, &response); err != nil {
		return nil, err
	}

	info := &PhotoInfo{Title: response.Photo.Title.Content}
	if taken := response.Photo.Dates.Taken; taken != "" {
		t, err := time.ParseInLocation(flickrTakenLayout, taken, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: photo %s has invalid taken date %q", shared.ErrAPIRequest, photoID, taken)
		}
		info.CapturedAt = t
	}

	tags := make([]string, 0, len(response.Photo.Tags.Tag))
	for _, tag := range response.Photo.Tags.Tag {
		tags = append(tags, tag.Raw)
	}
	info.Tags = shared.UniqueStrings(tags)
	return info, nil
}

// PhotoAlbums returns the titles of the photosets containing the photo.
func (f *FlickrService) PhotoAlbums(ctx context.Context, photoID string) ([]string, error) {
	var response struct {
		Set []FlickrSet `json:"set"`
	}
	if err := f.call(ctx, "flickr.photos.getAllContexts", url.Values{"photo_id": {photoID}}, &response); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(response.Set))
	for _, s := range response.Set {
		titles = append(titles, s.Title)
	}
	return shared.UniqueStrings(titles), nil
}

// Renditions returns the photo's sizes in the order Flickr lists them (smallest first).
func (f *FlickrService) Renditions(ctx context.Context, photoID string) ([]models.Rendition, error) {
	var response struct {
		Sizes struct {
			Size []FlickrSize `json:"size"`
		} `json:"sizes"`
	}
	if err := f.call(ctx, "flickr.photos.getSizes", url.Values{"photo_id": {photoID}}, &response); err != nil {
		return nil, err
	}

	renditions := make([]models.Rendition, 0, len(response.Sizes.Size))
	for _, s := range response.Sizes.Size {
		renditions = append(renditions, models.Rendition{Label: s.Label, URL: s.Source, Media: s.Media})
	}
	return renditions, nil
}

// Download streams a rendition from the Flickr static host into w.
func (f *FlickrService) Download(ctx context.Context, rawURL string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download %s: status %d", shared.ErrAPIRequest, rawURL, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: download %s: %v", shared.ErrAPIRequest, rawURL, err)
	}
	return nil
}

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/pxm/internal/shared"
	tu "github.com/desertthunder/pxm/internal/testing"
)

// fakeFlickr answers REST calls by method name.
func fakeFlickr(t *testing.T, responses map[string]string) (*httptest.Server, map[string]int) {
	t.Helper()
	calls := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "test_key" || q.Get("format") != "json" || q.Get("nojsoncallback") != "1" {
			t.Errorf("missing common parameters: %s", r.URL.RawQuery)
		}
		method := q.Get("method")
		calls[method]++
		body, ok := responses[method]
		if !ok {
			fmt.Fprint(w, `{"stat":"fail","code":112,"message":"Method not found"}`)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func newTestFlickr(t *testing.T, baseURL string) *FlickrService {
	t.Helper()
	svc, err := NewFlickrService(FlickrOptions{
		BaseURL:    baseURL,
		Username:   "micronar",
		Credential: StaticCredential("test_key"),
	})
	if err != nil {
		t.Fatalf("NewFlickrService() error = %v", err)
	}
	return svc
}

func TestFlickrService(t *testing.T) {
	ctx := context.Background()
	responses := map[string]string{
		"flickr.people.findByUsername": `{"user":{"id":"12@N01","nsid":"12@N01","username":{"_content":"micronar"}},"stat":"ok"}`,
		"flickr.people.getInfo":        `{"person":{"nsid":"12@N01","photos":{"count":{"_content":101}}},"stat":"ok"}`,
		"flickr.people.getPhotos":      `{"photos":{"page":3,"pages":3,"perpage":50,"total":101,"photo":[{"id":"p1","title":"Sunset"},{"id":"p2","title":""}]},"stat":"ok"}`,
		"flickr.photos.getInfo":        `{"photo":{"id":"p1","title":{"_content":"Sunset"},"dates":{"taken":"2019-07-14 18:30:05"},"tags":{"tag":[{"id":"t1","raw":"beach","_content":"beach"},{"id":"t2","raw":"sunset","_content":"sunset"},{"id":"t3","raw":"beach","_content":"beach"}]}},"stat":"ok"}`,
		"flickr.photos.getAllContexts": `{"set":[{"id":"s1","title":"Trip 2019"},{"id":"s2","title":"Favorites"}],"pool":[{"id":"g1","title":"A group"}],"stat":"ok"}`,
		"flickr.photos.getSizes":       `{"sizes":{"size":[{"label":"Square","width":75,"height":75,"source":"https://live.staticflickr.com/sq.jpg","media":"photo"},{"label":"Original","width":"4000","height":"3000","source":"https://live.staticflickr.com/o.jpg","media":"photo"}]},"stat":"ok"}`,
	}

	t.Run("NewFlickrService", func(t *testing.T) {
		t.Run("Missing Credential", func(t *testing.T) {
			_, err := NewFlickrService(FlickrOptions{Username: "micronar"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Username", func(t *testing.T) {
			_, err := NewFlickrService(FlickrOptions{Credential: StaticCredential("k")})
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("Name", func(t *testing.T) {
			if newTestFlickr(t, "http://unused").Name() != "Flickr" {
				t.Error("unexpected service name")
			}
		})
	})

	t.Run("PhotoCount resolves the user once", func(t *testing.T) {
		srv, calls := fakeFlickr(t, responses)
		svc := newTestFlickr(t, srv.URL)

		count, err := svc.PhotoCount(ctx)
		if err != nil {
			t.Fatalf("PhotoCount() error = %v", err)
		}
		if count != 101 {
			t.Errorf("expected 101 photos, got %d", count)
		}

		if _, err := svc.ListPhotos(ctx, 3, 50); err != nil {
			t.Fatalf("ListPhotos() error = %v", err)
		}
		if calls["flickr.people.findByUsername"] != 1 {
			t.Errorf("user lookup should be cached, called %d times", calls["flickr.people.findByUsername"])
		}
	})

	t.Run("ListPhotos", func(t *testing.T) {
		srv, _ := fakeFlickr(t, responses)
		refs, err := newTestFlickr(t, srv.URL).ListPhotos(ctx, 3, 50)
		if err != nil {
			t.Fatalf("ListPhotos() error = %v", err)
		}
		if len(refs) != 2 || refs[0].ID != "p1" || refs[0].Title != "Sunset" || refs[1].Title != "" {
			t.Errorf("unexpected refs: %+v", refs)
		}
	})

	t.Run("ListPhotos rejects page 0", func(t *testing.T) {
		if _, err := newTestFlickr(t, "http://unused").ListPhotos(ctx, 0, 50); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("PhotoInfo", func(t *testing.T) {
		srv, _ := fakeFlickr(t, responses)
		info, err := newTestFlickr(t, srv.URL).PhotoInfo(ctx, "p1")
		if err != nil {
			t.Fatalf("PhotoInfo() error = %v", err)
		}
		if got := info.CapturedAt.Format(flickrTakenLayout); got != "2019-07-14 18:30:05" {
			t.Errorf("unexpected capture time %s", got)
		}
		if len(info.Tags) != 2 || info.Tags[0] != "beach" || info.Tags[1] != "sunset" {
			t.Errorf("expected de-duplicated raw tags, got %v", info.Tags)
		}
		if info.Title != "Sunset" {
			t.Errorf("unexpected title %q", info.Title)
		}
	})

	t.Run("PhotoAlbums ignores group pools", func(t *testing.T) {
		srv, _ := fakeFlickr(t, responses)
		albums, err := newTestFlickr(t, srv.URL).PhotoAlbums(ctx, "p1")
		if err != nil {
			t.Fatalf("PhotoAlbums() error = %v", err)
		}
		if len(albums) != 2 || albums[0] != "Trip 2019" || albums[1] != "Favorites" {
			t.Errorf("unexpected albums %v", albums)
		}
	})

	t.Run("Renditions keep listing order", func(t *testing.T) {
		srv, _ := fakeFlickr(t, responses)
		sizes, err := newTestFlickr(t, srv.URL).Renditions(ctx, "p1")
		if err != nil {
			t.Fatalf("Renditions() error = %v", err)
		}
		if len(sizes) != 2 || sizes[1].Label != "Original" || sizes[1].URL != "https://live.staticflickr.com/o.jpg" {
			t.Errorf("unexpected renditions %+v", sizes)
		}
	})

	t.Run("Unknown user", func(t *testing.T) {
		srv, _ := fakeFlickr(t, map[string]string{
			"flickr.people.findByUsername": `{"stat":"fail","code":1,"message":"User not found"}`,
		})
		_, err := newTestFlickr(t, srv.URL).PhotoCount(ctx)
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("API failure", func(t *testing.T) {
		srv, _ := fakeFlickr(t, map[string]string{
			"flickr.photos.getSizes": `{"stat":"fail","code":105,"message":"Service currently unavailable"}`,
		})
		_, err := newTestFlickr(t, srv.URL).Renditions(ctx, "p1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("HTTP error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestFlickr(t, srv.URL).PhotoAlbums(ctx, "p1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Transport failure", func(t *testing.T) {
		svc, _ := NewFlickrService(FlickrOptions{
			Username:   "micronar",
			Credential: StaticCredential("test_key"),
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))},
		})
		if _, err := svc.PhotoInfo(ctx, "p1"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Body read failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: make(http.Header)}
		svc, _ := NewFlickrService(FlickrOptions{
			Username:   "micronar",
			Credential: StaticCredential("test_key"),
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
		})
		if _, err := svc.PhotoInfo(ctx, "p1"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Empty API key", func(t *testing.T) {
		svc, _ := NewFlickrService(FlickrOptions{Username: "micronar", Credential: StaticCredential("")})
		if _, err := svc.PhotoInfo(ctx, "p1"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Download", func(t *testing.T) {
		jpeg := tu.JPEG(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/missing.jpg" {
				http.NotFound(w, r)
				return
			}
			w.Write(jpeg)
		}))
		defer srv.Close()

		svc := newTestFlickr(t, "http://unused")

		var buf bytes.Buffer
		if err := svc.Download(ctx, srv.URL+"/o.jpg", &buf); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if !bytes.Equal(buf.Bytes(), jpeg) {
			t.Error("downloaded bytes differ")
		}

		if err := svc.Download(ctx, srv.URL+"/missing.jpg", &buf); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest for 404, got %v", err)
		}
	})

	t.Run("Rate limit honours context", func(t *testing.T) {
		srv, _ := fakeFlickr(t, responses)
		svc, _ := NewFlickrService(FlickrOptions{
			BaseURL:    srv.URL,
			Username:   "micronar",
			Credential: StaticCredential("test_key"),
			RateLimit:  0.001,
		})

		if _, err := svc.PhotoAlbums(ctx, "p1"); err != nil {
			t.Fatalf("first call should use the burst: %v", err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := svc.PhotoAlbums(cancelled, "p1"); err == nil {
			t.Error("expected error waiting on limiter with cancelled context")
		}
	})
}

func TestFlexInt(t *testing.T) {
	tc := []struct {
		in   string
		want int
		err  bool
	}{
		{`12`, 12, false},
		{`"34"`, 34, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"x"`, 0, true},
	}
	for _, tt := range tc {
		var f flexInt
		err := f.UnmarshalJSON([]byte(tt.in))
		if (err != nil) != tt.err || int(f) != tt.want {
			t.Errorf("flexInt(%s) = %d, %v", tt.in, f, err)
		}
	}
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/pxm/internal/models"
	"github.com/desertthunder/pxm/internal/shared"
)

func TestGooglePhotosService(t *testing.T) {
	ctx := context.Background()

	newService := func(t *testing.T, h http.Handler) *GooglePhotosService {
		t.Helper()
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)
		return NewGooglePhotosService(StaticCredential("access"), srv.Client(), srv.URL, nil)
	}

	t.Run("Name", func(t *testing.T) {
		if NewGooglePhotosService(nil, nil, "", nil).Name() != "Google Photos" {
			t.Error("unexpected service name")
		}
	})

	t.Run("ListAlbums follows page tokens", func(t *testing.T) {
		requests := 0
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if r.Header.Get("Authorization") != "Bearer access" {
				t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
			}
			if r.URL.Path != "/albums" || r.URL.Query().Get("pageSize") != "50" {
				t.Errorf("unexpected request %s", r.URL)
			}
			switch r.URL.Query().Get("pageToken") {
			case "":
				fmt.Fprint(w, `{"albums":[{"id":"a1","title":"Trip 2019"}],"nextPageToken":"next"}`)
			case "next":
				fmt.Fprint(w, `{"albums":[{"id":"a2","title":"Favorites"}]}`)
			default:
				t.Errorf("unexpected page token")
			}
		}))

		albums, err := svc.ListAlbums(ctx)
		if err != nil {
			t.Fatalf("ListAlbums() error = %v", err)
		}
		if requests != 2 || len(albums) != 2 || albums[1].Title != "Favorites" || albums[1].ID != "a2" {
			t.Errorf("unexpected albums %+v after %d requests", albums, requests)
		}
	})

	t.Run("ListAlbums with no albums", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		albums, err := svc.ListAlbums(ctx)
		if err != nil || len(albums) != 0 {
			t.Errorf("ListAlbums() = %v, %v", albums, err)
		}
	})

	t.Run("CreateAlbum", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Album struct {
					Title string `json:"title"`
				} `json:"album"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad body: %v", err)
				return
			}
			if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
			}
			fmt.Fprintf(w, `{"id":"new-id","title":%q}`, body.Album.Title)
		}))

		album, err := svc.CreateAlbum(ctx, "Trip 2019")
		if err != nil {
			t.Fatalf("CreateAlbum() error = %v", err)
		}
		if album.ID != "new-id" || album.Title != "Trip 2019" {
			t.Errorf("unexpected album %+v", album)
		}

		if _, err := svc.CreateAlbum(ctx, "  "); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for blank title, got %v", err)
		}
	})

	t.Run("Upload", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/uploads" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("X-Goog-Upload-Protocol") != "raw" || r.Header.Get("X-Goog-Upload-File-Name") != "Sunset.jpg" {
				t.Errorf("missing upload headers: %v", r.Header)
			}
			if r.Header.Get("X-Goog-Upload-Content-Type") != "image/png" {
				t.Errorf("upload content type = %s, want image/png", r.Header.Get("X-Goog-Upload-Content-Type"))
			}
			if r.Header.Get("Content-Type") != "application/octet-stream" {
				t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "jpeg-bytes" {
				t.Errorf("unexpected body %q", body)
			}
			fmt.Fprint(w, "upload-token-1\n")
		}))

		token, err := svc.Upload(ctx, "Sunset.jpg", "image/png", strings.NewReader("jpeg-bytes"))
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if token != "upload-token-1" {
			t.Errorf("unexpected token %q", token)
		}
	})

	t.Run("Upload with empty token", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		if _, err := svc.Upload(ctx, "x.jpg", "image/jpeg", strings.NewReader("x")); !errors.Is(err, shared.ErrDestinationRequest) {
			t.Errorf("expected ErrDestinationRequest, got %v", err)
		}
	})

	t.Run("BatchCreate", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/mediaItems:batchCreate" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				NewMediaItems []googleNewMediaItem `json:"newMediaItems"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.NewMediaItems) != 2 || body.NewMediaItems[0].Description != "beach sunset" {
				t.Errorf("unexpected items %+v", body.NewMediaItems)
			}
			fmt.Fprint(w, `{"newMediaItemResults":[
				{"uploadToken":"t1","status":{"message":"Success"},"mediaItem":{"id":"m1"}},
				{"uploadToken":"t2","status":{"code":3,"message":"Failed: invalid token"}}
			]}`)
		}))

		results, err := svc.BatchCreate(ctx, []models.NewMediaItem{
			{Description: "beach sunset", FileName: "Sunset.jpg", Token: "t1"},
			{FileName: "p2.jpg", Token: "t2"},
		})
		if err != nil {
			t.Fatalf("BatchCreate() error = %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if !results[0].OK() || results[0].MediaItemID != "m1" || results[0].Token != "t1" {
			t.Errorf("unexpected first result %+v", results[0])
		}
		if results[1].OK() || results[1].StatusCode != 3 {
			t.Errorf("second result should carry the failure: %+v", results[1])
		}
	})

	t.Run("BatchCreate limits", func(t *testing.T) {
		svc := NewGooglePhotosService(StaticCredential("access"), nil, "http://unused", nil)
		if results, err := svc.BatchCreate(ctx, nil); err != nil || results != nil {
			t.Errorf("empty batch should be a no-op, got %v, %v", results, err)
		}
		if _, err := svc.BatchCreate(ctx, make([]models.NewMediaItem, MaxBatchSize+1)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := svc.AddToAlbum(ctx, "a1", make([]string, MaxBatchSize+1)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("AddToAlbum", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/albums/a1:batchAddMediaItems" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body struct {
				MediaItemIDs []string `json:"mediaItemIds"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if strings.Join(body.MediaItemIDs, ",") != "m1,m2" {
				t.Errorf("unexpected ids %v", body.MediaItemIDs)
			}
			fmt.Fprint(w, `{}`)
		}))

		if err := svc.AddToAlbum(ctx, "a1", []string{"m1", "m2"}); err != nil {
			t.Errorf("AddToAlbum() error = %v", err)
		}
	})

	t.Run("API error message", func(t *testing.T) {
		svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"Request had insufficient authentication scopes.","status":"PERMISSION_DENIED"}}`)
		}))

		_, err := svc.ListAlbums(ctx)
		if !errors.Is(err, shared.ErrDestinationRequest) {
			t.Fatalf("expected ErrDestinationRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "insufficient authentication scopes") {
			t.Errorf("error should carry the API message: %v", err)
		}
	})

	t.Run("Credential failure stops the request", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
		defer srv.Close()

		svc := NewGooglePhotosService(StaticCredential(""), srv.Client(), srv.URL, nil)
		if _, err := svc.ListAlbums(ctx); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if called {
			t.Error("no request should be sent without a token")
		}

		if _, err := NewGooglePhotosService(nil, nil, srv.URL, nil).ListAlbums(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

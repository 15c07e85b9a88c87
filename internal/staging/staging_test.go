package staging_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonesrussell/reelcast/internal/logger"
	"github.com/jonesrussell/reelcast/internal/staging"
)

func newTmpFilesServer(t *testing.T, status int, pageURL string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/upload" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]string{"url": pageURL},
			})
		}
	}))
}

func TestTmpFilesUploadRewritesDownloadURL(t *testing.T) {
	srv := newTmpFilesServer(t, http.StatusOK, "https://tmpfiles.org/12345/reel.mp4")
	defer srv.Close()

	host := staging.NewTmpFiles(srv.Client())
	host.BaseURL = srv.URL

	url, err := host.Upload(context.Background(), []byte("video"), "reel.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	want := "https://tmpfiles.org/dl/12345/reel.mp4"
	if url != want {
		t.Errorf("Upload() url = %q, want %q", url, want)
	}
}

func TestImgurUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Client-ID ") {
			t.Errorf("Authorization = %q, want Client-ID prefix", got)
		}
		if r.FormValue("image") == "" {
			t.Error("missing base64 image field")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"link": "https://i.imgur.com/abc.jpg"},
		})
	}))
	defer srv.Close()

	host := staging.NewImgur(srv.Client(), "")
	host.BaseURL = srv.URL

	url, err := host.Upload(context.Background(), []byte{0xFF, 0xD8}, "frame.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if url != "https://i.imgur.com/abc.jpg" {
		t.Errorf("Upload() url = %q", url)
	}
}

func TestImgbbUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("key") != "k-123" {
			t.Errorf("key = %q, want %q", r.FormValue("key"), "k-123")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"url": "https://i.ibb.co/abc.jpg"},
		})
	}))
	defer srv.Close()

	host := staging.NewImgbb(srv.Client(), "k-123")
	host.BaseURL = srv.URL

	url, err := host.Upload(context.Background(), []byte{0xFF, 0xD8}, "frame.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if url != "https://i.ibb.co/abc.jpg" {
		t.Errorf("Upload() url = %q", url)
	}
}

func TestStagerFallsBackToNextHost(t *testing.T) {
	failing := newTmpFilesServer(t, http.StatusInternalServerError, "")
	defer failing.Close()

	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"link": "https://i.imgur.com/fallback.jpg"},
		})
	}))
	defer working.Close()

	tmpfiles := staging.NewTmpFiles(failing.Client())
	tmpfiles.BaseURL = failing.URL
	imgur := staging.NewImgur(working.Client(), "")
	imgur.BaseURL = working.URL

	stager := staging.NewStager([]staging.Host{tmpfiles, imgur}, nil, logger.NewNopLogger())

	url, err := stager.Stage(context.Background(), []byte{0xFF, 0xD8}, "frame.jpg", "image/jpeg")
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if url != "https://i.imgur.com/fallback.jpg" {
		t.Errorf("Stage() url = %q, want fallback host url", url)
	}
}

func TestStagerAllHostsFailed(t *testing.T) {
	failing := newTmpFilesServer(t, http.StatusInternalServerError, "")
	defer failing.Close()

	tmpfiles := staging.NewTmpFiles(failing.Client())
	tmpfiles.BaseURL = failing.URL

	stager := staging.NewStager([]staging.Host{tmpfiles}, nil, logger.NewNopLogger())

	_, err := stager.Stage(context.Background(), []byte("data"), "reel.mp4", "video/mp4")
	if !errors.Is(err, staging.ErrAllHostsFailed) {
		t.Errorf("Stage() error = %v, want ErrAllHostsFailed", err)
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %q, want HEAD", r.Method)
		}
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	stager := staging.NewStager(nil, srv.Client(), logger.NewNopLogger())

	if !stager.Probe(context.Background(), srv.URL+"/live") {
		t.Error("Probe() = false for live URL, want true")
	}
	if stager.Probe(context.Background(), srv.URL+"/gone") {
		t.Error("Probe() = true for missing URL, want false")
	}
}

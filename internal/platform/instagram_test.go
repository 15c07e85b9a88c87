package platform_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonesrussell/reelcast/internal/logger"
	"github.com/jonesrussell/reelcast/internal/platform"
)

// graphServer fakes the Graph API container lifecycle
type graphServer struct {
	t             *testing.T
	statusCode    string
	publishErrors int
	rateLimited   bool
	publishCalls  int
}

func (g *graphServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/12345/media":
			if r.FormValue("access_token") == "" {
				g.t.Error("media create missing access_token")
			}
			if r.FormValue("media_type") == "REELS" && r.FormValue("video_url") == "" {
				g.t.Error("REELS create missing video_url")
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})

		case r.Method == http.MethodGet && r.URL.Path == "/container-1":
			json.NewEncoder(w).Encode(map[string]string{"status_code": g.statusCode})

		case r.Method == http.MethodPost && r.URL.Path == "/12345/media_publish":
			g.publishCalls++
			if g.rateLimited {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "Application request limit reached", "code": 4},
				})
				return
			}
			if g.publishCalls <= g.publishErrors {
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{"message": "transient", "code": 2},
				})
				return
			}
			if r.FormValue("creation_id") != "container-1" {
				g.t.Errorf("publish creation_id = %q", r.FormValue("creation_id"))
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "post-99"})

		default:
			g.t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestInstagram(t *testing.T, g *graphServer) (*platform.Instagram, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)

	ig := platform.NewInstagram(srv.Client(), "12345", "token-abc", logger.NewNopLogger())
	ig.SetBaseURL(srv.URL)
	return ig, srv
}

func TestInstagramCreateMediaVideo(t *testing.T) {
	ig, _ := newTestInstagram(t, &graphServer{t: t, statusCode: "FINISHED"})

	id, err := ig.CreateMedia(context.Background(), platform.CreateRequest{
		AssetURL: "https://tmpfiles.org/dl/1/reel.mp4",
		Caption:  "caption",
		IsVideo:  true,
	})
	if err != nil {
		t.Fatalf("CreateMedia() error = %v", err)
	}
	if id != "container-1" {
		t.Errorf("CreateMedia() id = %q, want %q", id, "container-1")
	}
}

func TestInstagramGetStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   platform.Status
	}{
		{"FINISHED", platform.StatusFinished},
		{"IN_PROGRESS", platform.StatusInProgress},
		{"ERROR", platform.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			ig, _ := newTestInstagram(t, &graphServer{t: t, statusCode: tt.remote})

			got, err := ig.GetStatus(context.Background(), "container-1")
			if err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInstagramPublish(t *testing.T) {
	ig, _ := newTestInstagram(t, &graphServer{t: t, statusCode: "FINISHED"})

	postID, err := ig.Publish(context.Background(), "container-1")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if postID != "post-99" {
		t.Errorf("Publish() = %q, want %q", postID, "post-99")
	}
}

func TestInstagramPublishRateLimited(t *testing.T) {
	g := &graphServer{t: t, statusCode: "FINISHED", rateLimited: true}
	ig, _ := newTestInstagram(t, g)

	_, err := ig.Publish(context.Background(), "container-1")
	if !errors.Is(err, platform.ErrRateLimited) {
		t.Fatalf("Publish() error = %v, want ErrRateLimited", err)
	}
}

func TestInstagramBare429IsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("Too Many Requests"))
	}))
	t.Cleanup(srv.Close)

	ig := platform.NewInstagram(srv.Client(), "12345", "token-abc", logger.NewNopLogger())
	ig.SetBaseURL(srv.URL)

	_, err := ig.Publish(context.Background(), "container-1")
	if !errors.Is(err, platform.ErrRateLimited) {
		t.Fatalf("Publish() error = %v, want ErrRateLimited on a plain 429", err)
	}
}

func TestInstagramDriverRateLimitedSinglePublishAttempt(t *testing.T) {
	g := &graphServer{t: t, statusCode: "FINISHED", rateLimited: true}
	ig, _ := newTestInstagram(t, g)

	result := newTestDriver(ig).Run(context.Background(), platform.CreateRequest{
		AssetURL: "https://tmpfiles.org/dl/1/reel.mp4",
		IsVideo:  true,
	})

	if result.Reason != platform.ReasonRateLimited {
		t.Errorf("Reason = %q, want %q", result.Reason, platform.ReasonRateLimited)
	}
	if g.publishCalls != 1 {
		t.Errorf("publish calls = %d, want exactly 1", g.publishCalls)
	}
}

func TestInstagramDriverFullCycle(t *testing.T) {
	g := &graphServer{t: t, statusCode: "FINISHED", publishErrors: 1}
	ig, _ := newTestInstagram(t, g)

	result := newTestDriver(ig).Run(context.Background(), platform.CreateRequest{
		AssetURL: "https://tmpfiles.org/dl/1/reel.mp4",
		Caption:  "caption",
		IsVideo:  true,
	})

	if !result.Succeeded() {
		t.Fatalf("Run() result = %+v, want success", result)
	}
	if result.PostID != "post-99" {
		t.Errorf("PostID = %q, want %q", result.PostID, "post-99")
	}
	if g.publishCalls != 2 {
		t.Errorf("publish calls = %d, want 2 (one transient failure)", g.publishCalls)
	}
}

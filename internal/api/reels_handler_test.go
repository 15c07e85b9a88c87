package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/reelcast/internal/caption"
	"github.com/jonesrussell/reelcast/internal/config"
	"github.com/jonesrussell/reelcast/internal/domain"
	"github.com/jonesrussell/reelcast/internal/logger"
)

type fakeRepo struct {
	reels      map[string]*domain.Reel
	enqueued   []*domain.Reel
	enqueueErr error
	requeued   []string
	requeueErr error
	resetCount int64
	stats      domain.Stats
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{reels: map[string]*domain.Reel{}}
}

func (r *fakeRepo) Enqueue(ctx context.Context, reel *domain.Reel) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	reel.ID = uuid.NewString()
	r.enqueued = append(r.enqueued, reel)
	r.reels[reel.ID] = reel
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Reel, error) {
	if reel, ok := r.reels[id]; ok {
		return reel, nil
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) GetByContentKey(ctx context.Context, key string) (*domain.Reel, error) {
	for _, reel := range r.reels {
		if reel.ContentKey == key {
			return reel, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) List(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Reel, error) {
	var out []domain.Reel
	for _, reel := range r.reels {
		if status == "" || reel.Status == status {
			out = append(out, *reel)
		}
	}
	return out, nil
}

func (r *fakeRepo) Count(ctx context.Context, status domain.Status) (int64, error) {
	reels, _ := r.List(ctx, status, 0, 0)
	return int64(len(reels)), nil
}

func (r *fakeRepo) GetStats(ctx context.Context) (*domain.Stats, error) {
	return &r.stats, nil
}

func (r *fakeRepo) Requeue(ctx context.Context, id string) error {
	if r.requeueErr != nil {
		return r.requeueErr
	}
	r.requeued = append(r.requeued, id)
	return nil
}

func (r *fakeRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	return r.resetCount, nil
}

type fakePinger struct{ err error }

func (p *fakePinger) PingContext(ctx context.Context) error { return p.err }

type fakeBlobPutter struct {
	stored map[string][]byte
	err    error
}

func (b *fakeBlobPutter) Put(ctx context.Context, key string, data []byte) error {
	if b.err != nil {
		return b.err
	}
	if b.stored == nil {
		b.stored = map[string][]byte{}
	}
	b.stored[key] = data
	return nil
}

type fakePosted struct{ keys map[string]bool }

func (p *fakePosted) HasPosted(ctx context.Context, contentKey string) bool {
	return p.keys[contentKey]
}

type apiFixture struct {
	repo   *fakeRepo
	blobs  *fakeBlobPutter
	posted *fakePosted
	engine *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		repo:   newFakeRepo(),
		blobs:  &fakeBlobPutter{},
		posted: &fakePosted{keys: map[string]bool{}},
	}
	cfg := &config.Config{}
	cfg.Blob.InlineThresholdBytes = 64
	cfg.Worker.StaleAfter = time.Hour

	router := NewRouter(RouterDeps{
		Repo:     f.repo,
		DB:       &fakePinger{},
		Blobs:    f.blobs,
		Posted:   f.posted,
		Captions: caption.NewBuilder("https://example.com", "Example News"),
		Config:   cfg,
		Logger:   logger.NewNopLogger(),
	})
	f.engine = router.SetupRoutes()
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func createBody(asset []byte) gin.H {
	return gin.H{
		"title":      "Local Bridge Reopens",
		"summary":    "The bridge reopened after repairs.",
		"source_url": "https://example.com/news/bridge",
		"category":   "local",
		"asset":      base64.StdEncoding.EncodeToString(asset),
		"asset_mime": "image/jpeg",
	}
}

func TestCreateReelInline(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("small-image")))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if len(f.repo.enqueued) != 1 {
		t.Fatalf("enqueued = %d reels, want 1", len(f.repo.enqueued))
	}
	reel := f.repo.enqueued[0]
	if string(reel.AssetData) != "small-image" {
		t.Error("small asset was not stored inline")
	}
	if reel.BlobKey != nil {
		t.Error("small asset should not have a blob key")
	}
	if reel.ContentKey == "" || len(reel.ContentKey) != 16 {
		t.Errorf("content key = %q, want 16 hex chars", reel.ContentKey)
	}
	if reel.Caption == "" {
		t.Error("caption was not built from the article")
	}
	if reel.Summary != "The bridge reopened after repairs." {
		t.Errorf("summary = %q, want the article summary", reel.Summary)
	}
	if len(f.blobs.stored) != 0 {
		t.Error("blob store used for an inline-sized asset")
	}
}

func TestCreateReelLargeAssetGoesToBlobStore(t *testing.T) {
	f := newAPIFixture(t)
	large := bytes.Repeat([]byte("x"), 100)

	w := f.do(t, http.MethodPost, "/api/v1/reels", createBody(large))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	reel := f.repo.enqueued[0]
	if reel.BlobKey == nil || *reel.BlobKey != reel.ContentKey {
		t.Errorf("blob key = %v, want the content key", reel.BlobKey)
	}
	if len(reel.AssetData) != 0 {
		t.Error("large asset should not be stored inline")
	}
	if !bytes.Equal(f.blobs.stored[reel.ContentKey], large) {
		t.Error("blob store did not receive the asset bytes")
	}
	if reel.AssetSize != 100 {
		t.Errorf("asset size = %d, want 100", reel.AssetSize)
	}
}

func TestCreateReelAlreadyPostedConflicts(t *testing.T) {
	f := newAPIFixture(t)
	// Same derivation the handler uses
	first := f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	f.posted.keys[f.repo.enqueued[0].ContentKey] = true

	w := f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if len(f.repo.enqueued) != 1 {
		t.Errorf("enqueued = %d reels, want 1", len(f.repo.enqueued))
	}
}

func TestCreateReelDuplicateKeyConflicts(t *testing.T) {
	f := newAPIFixture(t)
	first := f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	f.repo.enqueueErr = domain.ErrDuplicate

	w := f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	var resp struct {
		Reel *domain.Reel `json:"reel"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Reel == nil || resp.Reel.ID != f.repo.enqueued[0].ID {
		t.Errorf("conflict response reel = %+v, want the already-enqueued reel", resp.Reel)
	}
}

func TestCreateReelValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(gin.H)
	}{
		{"missing title", func(b gin.H) { delete(b, "title") }},
		{"missing source_url", func(b gin.H) { delete(b, "source_url") }},
		{"missing asset", func(b gin.H) { delete(b, "asset") }},
		{"invalid base64", func(b gin.H) { b["asset"] = "not base64!!!" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			body := createBody([]byte("img"))
			tt.mutate(body)

			w := f.do(t, http.MethodPost, "/api/v1/reels", body)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetReel(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))
	id := f.repo.enqueued[0].ID

	w := f.do(t, http.MethodGet, "/api/v1/reels/"+id, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var got domain.Reel
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
}

func TestGetReelNotFound(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/reels/"+uuid.NewString(), nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetReelInvalidID(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/reels/not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestListReels(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodPost, "/api/v1/reels", createBody([]byte("img")))

	w := f.do(t, http.MethodGet, "/api/v1/reels?status=pending", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Count int   `json:"count"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Count != 1 || resp.Total != 1 {
		t.Errorf("count = %d, total = %d, want 1 and 1", resp.Count, resp.Total)
	}
}

func TestRequeueReel(t *testing.T) {
	f := newAPIFixture(t)
	id := uuid.NewString()

	w := f.do(t, http.MethodPost, "/api/v1/reels/"+id+"/requeue", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(f.repo.requeued) != 1 || f.repo.requeued[0] != id {
		t.Errorf("requeued = %v, want [%s]", f.repo.requeued, id)
	}
}

func TestRequeueReelNotFailed(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.requeueErr = domain.ErrNotFound

	w := f.do(t, http.MethodPost, "/api/v1/reels/"+uuid.NewString()+"/requeue", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestResetStale(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.resetCount = 3

	w := f.do(t, http.MethodPost, "/api/v1/reels/reset-stale", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp struct {
		Reset int64 `json:"reset"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Reset != 3 {
		t.Errorf("reset = %d, want 3", resp.Reset)
	}
}

func TestGetStats(t *testing.T) {
	f := newAPIFixture(t)
	f.repo.stats = domain.Stats{Pending: 2, Posted: 5}

	w := f.do(t, http.MethodGet, "/api/v1/stats", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var stats domain.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if stats.Pending != 2 || stats.Posted != 5 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHealthDegradedWhenDatabaseDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Worker.StaleAfter = time.Hour

	router := NewRouter(RouterDeps{
		Repo:     newFakeRepo(),
		DB:       &fakePinger{err: errors.New("connection refused")},
		Blobs:    &fakeBlobPutter{},
		Posted:   &fakePosted{keys: map[string]bool{}},
		Captions: caption.NewBuilder("https://example.com", "Example News"),
		Config:   cfg,
		Logger:   logger.NewNopLogger(),
	})
	engine := router.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if health.Status != healthStatusDegraded {
		t.Errorf("health status = %q, want %q", health.Status, healthStatusDegraded)
	}
}

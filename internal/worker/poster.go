// Package worker provides the background poster that drains the reel queue.
package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/reelcast/internal/blob"
	"github.com/jonesrussell/reelcast/internal/caption"
	"github.com/jonesrussell/reelcast/internal/domain"
	"github.com/jonesrussell/reelcast/internal/logger"
	"github.com/jonesrussell/reelcast/internal/metrics"
	"github.com/jonesrussell/reelcast/internal/platform"
)

const (
	defaultPollInterval   = 15 * time.Minute
	defaultPublishTimeout = 5 * time.Minute
	defaultPostSpacing    = time.Minute
)

// ReelStore is the queue surface the poster needs.
type ReelStore interface {
	ClaimNextPending(ctx context.Context) (*domain.Reel, error)
	Complete(ctx context.Context, id string, outcome domain.Outcome) error
	SetAssetURL(ctx context.Context, id, url string) error
	GetStats(ctx context.Context) (*domain.Stats, error)
}

// BlobGetter loads out-of-row assets by blob key.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Composer renders the headline overlay onto image assets.
type Composer interface {
	Render(data []byte, headline, category string) []byte
}

// Stager uploads assets to public hosts and probes stored URLs.
type Stager interface {
	Stage(ctx context.Context, data []byte, filename, mime string) (string, error)
	Probe(ctx context.Context, url string) bool
}

// Publisher runs one platform's publish cycle.
type Publisher interface {
	Name() string
	Supports(isVideo bool) bool
	Run(ctx context.Context, req platform.CreateRequest) platform.Result
}

// PostedMarker records content keys in the advisory dedup cache.
type PostedMarker interface {
	MarkPosted(ctx context.Context, contentKey string) error
}

// Poster claims one pending reel per wake, prepares its asset, and fans the
// publish out across the configured platforms.
type Poster struct {
	store      ReelStore
	blobs      BlobGetter
	composer   Composer
	stager     Stager
	publishers []Publisher
	marker     PostedMarker
	captions   *caption.Builder
	metrics    *metrics.Metrics
	logger     logger.Logger
	tracer     trace.Tracer

	pollInterval   time.Duration
	publishTimeout time.Duration
	limiter        *rate.Limiter

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// PosterConfig holds configuration options
type PosterConfig struct {
	PollInterval   time.Duration
	PublishTimeout time.Duration
	PostSpacing    time.Duration
}

// PosterDeps bundles the poster's collaborators.
type PosterDeps struct {
	Store      ReelStore
	Blobs      BlobGetter
	Composer   Composer
	Stager     Stager
	Publishers []Publisher
	Marker     PostedMarker
	Captions   *caption.Builder
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// NewPoster creates a new poster worker
func NewPoster(deps PosterDeps, cfg PosterConfig) *Poster {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.PostSpacing <= 0 {
		cfg.PostSpacing = defaultPostSpacing
	}

	return &Poster{
		store:          deps.Store,
		blobs:          deps.Blobs,
		composer:       deps.Composer,
		stager:         deps.Stager,
		publishers:     deps.Publishers,
		marker:         deps.Marker,
		captions:       deps.Captions,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		tracer:         otel.Tracer("reel-poster"),
		pollInterval:   cfg.PollInterval,
		publishTimeout: cfg.PublishTimeout,
		limiter:        rate.NewLimiter(rate.Every(cfg.PostSpacing), 1),
		stopChan:       make(chan struct{}),
	}
}

// Start begins the polling loop
func (p *Poster) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("reel poster started",
		logger.Duration("poll_interval", p.pollInterval),
		logger.Int("platforms", len(p.publishers)))
}

// Stop gracefully stops the worker
func (p *Poster) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.stopChan)
	p.wg.Wait()
	p.logger.Info("reel poster stopped")
}

// IsRunning returns whether the worker is currently running
func (p *Poster) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Poster) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	p.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.ProcessOnce(ctx)
		case <-p.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce claims and publishes at most one reel. Posting cadence is the
// wake interval, so a single claim per wake is deliberate.
func (p *Poster) ProcessOnce(ctx context.Context) {
	reel, err := p.store.ClaimNextPending(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Debug("no pending reels")
		return
	}
	if err != nil {
		p.logger.Error("failed to claim pending reel", logger.Error(err))
		return
	}

	p.publishReel(ctx, reel)
	p.reportQueueDepth(ctx)
}

func (p *Poster) publishReel(ctx context.Context, reel *domain.Reel) {
	ctx, span := p.tracer.Start(ctx, "reel.publish",
		trace.WithAttributes(
			attribute.String("reel_id", reel.ID),
			attribute.String("content_key", reel.ContentKey),
			attribute.Bool("video", reel.IsVideo()),
		))
	defer span.End()

	data, loadFailure := p.loadAsset(ctx, reel)
	if loadFailure != nil {
		p.complete(ctx, reel, *loadFailure)
		return
	}

	if !reel.IsVideo() {
		rendered := p.composer.Render(data, reel.Headline, reel.Category)
		p.metrics.RecordOverlayRender(!bytes.Equal(rendered, data))
		data = rendered
	}

	assetURL, err := p.resolveAssetURL(ctx, reel, data)
	if err != nil {
		results := domain.PlatformResults{}
		for _, pub := range p.eligible(reel) {
			results[pub.Name()] = domain.PlatformResult{
				Reason: platform.ReasonStagingFailed,
				Error:  err.Error(),
			}
			p.metrics.RecordFailed(pub.Name(), platform.ReasonStagingFailed, 0)
		}
		p.complete(ctx, reel, domain.OutcomeFromResults(results))
		return
	}

	publishers := p.eligible(reel)
	if len(publishers) == 0 {
		p.complete(ctx, reel, domain.ValidationOutcome("no platform supports this asset type"))
		return
	}

	// Spacing between outbound posts is enforced here, not per platform
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Warn("rate limiter wait aborted", logger.Error(err))
		return
	}

	req := platform.CreateRequest{
		AssetURL:    assetURL,
		Caption:     reel.Caption,
		Title:       p.captions.YouTubeTitle(reel.Headline),
		Description: p.captions.YouTubeDescription(reel.Summary, reel.Category),
		Mime:        reel.AssetMime,
		IsVideo:     reel.IsVideo(),
	}

	results := p.fanOut(ctx, publishers, req)
	outcome := domain.OutcomeFromResults(results)
	p.complete(ctx, reel, outcome)

	if outcome.Status == domain.StatusPosted {
		if err := p.marker.MarkPosted(ctx, reel.ContentKey); err != nil {
			p.logger.Warn("failed to mark content posted in cache",
				logger.String("content_key", reel.ContentKey),
				logger.Error(err))
		}
	}
}

// loadAsset returns the reel's bytes, inline or from the blob store. A
// missing asset is a validation failure: retrying cannot conjure the bytes.
func (p *Poster) loadAsset(ctx context.Context, reel *domain.Reel) ([]byte, *domain.Outcome) {
	if len(reel.AssetData) > 0 {
		return reel.AssetData, nil
	}
	if reel.BlobKey != nil && *reel.BlobKey != "" {
		data, err := p.blobs.Get(ctx, *reel.BlobKey)
		if errors.Is(err, blob.ErrNotFound) {
			outcome := domain.ValidationOutcome("asset blob expired before publishing")
			return nil, &outcome
		}
		if err != nil {
			p.logger.Error("failed to load asset blob",
				logger.String("blob_key", *reel.BlobKey),
				logger.Error(err))
			outcome := domain.OutcomeFromResults(domain.PlatformResults{})
			outcome.ErrorMessage = "asset blob unavailable: " + err.Error()
			return nil, &outcome
		}
		return data, nil
	}

	outcome := domain.ValidationOutcome("no asset available")
	return nil, &outcome
}

// resolveAssetURL reuses a still-live staged URL or stages the asset fresh.
func (p *Poster) resolveAssetURL(ctx context.Context, reel *domain.Reel, data []byte) (string, error) {
	if reel.AssetURL != nil && *reel.AssetURL != "" && p.stager.Probe(ctx, *reel.AssetURL) {
		p.logger.Debug("reusing staged asset URL", logger.String("url", *reel.AssetURL))
		return *reel.AssetURL, nil
	}

	filename := "frame.jpg"
	if reel.IsVideo() {
		filename = "reel.mp4"
	}
	url, err := p.stager.Stage(ctx, data, filename, reel.AssetMime)
	p.metrics.RecordStaging(err == nil)
	if err != nil {
		return "", err
	}

	// Persist the URL so a requeued reel can skip re-upload while the
	// host still serves it
	if saveErr := p.store.SetAssetURL(ctx, reel.ID, url); saveErr != nil {
		p.logger.Warn("failed to persist staged asset URL",
			logger.String("reel_id", reel.ID),
			logger.Error(saveErr))
	}
	return url, nil
}

func (p *Poster) eligible(reel *domain.Reel) []Publisher {
	var out []Publisher
	for _, pub := range p.publishers {
		if pub.Supports(reel.IsVideo()) {
			out = append(out, pub)
		}
	}
	return out
}

// fanOut runs the platforms concurrently, each under its own timeout.
func (p *Poster) fanOut(ctx context.Context, publishers []Publisher, req platform.CreateRequest) domain.PlatformResults {
	resultCh := make(chan platform.Result, len(publishers))
	var wg sync.WaitGroup

	for _, pub := range publishers {
		wg.Add(1)
		go func(pub Publisher) {
			defer wg.Done()

			pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
			defer cancel()

			start := time.Now()
			result := pub.Run(pubCtx, req)
			elapsed := time.Since(start).Seconds()

			if result.Succeeded() {
				p.metrics.RecordPosted(result.Platform, elapsed)
			} else {
				p.metrics.RecordFailed(result.Platform, result.Reason, elapsed)
			}
			resultCh <- result
		}(pub)
	}

	wg.Wait()
	close(resultCh)

	results := domain.PlatformResults{}
	for result := range resultCh {
		pr := domain.PlatformResult{
			PostID: result.PostID,
			Reason: result.Reason,
		}
		if result.Err != nil {
			pr.Error = result.Err.Error()
		}
		results[result.Platform] = pr
	}
	return results
}

func (p *Poster) complete(ctx context.Context, reel *domain.Reel, outcome domain.Outcome) {
	if err := p.store.Complete(ctx, reel.ID, outcome); err != nil {
		p.logger.Error("failed to record reel outcome",
			logger.String("reel_id", reel.ID),
			logger.String("status", string(outcome.Status)),
			logger.Error(err))
		return
	}

	if outcome.Status == domain.StatusPosted {
		p.logger.Info("reel posted",
			logger.String("reel_id", reel.ID),
			logger.String("content_key", reel.ContentKey))
	} else {
		p.logger.Warn("reel failed",
			logger.String("reel_id", reel.ID),
			logger.String("error", outcome.ErrorMessage))
	}
}

func (p *Poster) reportQueueDepth(ctx context.Context) {
	stats, err := p.store.GetStats(ctx)
	if err != nil {
		p.logger.Debug("failed to read queue stats", logger.Error(err))
		return
	}
	p.metrics.SetQueueDepth(string(domain.StatusPending), stats.Pending)
	p.metrics.SetQueueDepth(string(domain.StatusProcessing), stats.Processing)
	p.metrics.SetQueueDepth(string(domain.StatusPosted), stats.Posted)
	p.metrics.SetQueueDepth(string(domain.StatusFailed), stats.Failed)
}

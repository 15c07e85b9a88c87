package main

import (
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/reelcast/internal/blob"
	"github.com/jonesrussell/reelcast/internal/caption"
	"github.com/jonesrussell/reelcast/internal/compositor"
	"github.com/jonesrussell/reelcast/internal/config"
	"github.com/jonesrussell/reelcast/internal/database"
	"github.com/jonesrussell/reelcast/internal/dedup"
	"github.com/jonesrussell/reelcast/internal/logger"
	"github.com/jonesrussell/reelcast/internal/metrics"
	"github.com/jonesrussell/reelcast/internal/platform"
	redisclient "github.com/jonesrussell/reelcast/internal/redis"
	"github.com/jonesrussell/reelcast/internal/staging"
	"github.com/jonesrussell/reelcast/internal/worker"
)

// app holds the shared service dependencies built once at startup.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	db       *sqlx.DB
	redis    *redis.Client
	repo     *database.ReelRepository
	blobs    *blob.RedisStore
	tracker  *dedup.Tracker
	captions *caption.Builder
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// newApp loads configuration and connects the shared infrastructure.
func newApp() (*app, error) {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(db, log); err != nil {
		db.Close()
		return nil, err
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		repo:     database.NewReelRepository(db.DB),
		blobs:    blob.NewRedisStore(redisClient, cfg.Blob.TTL),
		tracker:  dedup.NewTracker(redisClient, cfg.Dedup.TTL, log),
		captions: caption.NewBuilder(cfg.Site.URL, cfg.Site.Name),
		registry: registry,
		metrics:  metrics.NewMetrics(registry),
	}, nil
}

// Close releases the shared connections.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// metricsHandler serves the service's Prometheus registry.
func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// buildStager assembles the asset staging chain: tmpfiles first, imgur as
// fallback, imgbb last when a key is configured.
func (a *app) buildStager() *staging.Stager {
	client := &http.Client{Timeout: a.cfg.Staging.Timeout}

	hosts := []staging.Host{
		staging.NewTmpFiles(client),
		staging.NewImgur(client, staging.DefaultImgurClientID),
	}
	if a.cfg.Staging.ImgbbKey != "" {
		hosts = append(hosts, staging.NewImgbb(client, a.cfg.Staging.ImgbbKey))
	}

	return staging.NewStager(hosts, client, a.log)
}

// buildPublishers wires one driver per enabled platform.
func (a *app) buildPublishers() []worker.Publisher {
	var publishers []worker.Publisher

	if a.cfg.Instagram.Enabled {
		ig := platform.NewInstagram(nil, a.cfg.Instagram.AccountID, a.cfg.Instagram.AccessToken, a.log)
		publishers = append(publishers, platform.NewDriver(ig, a.log))
	}
	if a.cfg.YouTube.Enabled {
		yt := platform.NewYouTube(nil, a.cfg.YouTube.AccessToken, a.log)
		publishers = append(publishers, platform.NewDriver(yt, a.log))
	}

	return publishers
}

// buildCompositor sets up the headline overlay renderer.
func (a *app) buildCompositor() (*compositor.Compositor, error) {
	fonts, err := compositor.NewProvider(a.cfg.Compositor.FontPath)
	if err != nil {
		return nil, err
	}

	opts := compositor.DefaultOptions()
	opts.Watermark = a.cfg.Compositor.Watermark
	if a.cfg.Compositor.MaxOverlayRatio > 0 {
		opts.MaxOverlayRatio = a.cfg.Compositor.MaxOverlayRatio
	}

	return compositor.New(fonts, opts, a.log), nil
}

// configPath resolves the config file location
func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yml"
}

// Package api exposes the HTTP surface of the reelcast service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/reelcast/internal/caption"
	"github.com/jonesrussell/reelcast/internal/config"
	"github.com/jonesrussell/reelcast/internal/domain"
	"github.com/jonesrussell/reelcast/internal/logger"
)

// Health constants.
const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// ReelStore is the repository surface the API needs.
type ReelStore interface {
	Enqueue(ctx context.Context, reel *domain.Reel) error
	GetByID(ctx context.Context, id string) (*domain.Reel, error)
	GetByContentKey(ctx context.Context, key string) (*domain.Reel, error)
	List(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Reel, error)
	Count(ctx context.Context, status domain.Status) (int64, error)
	GetStats(ctx context.Context) (*domain.Stats, error)
	Requeue(ctx context.Context, id string) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Pinger reports database connectivity. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BlobPutter stores oversized assets out of row.
type BlobPutter interface {
	Put(ctx context.Context, key string, data []byte) error
}

// PostedChecker consults the advisory posted-content cache.
type PostedChecker interface {
	HasPosted(ctx context.Context, contentKey string) bool
}

// Router holds the API dependencies
type Router struct {
	repo        ReelStore
	db          Pinger
	redisClient *redis.Client
	blobs       BlobPutter
	posted      PostedChecker
	captions    *caption.Builder
	metrics     http.Handler
	cfg         *config.Config
	logger      logger.Logger
}

// RouterDeps bundles the router's collaborators.
type RouterDeps struct {
	Repo        ReelStore
	DB          Pinger
	RedisClient *redis.Client
	Blobs       BlobPutter
	Posted      PostedChecker
	Captions    *caption.Builder
	Metrics     http.Handler
	Config      *config.Config
	Logger      logger.Logger
}

// NewRouter creates a new API router
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		repo:        deps.Repo,
		db:          deps.DB,
		redisClient: deps.RedisClient,
		blobs:       deps.Blobs,
		posted:      deps.Posted,
		captions:    deps.Captions,
		metrics:     deps.Metrics,
		cfg:         deps.Config,
		logger:      deps.Logger,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(r.logger))

	// Health check (public, no auth)
	router.GET("/health", r.healthCheck)

	if r.metrics != nil {
		router.GET("/metrics", gin.WrapH(r.metrics))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/stats", r.getStats)

	reels := v1.Group("/reels")
	reels.POST("", r.createReel)
	reels.GET("", r.listReels)
	reels.POST("/reset-stale", r.resetStale) // More specific route before :id
	reels.GET("/:id", r.getReel)
	reels.POST("/:id/requeue", r.requeueReel)

	return router
}

// healthCheck returns the service health status
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "reelcast",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if err := r.db.PingContext(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{
		"connected": dbConnected,
	}

	redisHealth := r.checkRedisHealth(ctx)
	health["redis"] = redisHealth

	if connected, ok := redisHealth["connected"].(bool); ok && !connected {
		if health["status"] == healthStatusHealthy {
			health["status"] = healthStatusDegraded
		}
	}

	c.JSON(http.StatusOK, health)
}

// checkRedisHealth checks Redis connection and returns health info
func (r *Router) checkRedisHealth(ctx context.Context) gin.H {
	if r.redisClient == nil {
		return gin.H{
			"connected": false,
			"error":     "Redis client not initialized",
		}
	}

	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		return gin.H{
			"connected": false,
			"error":     err.Error(),
		}
	}
	return gin.H{
		"connected": true,
	}
}

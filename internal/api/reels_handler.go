package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/reelcast/internal/domain"
	"github.com/jonesrussell/reelcast/internal/identity"
	"github.com/jonesrussell/reelcast/internal/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// createReelRequest is the ingestion payload for one article.
type createReelRequest struct {
	Title     string   `json:"title" binding:"required"`
	Summary   string   `json:"summary"`
	SourceURL string   `json:"source_url" binding:"required"`
	Category  string   `json:"category"`
	Asset     string   `json:"asset" binding:"required"` // base64-encoded image or video bytes
	AssetMime string   `json:"asset_mime"`
	Duration  *float64 `json:"duration"`
}

// createReel enqueues an article for publication
// POST /api/v1/reels
func (r *Router) createReel(c *gin.Context) {
	ctx := c.Request.Context()

	var req createReelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request payload",
			"details": err.Error(),
		})
		return
	}

	assetData, err := base64.StdEncoding.DecodeString(req.Asset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Asset must be base64-encoded",
		})
		return
	}

	contentKey := identity.DeriveKey(req.Title, req.SourceURL)
	if r.posted.HasPosted(ctx, contentKey) {
		c.JSON(http.StatusConflict, gin.H{
			"error":       "Content already posted",
			"content_key": contentKey,
		})
		return
	}

	igCaption := r.captions.Instagram(req.Title, req.Summary, req.Category)
	reel, err := domain.NewReel(contentKey, req.Title, igCaption, req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	reel.Summary = req.Summary
	reel.SourceURL = &req.SourceURL
	reel.Duration = req.Duration
	if req.AssetMime != "" {
		reel.AssetMime = req.AssetMime
	}
	reel.AssetSize = int64(len(assetData))

	// Small assets travel inline in the row; large ones go to the blob store
	if len(assetData) > r.cfg.Blob.InlineThresholdBytes {
		if putErr := r.blobs.Put(ctx, contentKey, assetData); putErr != nil {
			r.logger.Error("failed to store asset blob",
				logger.String("content_key", contentKey),
				logger.Error(putErr))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to store asset",
			})
			return
		}
		key := contentKey
		reel.BlobKey = &key
	} else {
		reel.AssetData = assetData
	}

	if err := r.repo.Enqueue(ctx, reel); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			resp := gin.H{
				"error":       "Reel already enqueued for this content",
				"content_key": contentKey,
			}
			if existing, getErr := r.repo.GetByContentKey(ctx, contentKey); getErr == nil {
				resp["reel"] = existing
			}
			c.JSON(http.StatusConflict, resp)
			return
		}
		r.logger.Error("failed to enqueue reel",
			logger.String("content_key", contentKey),
			logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue reel",
		})
		return
	}

	c.JSON(http.StatusCreated, reel)
}

// listReels returns reels, optionally filtered by status
// GET /api/v1/reels?status=pending&limit=50&offset=0
func (r *Router) listReels(c *gin.Context) {
	ctx := c.Request.Context()

	status := domain.Status(c.Query("status"))
	limit := parsePositiveInt(c.DefaultQuery("limit", ""), defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := parsePositiveInt(c.DefaultQuery("offset", ""), 0)

	reels, err := r.repo.List(ctx, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list reels",
		})
		return
	}

	total, err := r.repo.Count(ctx, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count reels",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reels": reels,
		"count": len(reels),
		"total": total,
	})
}

// getReel retrieves a reel by ID
// GET /api/v1/reels/:id
func (r *Router) getReel(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "reel")
	if !ok {
		return
	}

	reel, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		handleRepositoryError(c, err, "reel", "get")
		return
	}

	c.JSON(http.StatusOK, reel)
}

// requeueReel moves a failed reel back to pending
// POST /api/v1/reels/:id/requeue
func (r *Router) requeueReel(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := parseUUID(c, "id", "reel")
	if !ok {
		return
	}

	if err := r.repo.Requeue(ctx, id.String()); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Reel not found or not in failed state",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to requeue reel",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     id.String(),
		"status": string(domain.StatusPending),
	})
}

// resetStale returns reels stuck in processing to pending
// POST /api/v1/reels/reset-stale
func (r *Router) resetStale(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := r.repo.ResetStale(ctx, r.cfg.Worker.StaleAfter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to reset stale reels",
		})
		return
	}

	if count > 0 {
		r.logger.Info("reset stale reels", logger.Int("count", int(count)))
	}

	c.JSON(http.StatusOK, gin.H{
		"reset": count,
	})
}

// getStats returns reel counts by status
// GET /api/v1/reels/stats
func (r *Router) getStats(c *gin.Context) {
	stats, err := r.repo.GetStats(c.Request.Context())
	if err != nil {
		r.logger.Error("failed to get stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve statistics",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// parsePositiveInt parses s, falling back when empty, invalid or negative.
func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

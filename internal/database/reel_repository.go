// Package database provides PostgreSQL access for the reelcast service.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/reelcast/internal/domain"
)

// reelSelectList is the column list for SELECT/RETURNING on reels (single source for schema changes)
const reelSelectList = `id, content_key, headline, summary, caption, source_url, category,
			asset_data, blob_key, asset_mime, asset_size, duration, asset_url,
			status, platform_results, retry_count, error_message,
			created_at, updated_at, posted_at`

// ReelRepository manages the durable reel queue in PostgreSQL
type ReelRepository struct {
	db *sql.DB
}

// NewReelRepository creates a new repository
func NewReelRepository(db *sql.DB) *ReelRepository {
	return &ReelRepository{db: db}
}

// Enqueue inserts a new pending reel. The UNIQUE constraint on content_key
// makes the insert the dedup point: a conflicting key returns ErrDuplicate.
func (r *ReelRepository) Enqueue(ctx context.Context, reel *domain.Reel) error {
	query := `
		INSERT INTO reels (content_key, headline, summary, caption, source_url, category,
			asset_data, blob_key, asset_mime, asset_size, duration, asset_url,
			status, platform_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (content_key) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		reel.ContentKey, reel.Headline, reel.Summary, reel.Caption, reel.SourceURL, reel.Category,
		reel.AssetData, reel.BlobKey, reel.AssetMime, reel.AssetSize, reel.Duration, reel.AssetURL,
		reel.Status, reel.PlatformResults,
	).Scan(&reel.ID, &reel.CreatedAt, &reel.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("enqueue reel: %w", err)
	}
	return nil
}

// ClaimNextPending atomically claims the oldest pending reel for processing.
// Uses FOR UPDATE SKIP LOCKED for concurrent worker safety.
// Returns ErrNotFound when the queue is empty.
func (r *ReelRepository) ClaimNextPending(ctx context.Context) (*domain.Reel, error) {
	query := `
		UPDATE reels
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM reels
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + reelSelectList

	reel, err := scanReel(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}
	return reel, nil
}

// Complete records the terminal outcome of a pipeline run. Validation
// failures leave the retry counter untouched; posting failures increment it.
func (r *ReelRepository) Complete(ctx context.Context, id string, outcome domain.Outcome) error {
	query := `
		UPDATE reels
		SET status = $2,
		    platform_results = $3,
		    error_message = NULLIF($4, ''),
		    retry_count = retry_count + CASE WHEN $5 THEN 1 ELSE 0 END,
		    posted_at = CASE WHEN $2 = 'posted' THEN NOW() ELSE posted_at END,
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id,
		outcome.Status, outcome.Results, outcome.ErrorMessage, outcome.CountRetry); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("complete reel: %w", err)
	}
	return nil
}

// SetAssetURL records the public URL of a staged asset so a later attempt
// can reuse it while the host still serves it
func (r *ReelRepository) SetAssetURL(ctx context.Context, id, url string) error {
	query := `
		UPDATE reels
		SET asset_url = $2, updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, id, url); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set asset url: %w", err)
	}
	return nil
}

// Requeue puts a failed reel back in the pending queue for another attempt
func (r *ReelRepository) Requeue(ctx context.Context, id string) error {
	query := `
		UPDATE reels
		SET status = 'pending',
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'failed'`
	if err := r.execExpectOneRow(ctx, query, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("requeue reel: %w", err)
	}
	return nil
}

// ResetStale resets "processing" reels older than the given age back to "pending".
// This handles reels that were claimed but whose worker crashed before completing.
func (r *ReelRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE reels
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing'
		  AND updated_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale: %w", err)
	}

	return result.RowsAffected()
}

// GetStats returns reel queue statistics
func (r *ReelRepository) GetStats(ctx context.Context) (*domain.Stats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'processing') as processing,
			COUNT(*) FILTER (WHERE status = 'posted') as posted,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COALESCE(AVG(EXTRACT(EPOCH FROM (posted_at - created_at)))
				FILTER (WHERE status = 'posted' AND posted_at > NOW() - INTERVAL '1 hour'), 0) as avg_publish_lag_seconds
		FROM reels`

	var stats domain.Stats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Pending,
		&stats.Processing,
		&stats.Posted,
		&stats.Failed,
		&stats.AvgPublishLagSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("get reel stats: %w", err)
	}
	return &stats, nil
}

// GetByID retrieves a single reel by ID
func (r *ReelRepository) GetByID(ctx context.Context, id string) (*domain.Reel, error) {
	query := `SELECT ` + reelSelectList + `
		FROM reels
		WHERE id = $1`

	reel, err := scanReel(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return reel, nil
}

// GetByContentKey retrieves a single reel by its content key
func (r *ReelRepository) GetByContentKey(ctx context.Context, key string) (*domain.Reel, error) {
	query := `SELECT ` + reelSelectList + `
		FROM reels
		WHERE content_key = $1`

	reel, err := scanReel(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get by content key: %w", err)
	}
	return reel, nil
}

// List returns reels ordered newest first, optionally filtered by status.
// An empty status returns all reels.
func (r *ReelRepository) List(ctx context.Context, status domain.Status, limit, offset int) ([]domain.Reel, error) {
	query := `SELECT ` + reelSelectList + `
		FROM reels
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reels: %w", err)
	}
	defer rows.Close()

	return scanReels(rows)
}

// Count returns the total number of reels by status
func (r *ReelRepository) Count(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reels WHERE status = $1`,
		status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row was affected
func (r *ReelRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReel(row rowScanner) (*domain.Reel, error) {
	var reel domain.Reel
	err := row.Scan(
		&reel.ID, &reel.ContentKey, &reel.Headline, &reel.Summary, &reel.Caption, &reel.SourceURL, &reel.Category,
		&reel.AssetData, &reel.BlobKey, &reel.AssetMime, &reel.AssetSize, &reel.Duration, &reel.AssetURL,
		&reel.Status, &reel.PlatformResults, &reel.RetryCount, &reel.ErrorMessage,
		&reel.CreatedAt, &reel.UpdatedAt, &reel.PostedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reel, nil
}

// initialReelCapacity is a reasonable default for list operations
const initialReelCapacity = 50

func scanReels(rows *sql.Rows) ([]domain.Reel, error) {
	reels := make([]domain.Reel, 0, initialReelCapacity)
	for rows.Next() {
		reel, err := scanReel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reel: %w", err)
		}
		reels = append(reels, *reel)
	}
	return reels, rows.Err()
}

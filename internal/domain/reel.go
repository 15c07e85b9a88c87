// Package domain contains the core domain models for the reelcast service.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an entity is not found in the database.
var ErrNotFound = errors.New("entity not found")

// ErrDuplicate is returned when enqueueing a reel whose content key already exists.
var ErrDuplicate = errors.New("reel already enqueued for content key")

// ErrInvalidReel is returned when creating a reel with invalid fields.
var ErrInvalidReel = errors.New("invalid reel")

// Status represents the state of a reel in the publishing pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPosted     Status = "posted"
	StatusFailed     Status = "failed"
)

// PlatformResult records the outcome of one platform's publish attempt.
type PlatformResult struct {
	PostID string `json:"post_id,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PlatformResults maps platform name to its publish outcome.
// Stored as JSONB in the reels table.
type PlatformResults map[string]PlatformResult

// Value implements driver.Valuer for JSONB storage.
func (p PlatformResults) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (p *PlatformResults) Scan(src any) error {
	if src == nil {
		*p = PlatformResults{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan platform results: unsupported type %T", src)
	}
	return json.Unmarshal(data, p)
}

// AnySucceeded reports whether at least one platform captured a post ID.
func (p PlatformResults) AnySucceeded() bool {
	for _, r := range p {
		if r.PostID != "" {
			return true
		}
	}
	return false
}

// Reel represents one content item awaiting publication as a social post.
// content_key carries the unique constraint that prevents double-publishing.
type Reel struct {
	ID              string          `db:"id"               json:"id"`
	ContentKey      string          `db:"content_key"      json:"content_key"`
	Headline        string          `db:"headline"         json:"headline"`
	Summary         string          `db:"summary"          json:"summary"`
	Caption         string          `db:"caption"          json:"caption"`
	SourceURL       *string         `db:"source_url"       json:"source_url,omitempty"`
	Category        string          `db:"category"         json:"category"`
	AssetData       []byte          `db:"asset_data"       json:"-"`
	BlobKey         *string         `db:"blob_key"         json:"blob_key,omitempty"`
	AssetMime       string          `db:"asset_mime"       json:"asset_mime"`
	AssetSize       int64           `db:"asset_size"       json:"asset_size"`
	Duration        *float64        `db:"duration"         json:"duration,omitempty"`
	AssetURL        *string         `db:"asset_url"        json:"asset_url,omitempty"`
	Status          Status          `db:"status"           json:"status"`
	PlatformResults PlatformResults `db:"platform_results" json:"platform_results"`
	RetryCount      int             `db:"retry_count"      json:"retry_count"`
	ErrorMessage    *string         `db:"error_message"    json:"error_message,omitempty"`
	CreatedAt       time.Time       `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"       json:"updated_at"`
	PostedAt        *time.Time      `db:"posted_at"        json:"posted_at,omitempty"`
}

// IsVideo reports whether the reel's asset is a video.
func (r *Reel) IsVideo() bool {
	return len(r.AssetMime) >= 6 && r.AssetMime[:6] == "video/"
}

// HasAsset reports whether the reel carries an asset, inline or by reference.
func (r *Reel) HasAsset() bool {
	return len(r.AssetData) > 0 || (r.BlobKey != nil && *r.BlobKey != "")
}

// Outcome is the aggregate result of one pipeline run for a reel.
// CountRetry is false for validation failures, where retrying cannot help.
type Outcome struct {
	Status       Status
	Results      PlatformResults
	ErrorMessage string
	CountRetry   bool
}

// OutcomeFromResults derives the aggregate outcome: posted if any platform
// succeeded, failed otherwise, with per-platform errors joined for the record.
func OutcomeFromResults(results PlatformResults) Outcome {
	if results.AnySucceeded() {
		return Outcome{Status: StatusPosted, Results: results}
	}
	msg := ""
	for name, r := range results {
		if r.Error == "" {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += name + ": " + r.Error
	}
	return Outcome{Status: StatusFailed, Results: results, ErrorMessage: msg, CountRetry: true}
}

// ValidationOutcome marks a reel failed for a reason that retrying cannot fix,
// e.g. no asset available. The retry counter is left untouched.
func ValidationOutcome(reason string) Outcome {
	return Outcome{
		Status:       StatusFailed,
		Results:      PlatformResults{},
		ErrorMessage: reason,
	}
}

// Stats holds reel counts by status for monitoring.
type Stats struct {
	Pending              int64   `json:"pending"`
	Processing           int64   `json:"processing"`
	Posted               int64   `json:"posted"`
	Failed               int64   `json:"failed"`
	AvgPublishLagSeconds float64 `json:"avg_publish_lag_seconds"`
}

// NewReel creates a pending reel with validation.
func NewReel(contentKey, headline, caption, category string) (*Reel, error) {
	if contentKey == "" {
		return nil, fmt.Errorf("%w: content_key is required", ErrInvalidReel)
	}
	if headline == "" {
		return nil, fmt.Errorf("%w: headline is required", ErrInvalidReel)
	}
	if caption == "" {
		return nil, fmt.Errorf("%w: caption is required", ErrInvalidReel)
	}
	if category == "" {
		category = "news"
	}

	now := time.Now()
	return &Reel{
		ContentKey:      contentKey,
		Headline:        headline,
		Caption:         caption,
		Category:        category,
		AssetMime:       "image/jpeg",
		Status:          StatusPending,
		PlatformResults: PlatformResults{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

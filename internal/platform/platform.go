// Package platform implements the stage-create-poll-publish protocol shared
// by the social targets.
package platform

import (
	"context"
	"errors"
)

// ErrRateLimited marks a platform refusal that retrying now would only make
// worse. The driver gives rate-limited calls exactly one attempt.
var ErrRateLimited = errors.New("platform rate limited")

// Status is the remote processing state of a created media container.
type Status string

const (
	StatusFinished   Status = "FINISHED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusError      Status = "ERROR"
)

// Failure reasons recorded in platform results.
const (
	ReasonStagingFailed    = "staging_failed"
	ReasonCreationFailed   = "creation_failed"
	ReasonProcessingFailed = "remote_processing_failed"
	ReasonRateLimited      = "rate_limited"
	ReasonPublishFailed    = "publish_failed"
)

// CreateRequest carries everything a platform needs to create a media
// container from a staged asset.
type CreateRequest struct {
	AssetURL    string
	Caption     string
	Title       string
	Description string
	Mime        string
	IsVideo     bool
}

// Platform is one social publishing target.
type Platform interface {
	Name() string

	// Supports reports whether the platform can carry the asset kind.
	Supports(isVideo bool) bool

	// RequiresProcessing reports whether created containers must be
	// polled before publishing.
	RequiresProcessing() bool

	// CreateMedia creates a media container and returns its creation ID.
	CreateMedia(ctx context.Context, req CreateRequest) (string, error)

	// GetStatus returns the processing state of a creation.
	GetStatus(ctx context.Context, creationID string) (Status, error)

	// Publish makes the creation live and returns the post ID.
	Publish(ctx context.Context, creationID string) (string, error)
}

// Result is the outcome of one platform's publish cycle.
type Result struct {
	Platform string
	PostID   string
	Reason   string
	Err      error
}

// Succeeded reports whether the cycle produced a live post.
func (r Result) Succeeded() bool {
	return r.PostID != ""
}

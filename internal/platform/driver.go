package platform

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/reelcast/internal/logger"
)

const (
	// defaultPollInterval is the wait between processing status checks
	defaultPollInterval = 5 * time.Second

	// defaultMaxPollAttempts bounds the processing wait at 2 minutes
	defaultMaxPollAttempts = 24

	// defaultPublishAttempts is the publish retry budget
	defaultPublishAttempts = 3

	// defaultBackoffBase is the first publish retry delay; later delays double
	defaultBackoffBase = 2 * time.Second
)

// Driver runs the create-poll-publish cycle against one platform with the
// retry policy applied uniformly across targets.
type Driver struct {
	platform        Platform
	logger          logger.Logger
	pollInterval    time.Duration
	maxPollAttempts int
	publishAttempts int
	backoffBase     time.Duration
	sleep           func(context.Context, time.Duration) error
}

// Option adjusts driver timing, mainly for tests.
type Option func(*Driver)

func WithPollInterval(d time.Duration) Option {
	return func(dr *Driver) { dr.pollInterval = d }
}

func WithBackoffBase(d time.Duration) Option {
	return func(dr *Driver) { dr.backoffBase = d }
}

func NewDriver(p Platform, log logger.Logger, opts ...Option) *Driver {
	d := &Driver{
		platform:        p,
		logger:          log,
		pollInterval:    defaultPollInterval,
		maxPollAttempts: defaultMaxPollAttempts,
		publishAttempts: defaultPublishAttempts,
		backoffBase:     defaultBackoffBase,
		sleep:           sleepCtx,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the wrapped platform's name.
func (d *Driver) Name() string { return d.platform.Name() }

// Supports reports whether the wrapped platform can carry the asset kind.
func (d *Driver) Supports(isVideo bool) bool { return d.platform.Supports(isVideo) }

// Run executes the full cycle. Creation gets one retry, a processing error
// aborts, a processing timeout publishes optimistically, and publishing
// retries with doubling backoff unless the platform reported a rate limit.
func (d *Driver) Run(ctx context.Context, req CreateRequest) Result {
	name := d.platform.Name()

	creationID, err := d.create(ctx, req)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return Result{Platform: name, Reason: ReasonRateLimited, Err: err}
		}
		return Result{Platform: name, Reason: ReasonCreationFailed, Err: err}
	}

	if d.platform.RequiresProcessing() {
		if err := d.awaitProcessing(ctx, creationID); err != nil {
			return Result{Platform: name, Reason: ReasonProcessingFailed, Err: err}
		}
	}

	postID, err := d.publish(ctx, creationID)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			return Result{Platform: name, Reason: ReasonRateLimited, Err: err}
		}
		return Result{Platform: name, Reason: ReasonPublishFailed, Err: err}
	}

	d.logger.Info("Published to platform",
		logger.String("platform", name),
		logger.String("post_id", postID),
	)
	return Result{Platform: name, PostID: postID}
}

// create attempts container creation, retrying once on transient failure.
func (d *Driver) create(ctx context.Context, req CreateRequest) (string, error) {
	creationID, err := d.platform.CreateMedia(ctx, req)
	if err == nil {
		return creationID, nil
	}
	if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
		return "", err
	}

	d.logger.Warn("Media creation failed, retrying once",
		logger.String("platform", d.platform.Name()),
		logger.Error(err),
	)
	if sleepErr := d.sleep(ctx, d.backoffBase); sleepErr != nil {
		return "", sleepErr
	}
	return d.platform.CreateMedia(ctx, req)
}

// awaitProcessing polls until the container is finished or errored. Poll
// exhaustion is not fatal: the platform may finish moments later, so the
// driver proceeds to publish and lets that call be the arbiter.
func (d *Driver) awaitProcessing(ctx context.Context, creationID string) error {
	for attempt := 1; attempt <= d.maxPollAttempts; attempt++ {
		status, err := d.platform.GetStatus(ctx, creationID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Status check failures fall back to waiting
			d.logger.Warn("Status check failed",
				logger.String("platform", d.platform.Name()),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		} else {
			switch status {
			case StatusFinished:
				return nil
			case StatusError:
				return errors.New("remote processing failed")
			}
		}

		if err := d.sleep(ctx, d.pollInterval); err != nil {
			return err
		}
	}

	d.logger.Warn("Media not ready after polling, publishing anyway",
		logger.String("platform", d.platform.Name()),
		logger.String("creation_id", creationID),
	)
	return nil
}

// publish retries with doubling backoff. A rate limit stops the cycle on
// the spot: the creation stays parked remotely and the reel is retried on
// a later schedule instead.
func (d *Driver) publish(ctx context.Context, creationID string) (string, error) {
	var lastErr error
	delay := d.backoffBase
	for attempt := 1; attempt <= d.publishAttempts; attempt++ {
		postID, err := d.platform.Publish(ctx, creationID)
		if err == nil {
			return postID, nil
		}
		if errors.Is(err, ErrRateLimited) || ctx.Err() != nil {
			return "", err
		}

		lastErr = err
		d.logger.Warn("Publish attempt failed",
			logger.String("platform", d.platform.Name()),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
		if attempt < d.publishAttempts {
			if err := d.sleep(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

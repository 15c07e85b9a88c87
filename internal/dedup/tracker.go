// Package dedup tracks recently posted content keys in Redis.
//
// The cache is advisory: the UNIQUE constraint on reels.content_key is the
// authoritative dedup point. The tracker lets callers skip enqueue work for
// content that was posted recently without a database round trip.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/reelcast/internal/logger"
)

type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewTracker(client *redis.Client, ttl time.Duration, log logger.Logger) *Tracker {
	return &Tracker{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

func (t *Tracker) key(contentKey string) string {
	return fmt.Sprintf("posted:reel:%s", contentKey)
}

// HasPosted reports whether the content key was marked posted recently.
// Redis errors are logged and treated as "not posted" so a cache outage
// never blocks the pipeline.
func (t *Tracker) HasPosted(ctx context.Context, contentKey string) bool {
	key := t.key(contentKey)

	exists, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		t.logger.Error("Redis error checking content key",
			logger.String("content_key", contentKey),
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return false
	}

	alreadyPosted := exists == 1
	t.logger.Debug("Checked posted cache",
		logger.String("content_key", contentKey),
		logger.Bool("already_posted", alreadyPosted),
	)

	return alreadyPosted
}

func (t *Tracker) MarkPosted(ctx context.Context, contentKey string) error {
	key := t.key(contentKey)

	err := t.client.Set(ctx, key, "1", t.ttl).Err()
	if err != nil {
		t.logger.Error("Redis error marking content as posted",
			logger.String("content_key", contentKey),
			logger.String("redis_key", key),
			logger.Duration("ttl", t.ttl),
			logger.Error(err),
		)
		return err
	}

	t.logger.Debug("Content marked as posted",
		logger.String("content_key", contentKey),
		logger.String("redis_key", key),
	)

	return nil
}

func (t *Tracker) Clear(ctx context.Context, contentKey string) error {
	key := t.key(contentKey)

	err := t.client.Del(ctx, key).Err()
	if err != nil {
		t.logger.Error("Redis error clearing content key",
			logger.String("content_key", contentKey),
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return err
	}

	return nil
}

// FlushAll removes all posted content keys from Redis.
// Uses SCAN rather than FLUSHDB so only the tracker's keys are touched.
func (t *Tracker) FlushAll(ctx context.Context) error {
	pattern := "posted:reel:*"
	var cursor uint64
	var deletedCount int

	const scanBatchSize = 100

	for {
		var keys []string
		var err error
		keys, cursor, err = t.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			t.logger.Error("Redis error scanning for keys",
				logger.String("pattern", pattern),
				logger.Error(err),
			)
			return fmt.Errorf("scan keys: %w", err)
		}

		if len(keys) > 0 {
			deleted, delErr := t.client.Del(ctx, keys...).Result()
			if delErr != nil {
				t.logger.Error("Redis error deleting keys",
					logger.Int("key_count", len(keys)),
					logger.Error(delErr),
				)
				return fmt.Errorf("delete keys: %w", delErr)
			}
			deletedCount += int(deleted)
		}

		if cursor == 0 {
			break
		}
	}

	t.logger.Info("Flushed posted cache",
		logger.Int("keys_deleted", deletedCount),
		logger.String("pattern", pattern),
	)

	return nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/skillmatch/skillmatch-backend/internal/clients/redis"
	"github.com/skillmatch/skillmatch-backend/internal/logger"
	pkgerrors "github.com/skillmatch/skillmatch-backend/internal/pkg/errors"
)

// RateLimiter bounds upstream model spend per user with a fixed window.
// Checked before every Analyzer or embedding model call; over the limit the
// caller fails fast with ErrRateLimited instead of queueing.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) error
}

type rateLimiter struct {
	log    *logger.Logger
	cache  redisclient.Cache
	limit  int64
	window time.Duration
}

func NewRateLimiter(baseLog *logger.Logger, cache redisclient.Cache, limit int, window time.Duration) RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		log:    baseLog.With("service", "RateLimiter"),
		cache:  cache,
		limit:  int64(limit),
		window: window,
	}
}

func (r *rateLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	// Window boundary in the key makes this a fixed window: counters from a
	// previous window simply age out via their TTL.
	windowStart := time.Now().Unix() / int64(r.window.Seconds())
	key := fmt.Sprintf("rl:model:%s:%d", userID, windowStart)

	n, err := r.cache.Incr(ctx, key, r.window)
	if err != nil {
		// Fail open: a cache outage should degrade accounting, not block
		// every model call.
		r.log.Warn("Rate limit counter unavailable, allowing call", "user_id", userID, "error", err)
		return nil
	}
	if n > r.limit {
		r.log.Warn("Model call rate limit exceeded",
			"user_id", userID,
			"count", n,
			"limit", r.limit,
			"window", r.window.String(),
		)
		return fmt.Errorf("model calls for user %s: %w", userID, pkgerrors.ErrRateLimited)
	}
	return nil
}

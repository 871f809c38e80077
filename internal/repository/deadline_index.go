package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// DeadlineIndex tracks timed IN_PROGRESS sessions in a Redis sorted set
// scored by deadline unix seconds, so the sweep can find due sessions
// without scanning PostgreSQL on every tick. Redis here is an accelerator:
// losing an entry only degrades the sweep to the DB fallback.
type DeadlineIndex struct {
	rdb *redis.Client
}

// NewDeadlineIndex creates a new DeadlineIndex.
func NewDeadlineIndex(rdb *redis.Client) *DeadlineIndex {
	return &DeadlineIndex{rdb: rdb}
}

// Add registers a session's deadline.
func (d *DeadlineIndex) Add(ctx context.Context, sessionID uuid.UUID, deadline time.Time) error {
	return d.rdb.ZAdd(ctx, config.CacheKey.SessionDeadlineIndex(), redis.Z{
		Score:  float64(deadline.Unix()),
		Member: sessionID.String(),
	}).Err()
}

// Remove drops a session from the index once it is finalized.
func (d *DeadlineIndex) Remove(ctx context.Context, sessionID uuid.UUID) error {
	return d.rdb.ZRem(ctx, config.CacheKey.SessionDeadlineIndex(), sessionID.String()).Err()
}

// Due returns sessions whose deadline is at or before now. Entries stay in
// the set until Remove; the finalize compare-and-set makes re-processing a
// due entry harmless.
func (d *DeadlineIndex) Due(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	members, err := d.rdb.ZRangeByScore(ctx, config.CacheKey.SessionDeadlineIndex(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Malformed member; drop it so it cannot wedge the sweep.
			_ = d.rdb.ZRem(ctx, config.CacheKey.SessionDeadlineIndex(), m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

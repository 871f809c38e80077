package repository

import (
	"context"
	"errors"
	"time"

	"github.com/praxislearn/assess-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// LoginIndex tracks the active login jti per learner in Redis. One entry
// per learner: a new login overwrites the previous jti, which invalidates
// the older token on its next request.
type LoginIndex struct {
	rdb *redis.Client
}

// NewLoginIndex creates a new LoginIndex.
func NewLoginIndex(rdb *redis.Client) *LoginIndex {
	return &LoginIndex{rdb: rdb}
}

// Save records the learner's active jti with the token's lifetime.
func (i *LoginIndex) Save(ctx context.Context, learnerID int, jti string, ttl time.Duration) error {
	return i.rdb.Set(ctx, config.CacheKey.LearnerLoginKey(learnerID), jti, ttl).Err()
}

// Get returns the learner's active jti, or "" when no login is recorded.
func (i *LoginIndex) Get(ctx context.Context, learnerID int) (string, error) {
	jti, err := i.rdb.Get(ctx, config.CacheKey.LearnerLoginKey(learnerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return jti, err
}

// Drop removes the learner's login record.
func (i *LoginIndex) Drop(ctx context.Context, learnerID int) error {
	return i.rdb.Del(ctx, config.CacheKey.LearnerLoginKey(learnerID)).Err()
}

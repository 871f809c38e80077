package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerLoginKey returns the cache key for a learner's login session.
func (r *CacheKeyStruct) LearnerLoginKey(learnerID int) string {
	return fmt.Sprintf("login:%d", learnerID)
}

// PaperPayloadKey returns the cache key for a paper's learner-facing payload.
func (r *CacheKeyStruct) PaperPayloadKey(paperID string) string {
	return fmt.Sprintf("paper:%s:payload", paperID)
}

// PaperAnswerKey returns the cache key for a paper's correctness key map.
func (r *CacheKeyStruct) PaperAnswerKey(paperID string) string {
	return fmt.Sprintf("paper:%s:key", paperID)
}

// SessionDeadlineIndex is the sorted set of timed IN_PROGRESS sessions,
// scored by deadline unix seconds. The expiry worker pops due entries.
func (r *CacheKeyStruct) SessionDeadlineIndex() string {
	return "sessions:deadlines"
}

var CacheKey = NewCacheKeyStruct()

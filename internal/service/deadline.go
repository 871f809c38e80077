package service

import (
	"time"

	"github.com/praxislearn/assess-backend/internal/model"
)

// The deadline authority: pure functions over the session's snapshot and
// the server clock. Client-reported countdowns are advisory UI only and are
// never consulted here.

// Deadline returns the session's hard deadline. ok is false for untimed
// sessions, which never expire.
func Deadline(s *model.Session) (deadline time.Time, ok bool) {
	if s.TimeLimitSeconds == nil {
		return time.Time{}, false
	}
	return s.StartedAt.Add(time.Duration(*s.TimeLimitSeconds) * time.Second), true
}

// IsExpired reports whether the deadline has passed at now. skew is a small
// fixed tolerance so a request that legitimately started just before the
// deadline is not rejected.
func IsExpired(s *model.Session, now time.Time, skew time.Duration) bool {
	deadline, ok := Deadline(s)
	if !ok {
		return false
	}
	return !now.Before(deadline.Add(skew))
}

// RemainingSeconds returns the whole seconds left before the deadline,
// clamped at zero. ok is false for untimed sessions.
func RemainingSeconds(s *model.Session, now time.Time) (remaining int, ok bool) {
	deadline, hasLimit := Deadline(s)
	if !hasLimit {
		return 0, false
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return int(left / time.Second), true
}

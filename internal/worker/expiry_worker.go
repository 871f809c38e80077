package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxislearn/assess-backend/internal/service"
	"github.com/rs/zerolog"
)

// dbScanEvery is how many ticks pass between full DB fallback scans. The
// Redis deadline index serves the common case; the scan catches sessions
// whose index entry was evicted or never written.
const dbScanEvery = 4

// expirer is the slice of SessionService the worker needs.
type expirer interface {
	FinalizeExpired(ctx context.Context, sessionID uuid.UUID) error
}

// expiredLister finds overdue sessions directly in storage.
type expiredLister interface {
	ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// ExpiryWorker is the background sweep: on a fixed interval it finds timed
// IN_PROGRESS sessions whose deadline has passed and finalizes them with
// reason TIMEOUT, independent of any client activity. The finalize
// compare-and-set makes it safe to run one sweep per instance.
type ExpiryWorker struct {
	sessions  expirer
	store     expiredLister
	deadlines service.DeadlineTracker
	interval  time.Duration
	log       zerolog.Logger

	now func() time.Time
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(
	sessions expirer,
	store expiredLister,
	deadlines service.DeadlineTracker,
	interval time.Duration,
	log zerolog.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		sessions:  sessions,
		store:     store,
		deadlines: deadlines,
		interval:  interval,
		log:       log.With().Str("component", "expiry_worker").Logger(),
		now:       time.Now,
	}
}

// Start begins the sweep loop. Call in a goroutine; returns when ctx ends.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("ExpiryWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ExpiryWorker stopped")
			return
		case <-ticker.C:
			tick++
			w.Sweep(ctx, tick%dbScanEvery == 0)
		}
	}
}

// Sweep runs one pass: the Redis deadline index first, then optionally the
// DB fallback scan. Exported so tests can drive passes without the ticker.
func (w *ExpiryWorker) Sweep(ctx context.Context, withDBScan bool) {
	now := w.now()

	due, err := w.deadlines.Due(ctx, now)
	if err != nil {
		w.log.Warn().Err(err).Msg("Deadline index read failed, falling back to DB scan")
		withDBScan = true
		due = nil
	}

	seen := make(map[uuid.UUID]struct{}, len(due))
	for _, id := range due {
		seen[id] = struct{}{}
	}

	if withDBScan {
		ids, err := w.store.ListExpired(ctx, now)
		if err != nil {
			w.log.Error().Err(err).Msg("Expired session scan failed")
		}
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				due = append(due, id)
			}
		}
	}

	for _, id := range due {
		if err := w.sessions.FinalizeExpired(ctx, id); err != nil {
			// Left in place; the next sweep retries it.
			w.log.Error().Err(err).Str("session_id", id.String()).
				Msg("Timeout finalize failed")
			continue
		}
	}

	if len(due) > 0 {
		w.log.Info().Int("count", len(due)).Msg("Swept expired sessions")
	}
}

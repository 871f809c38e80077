package service

import "errors"

// Domain errors returned by the session engine. Handlers map these to API
// error codes; infrastructure errors are wrapped and bubble up separately.
var (
	// ErrConfiguration: the paper cannot produce a non-empty question list.
	ErrConfiguration = errors.New("paper configuration invalid")

	// ErrNotFound: unknown session or question.
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the caller does not own the session. The gateway
	// renders this as NotFound so session existence never leaks.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState: mutation attempted on a COMPLETED session.
	ErrInvalidState = errors.New("session already completed")

	// ErrDeadlineExceeded: the deadline passed. The failing call has
	// already triggered auto-finalize, so the session itself converges to
	// COMPLETED.
	ErrDeadlineExceeded = errors.New("session deadline exceeded")

	// ErrConcurrencyConflict: the finalize compare-and-set failed but the
	// session did not read back as COMPLETED. Callers should re-read, not
	// retry the finalize.
	ErrConcurrencyConflict = errors.New("concurrent finalize conflict")

	// ErrResultNotReady: result requested before the session completed.
	ErrResultNotReady = errors.New("result not available yet")
)

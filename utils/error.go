package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Sync error taxonomy. Per-record errors are tallied, never abort a run;
// run-level errors become the run's terminal status.
var (
	// ErrInvalidRecord marks a legacy row whose natural identity is
	// missing or malformed. The row is never written to the cache.
	ErrInvalidRecord = errors.New("invalid legacy record: missing identity")

	// ErrSourceUnavailable means Globus could not be reached (or timed
	// out) after all retries were exhausted. Aborts the current run.
	ErrSourceUnavailable = errors.New("legacy source unavailable")

	// ErrSyncAlreadyInProgress is the scope-guard rejection. Callers
	// should treat it as "try again later", not as a hard failure.
	ErrSyncAlreadyInProgress = errors.New("sync already in progress for this scope")

	ErrSyncCancelled = errors.New("sync cancelled")
	ErrSyncTimeout   = errors.New("sync timed out")
)

package report

import "errors"

// Error taxonomy for the triage core. Callers classify with errors.Is;
// wrapped detail travels via fmt.Errorf("%w: ...", Err...).
var (
	// ErrInvalidInput means malformed coordinates, out-of-range scores, or
	// oversized text, rejected before any mutation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionFailed means a lifecycle guard was violated; the
	// report is unchanged and no activity was logged.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrNotFound means an unknown report or user id.
	ErrNotFound = errors.New("not found")

	// ErrOracleUnavailable means the verification collaborator failed; the
	// report stays in created and verification is safe to retry.
	ErrOracleUnavailable = errors.New("verification oracle unavailable")

	// ErrUnsupportedChannel means a notification was requested for an
	// unknown delivery channel.
	ErrUnsupportedChannel = errors.New("unsupported channel")
)

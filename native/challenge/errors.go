package challenge

import "errors"

var (
	errNilState   = errors.New("challenge engine: state not configured")
	errNilStaking = errors.New("challenge engine: staking ledger not configured")

	// ErrChallengeNotFound is returned when no record exists for the key.
	ErrChallengeNotFound = errors.New("challenge: record not found")
	// ErrInvalidMetadata marks launch requests missing a principal.
	ErrInvalidMetadata = errors.New("challenge: invalid metadata")

	// Permission errors.
	ErrPermission        = errors.New("challenge: caller not permitted in current state")
	ErrNotAllowedSweeper = errors.New("challenge: sweeper grace period not elapsed")
	ErrNotStale          = errors.New("challenge: record not stale, takeover not allowed")
	ErrSelfJoint         = errors.New("challenge: pathfinder cannot share joint benefits with itself")

	// State-mismatch errors.
	ErrNoChallengeAllowed = errors.New("challenge: active dispute in progress")
	ErrStatus             = errors.New("challenge: operation invalid for current status")
	ErrUploadIncomplete   = errors.New("challenge: upload not complete")

	// Progress and arithmetic errors.
	ErrTooMany    = errors.New("challenge: too many items in one call")
	ErrProgress   = errors.New("challenge: progress exceeds announced total")
	ErrOverflow   = errors.New("challenge: amount overflow")
	ErrUnderflow  = errors.New("challenge: amount underflow")
	ErrNotExpired = errors.New("challenge: dispute timeout not elapsed")
)

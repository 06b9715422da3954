package seeds

import "errors"

var (
	errNilState = errors.New("seeds engine: state not configured")
	errNilDeps  = errors.New("seeds engine: collaborators not configured")

	ErrCandidateExists   = errors.New("seeds: candidate already registered")
	ErrCandidateNotFound = errors.New("seeds: candidate not found")
	ErrInvalidTarget     = errors.New("seeds: invalid target")

	// Permission and timing errors.
	ErrPermission        = errors.New("seeds: caller not permitted")
	ErrHarvesting        = errors.New("seeds: round is harvesting")
	ErrConfirmPeriodOver = errors.New("seeds: confirm period elapsed")
	ErrNotConfirmed      = errors.New("seeds: candidates not ready for harvest")
	ErrChallengePending  = errors.New("seeds: challenge not harvested")
	ErrNoChallenge       = errors.New("seeds: no challenge open")

	// State-mismatch errors.
	ErrStage       = errors.New("seeds: operation invalid for dispute stage")
	ErrDepth       = errors.New("seeds: commitment depth exhausted")
	ErrIndexRange  = errors.New("seeds: index out of range")
	ErrEmptyUpload = errors.New("seeds: empty upload")

	// Commitment-soundness errors.
	ErrDuplicateOrder = errors.New("seeds: duplicate order in level")
	ErrDuplicatePath  = errors.New("seeds: duplicate path")
	ErrOrderWidth     = errors.New("seeds: order has wrong width")
	ErrOrderMismatch  = errors.New("seeds: endpoint hash outside disputed bucket")
	ErrScoreMismatch  = errors.New("seeds: score sum mismatch")
	ErrDigestMismatch = errors.New("seeds: commitment digest mismatch")
	ErrScoreOverflow  = errors.New("seeds: score overflow")

	// Path validity errors.
	ErrPathTooShort    = errors.New("seeds: path too short")
	ErrTargetNotInPath = errors.New("seeds: target not inside path")
	ErrInvalidWalk     = errors.New("seeds: path is not a valid walk")
	ErrPathTotal       = errors.New("seeds: shortest path count out of range")
	ErrPathLength      = errors.New("seeds: path length mismatch")
	ErrNotShorter      = errors.New("seeds: path not shorter")
	ErrPathCount       = errors.New("seeds: path count mismatch")
	ErrDisputedMissing = errors.New("seeds: disputed path not enumerated")
	ErrNotMissing      = errors.New("seeds: path is committed")
	ErrAlreadySeed     = errors.New("seeds: target already a seed")
)

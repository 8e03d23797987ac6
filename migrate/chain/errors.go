package chain

import "errors"

var (
	ErrMalformedFilename   = errors.New("malformed migration filename")
	ErrDuplicateVersion    = errors.New("duplicate migration version")
	ErrForkedHistory       = errors.New("forked migration history")
	ErrCycleDetected       = errors.New("cycle in migration history")
	ErrDanglingPredecessor = errors.New("migration references an unknown predecessor")
	ErrMultipleGenesis     = errors.New("multiple migrations without a predecessor")
)

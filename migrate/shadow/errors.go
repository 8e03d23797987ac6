package shadow

import "errors"

var (
	ErrCreateFailed = errors.New("failed to create ephemeral database")
	ErrDropFailed   = errors.New("failed to drop ephemeral database")
)

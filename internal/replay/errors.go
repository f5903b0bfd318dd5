package replay

import "errors"

var (
	// ErrInvalidOrdering is returned when frames are not strictly ordered by time.
	ErrInvalidOrdering = errors.New("frames are not in deterministic order")

	// ErrEmptyReplay is returned when a replay directory holds no frames.
	ErrEmptyReplay = errors.New("no frames to replay")
)

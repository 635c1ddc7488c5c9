package store

import "errors"

// Sentinel errors for store operations (spec §7).
var (
	ErrStoreClosed      = errors.New("store: operation requires an open store")
	ErrStoreOpen        = errors.New("store: operation requires a closed store")
	ErrInvalidFileIndex = errors.New("store: segment index outside (0, current+1]")
	ErrMissingTreeFiles = errors.New("store: segment files are not contiguous from 1")
	ErrMissingNode      = errors.New("store: history chain exhausted without a match")
	ErrStandaloneOnly   = errors.New("store: operation requires a standalone store")
)

// AssertionError signals a violated internal invariant rather than an
// I/O failure (e.g. a commit rolled over onto a segment it never opened).
type AssertionError struct{ Msg string }

func (e *AssertionError) Error() string { return "store: assertion failed: " + e.Msg }

package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: record with the same key already exists
//   - ErrInvalidState: record is in the wrong state for the mutation
//   - ErrUnavailable: backing system temporarily unavailable
//   - ErrReentrant: resource already held by the running transaction
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrReentrant    = errors.New("reentrant access")
)

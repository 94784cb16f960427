package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrDuplicate: a uniqueness constraint would be violated
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrVersionConflict: optimistic concurrency check failed
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate")
	ErrInvalidState    = errors.New("invalid state")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnavailable     = errors.New("unavailable")
)

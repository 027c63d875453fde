package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors without
// string matching.
//
// These represent factual states about stored records, not validation
// failures:
//   - ErrNotFound: record does not exist (or is archived / outside tenant scope)
//   - ErrDuplicate: a natural-key uniqueness constraint rejected the write
//   - ErrAlreadyResponded: an invitation row is no longer PENDING
//   - ErrInvalidState: entity in the wrong status for the requested transition
//
// For validation of caller input, use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate")
	ErrAlreadyResponded = errors.New("already responded")
	ErrInvalidState     = errors.New("invalid state")
)

package vectorstore

import "errors"

var (
	// ErrDuplicateID is returned by Insert when a record with the same ID is already stored.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidArgument is returned for malformed arguments such as an empty ID,
	// a NaN or infinite vector component, or a non-positive top-k.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInternalInconsistency means the index and the record store disagree about a slot.
	ErrInternalInconsistency = errors.New("internal inconsistency between index and records")
)

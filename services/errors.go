package services

import "errors"

// Domain error taxonomy. Routes map these to structured HTTP responses;
// nothing below ever carries internal stack detail to the caller.
var (
	// ErrExtractionFailed means no usable text could be extracted from an
	// uploaded file.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmptyDocument means ingestion produced zero chunks. Nothing is
	// persisted in that case.
	ErrEmptyDocument = errors.New("document produced no chunks")

	// ErrIndexUnavailable marks store failures on the query path. Retryable
	// by the caller.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrNotFound is returned for operations on unknown document ids.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidFilter is returned for malformed topic or safety values.
	ErrInvalidFilter = errors.New("invalid filter")
)

package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument signals a request parameter outside its allowed range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidVector signals a vector that cannot be normalized (zero length, NaN).
	ErrInvalidVector = errors.New("invalid vector")
	// ErrIndexPersist signals that the vector index could not be written to disk.
	ErrIndexPersist = errors.New("index persist failed")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrMalformedExpansion signals a query-expansion response that is not
	// a JSON object of the expected paraphrases.
	ErrMalformedExpansion = errors.New("malformed query expansion")
	// ErrSearchUnavailable signals that every branch of a fan-out search failed.
	ErrSearchUnavailable = errors.New("search unavailable")
)

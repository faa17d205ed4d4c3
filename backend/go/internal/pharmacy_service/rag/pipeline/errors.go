package pipeline

import "errors"

var (
	// ErrIndexUnavailable wraps failures of the embedder or the vector store.
	ErrIndexUnavailable = errors.New("retrieval index unavailable")
	// ErrEmptyCatalog means the source had no valid catalog rows.
	ErrEmptyCatalog = errors.New("catalog has no valid rows")
)

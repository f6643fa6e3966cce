package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChunksProduced is returned by LoadDocument when the text yields
	// zero chunks (e.g. an empty document).
	ErrNoChunksProduced = errors.New("session: document produced no chunks")

	// ErrSessionNotReady is returned by Answer and Retrieve before a
	// document has been loaded successfully.
	ErrSessionNotReady = errors.New("session: no document loaded")

	// ErrEmbeddingFailure matches every *EmbeddingError.
	ErrEmbeddingFailure = errors.New("session: embedding failed")

	// ErrGenerationFailure matches every *GenerationError.
	ErrGenerationFailure = errors.New("session: generation failed")
)

// EmbeddingError reports a failed call to the embedding provider.
type EmbeddingError struct {
	// ChunkIndex is the position of the chunk whose embedding failed, or -1
	// when the failing text was a question.
	ChunkIndex int
	// Err is the provider error, unmodified.
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("session: embedding failed for question: %v", e.Err)
	}
	return fmt.Sprintf("session: embedding failed for chunk %d: %v", e.ChunkIndex, e.Err)
}

// Unwrap exposes both the ErrEmbeddingFailure kind and the provider error.
func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbeddingFailure, e.Err} }

// GenerationError reports a failed call to the generation provider.
type GenerationError struct {
	// Err is the provider error, unmodified.
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("session: generation failed: %v", e.Err)
}

// Unwrap exposes both the ErrGenerationFailure kind and the provider error.
func (e *GenerationError) Unwrap() []error { return []error{ErrGenerationFailure, e.Err} }

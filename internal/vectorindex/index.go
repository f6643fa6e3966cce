// Package vectorindex holds chunk embeddings and answers exact
// nearest-neighbour queries by squared Euclidean distance.
//
// Two backends satisfy [Index]: [Flat], an in-memory brute-force scan that is
// the default, and [Qdrant], which delegates storage and exact search to a
// Qdrant collection. Both return hits positioned by the order of the vectors
// passed to Build, so callers can map a hit straight back to its chunk.
package vectorindex

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when vectors in a build do not share
	// one dimension, or when a query does not match the built dimension.
	ErrDimensionMismatch = errors.New("vectorindex: dimension mismatch")

	// ErrEmptyInput is returned when Build is called with no vectors.
	ErrEmptyInput = errors.New("vectorindex: no vectors to index")

	// ErrIndexNotBuilt is returned when Search is called before a
	// successful Build.
	ErrIndexNotBuilt = errors.New("vectorindex: index not built")
)

// Hit is a single search result.
type Hit struct {
	// Index is the 0-based position of the matched vector in the slice
	// passed to Build.
	Index int `json:"index"`
	// Distance is the squared Euclidean distance between the query and the
	// matched vector. Lower is closer.
	Distance float32 `json:"distance"`
}

// Index is the contract shared by all backends.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Build replaces the index content with vectors. On error the previous
	// content is left untouched.
	Build(ctx context.Context, vectors [][]float32) error

	// Search returns the min(k, Len()) nearest vectors to query, sorted by
	// ascending distance with ties broken by the lower index.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Len returns the number of indexed vectors (0 before any build).
	Len() int

	// Dimension returns the vector dimension of the current build
	// (0 before any build).
	Dimension() int

	// Clear drops the indexed vectors. Afterwards the index behaves as if
	// it had never been built.
	Clear(ctx context.Context) error
}

// uniformDimension returns the shared dimension of vectors, or an error
// when the batch is empty or ragged.
func uniformDimension(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrEmptyInput
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, ErrDimensionMismatch
	}
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return 0, ErrDimensionMismatch
		}
	}
	return dim, nil
}

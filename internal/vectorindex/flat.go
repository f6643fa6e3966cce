package vectorindex

import (
	"container/heap"
	"context"
	"slices"
	"sync"
)

// Flat is an in-memory exact index. Search computes the distance to every
// stored vector and keeps the k closest in a bounded max-heap, which is
// plenty for a single document of a few hundred chunks.
type Flat struct {
	// mu guards vectors and dim.
	mu sync.RWMutex
	// vectors holds a private copy of the last successful build.
	vectors [][]float32
	// dim is the shared dimension of vectors; 0 means not built.
	dim int
}

// NewFlat returns an empty Flat index.
func NewFlat() *Flat {
	return &Flat{}
}

// Build validates vectors and replaces the index content with a copy of them.
func (f *Flat) Build(_ context.Context, vectors [][]float32) error {
	dim, err := uniformDimension(vectors)
	if err != nil {
		return err
	}

	cp := make([][]float32, len(vectors))
	for i, v := range vectors {
		cp[i] = slices.Clone(v)
	}

	f.mu.Lock()
	f.vectors = cp
	f.dim = dim
	f.mu.Unlock()
	return nil
}

// Clear implements Index.
func (f *Flat) Clear(context.Context) error {
	f.mu.Lock()
	f.vectors = nil
	f.dim = 0
	f.mu.Unlock()
	return nil
}

// Search returns the k nearest stored vectors to query.
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.dim == 0 {
		return nil, ErrIndexNotBuilt
	}
	if len(query) != f.dim {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	k = min(k, len(f.vectors))

	h := make(worstFirst, 0, k)
	for i, v := range f.vectors {
		c := candidate{index: i, distance: squaredL2(query, v)}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if c.closerThan(h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	slices.SortFunc(h, func(a, b candidate) int {
		switch {
		case a.closerThan(b):
			return -1
		case b.closerThan(a):
			return 1
		default:
			return 0
		}
	})

	hits := make([]Hit, len(h))
	for i, c := range h {
		hits[i] = Hit{Index: c.index, Distance: float32(c.distance)}
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimension returns the dimension of the current build.
func (f *Flat) Dimension() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dim
}

// squaredL2 returns sum((a_i - b_i)^2), accumulated in float64.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// candidate is a scored position during a scan.
type candidate struct {
	index    int
	distance float64
}

// closerThan orders by distance, then by lower index.
func (c candidate) closerThan(o candidate) bool {
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	return c.index < o.index
}

// worstFirst is a max-heap over candidates: the root is the farthest of the
// current top-k, so it is the one to evict.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return h[j].closerThan(h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

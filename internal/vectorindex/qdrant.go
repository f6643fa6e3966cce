package vectorindex

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// upsertBatchSize caps the number of points sent per Upsert call.
const upsertBatchSize = 256

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the base collection name. Each build writes a fresh
	// generation named "<Collection>_<n>" and drops the previous one.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements Index on top of a Qdrant collection using exact
// (non-HNSW) Euclidean search. Point IDs are the build positions, so hits map
// back to chunks exactly as with Flat.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration.
	cfg *QdrantConfig

	// buildMu serialises builds so generations never interleave.
	buildMu sync.Mutex

	// mu guards the fields below.
	mu sync.RWMutex
	// active is the collection currently answering searches ("" = not built).
	active string
	// generation increments on every build attempt.
	generation int
	// size and dim describe the active collection.
	size int
	dim  int
}

// NewQdrant connects to Qdrant and returns an empty index.
func NewQdrant(cfg *QdrantConfig) (*Qdrant, error) {
	if cfg == nil {
		cfg = &QdrantConfig{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "docqa-chunks"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: qdrant: failed to create client: %w", err)
	}

	return &Qdrant{client: client, cfg: cfg}, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (q *Qdrant) Client() *qdrant.Client { return q.client }

// Build writes vectors into a new collection generation and switches
// searches over to it once every point is stored. A failure leaves the
// previously active generation in place.
func (q *Qdrant) Build(ctx context.Context, vectors [][]float32) error {
	dim, err := uniformDimension(vectors)
	if err != nil {
		return err
	}

	q.buildMu.Lock()
	defer q.buildMu.Unlock()

	q.mu.Lock()
	q.generation++
	name := fmt.Sprintf("%s_%d", q.cfg.Collection, q.generation)
	q.mu.Unlock()

	if err := q.writeCollection(ctx, name, dim, vectors); err != nil {
		_ = q.client.DeleteCollection(context.WithoutCancel(ctx), name)
		return err
	}

	q.mu.Lock()
	previous := q.active
	q.active, q.size, q.dim = name, len(vectors), dim
	q.mu.Unlock()

	if previous != "" {
		if err := q.client.DeleteCollection(ctx, previous); err != nil {
			return fmt.Errorf("vectorindex: qdrant: failed to drop collection %q: %w", previous, err)
		}
	}
	return nil
}

// writeCollection creates name and upserts all vectors into it.
func (q *Qdrant) writeCollection(ctx context.Context, name string, dim int, vectors [][]float32) error {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vectorindex: qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("vectorindex: qdrant: failed to drop stale collection %q: %w", name, err)
		}
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim), //nolint:gosec // dimension is positive
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: qdrant: failed to create collection %q: %w", name, err)
	}

	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vectors))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)), //nolint:gosec // i is non-negative
				Vectors: qdrant.NewVectors(vectors[i]...),
			})
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("vectorindex: qdrant: upsert failed: %w", err)
		}
	}
	return nil
}

// Search runs an exact Euclidean query against the active collection.
// Qdrant reports plain Euclidean distance; it is squared here so both
// backends share one metric.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	q.mu.RLock()
	name, size, dim := q.active, q.size, q.dim
	q.mu.RUnlock()

	if name == "" {
		return nil, ErrIndexNotBuilt
	}
	if len(query) != dim {
		return nil, ErrDimensionMismatch
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	limit := uint64(min(k, size)) //nolint:gosec // bounded by size
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		d := r.GetScore()
		hits = append(hits, Hit{Index: int(r.GetId().GetNum()), Distance: d * d}) //nolint:gosec // IDs are build positions
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return a.Index - b.Index
		}
	})
	return hits, nil
}

// Len returns the number of vectors in the active collection.
func (q *Qdrant) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.size
}

// Dimension returns the vector dimension of the active collection.
func (q *Qdrant) Dimension() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dim
}

// Clear deactivates the current generation and drops its collection.
func (q *Qdrant) Clear(ctx context.Context) error {
	q.buildMu.Lock()
	defer q.buildMu.Unlock()

	q.mu.Lock()
	name := q.active
	q.active, q.size, q.dim = "", 0, 0
	q.mu.Unlock()

	if name == "" {
		return nil
	}
	if err := q.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("vectorindex: qdrant: failed to drop collection %q: %w", name, err)
	}
	return nil
}

// Close drops the active collection and closes the gRPC connection.
func (q *Qdrant) Close() error {
	q.mu.RLock()
	name := q.active
	q.mu.RUnlock()

	if name != "" {
		_ = q.client.DeleteCollection(context.Background(), name)
	}
	return q.client.Close()
}

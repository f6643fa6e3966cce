// Package session owns the single loaded document: its chunk texts and the
// vector index built from their embeddings. It drives the two operations the
// service exposes, loading a document and answering a question about it.
//
// A Session is either Empty or Ready. LoadDocument moves it to Ready, Reset
// and any failed load move it back to Empty. Answers are always computed
// against one consistent chunk/index pair: the slow embedding work of a load
// happens outside the lock and the pair is replaced under the write lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/docqa-go/internal/chunker"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/vectorindex"
)

// DefaultTopK is the number of passages retrieved when the caller does not
// specify one.
const DefaultTopK = 3

// State is the lifecycle state of a Session.
type State string

const (
	// StateEmpty means no document is loaded.
	StateEmpty State = "empty"
	// StateReady means a document is loaded and questions can be answered.
	StateReady State = "ready"
)

// Document describes the loaded document. All fields are informational.
type Document struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Location string    `json:"location,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Status is a point-in-time snapshot of a Session.
type Status struct {
	State      State     `json:"state"`
	ChunkCount int       `json:"chunkCount"`
	Dimension  int       `json:"dimension"`
	Document   *Document `json:"document,omitempty"`
}

// Passage is a retrieved chunk together with its distance to the question.
type Passage struct {
	Index    int     `json:"index"`
	Text     string  `json:"text"`
	Distance float32 `json:"distance"`
}

// Config holds the dependencies and tunables for a Session.
type Config struct {
	// Embedder turns chunks and questions into vectors. Required.
	Embedder rag.Embedder
	// Generator produces the final answer from the assembled prompt. Required.
	Generator rag.Generator
	// Index stores chunk vectors. Defaults to an in-memory [vectorindex.Flat].
	Index vectorindex.Index
	// ChunkSize is the number of words per chunk. Defaults to
	// [chunker.DefaultChunkSize].
	ChunkSize int
	// TopK is the number of passages retrieved when Answer is called with
	// k <= 0. Defaults to [DefaultTopK].
	TopK int
	// Logger overrides the logger carried by the request context.
	Logger *slog.Logger
}

// Session is the process-wide retrieval state. It is safe for concurrent use.
type Session struct {
	embedder  rag.Embedder
	generator rag.Generator
	chunkSize int
	topK      int
	logger    *slog.Logger

	// loadMu serialises LoadDocument calls so the last completed load wins.
	loadMu sync.Mutex

	// mu guards every field below.
	mu     sync.RWMutex
	state  State
	chunks []string
	index  vectorindex.Index
	doc    *Document
}

// New validates cfg, applies defaults and returns an Empty Session.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: config must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("session: embedder must not be nil")
	}
	if cfg.Generator == nil {
		return nil, errors.New("session: generator must not be nil")
	}

	idx := cfg.Index
	if idx == nil {
		idx = vectorindex.NewFlat()
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultChunkSize
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	return &Session{
		embedder:  cfg.Embedder,
		generator: cfg.Generator,
		chunkSize: chunkSize,
		topK:      topK,
		logger:    cfg.Logger,
		state:     StateEmpty,
		index:     idx,
	}, nil
}

// log returns the configured logger, falling back to the one in ctx.
func (s *Session) log(ctx context.Context) *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.FromContext(ctx)
}

// LoadDocument replaces the loaded document with text and returns the number
// of chunks produced. See LoadNamedDocument.
func (s *Session) LoadDocument(ctx context.Context, text string) (int, error) {
	return s.LoadNamedDocument(ctx, Document{}, text)
}

// LoadNamedDocument chunks text, embeds every chunk in order, builds the index
// and marks the session Ready with doc as its descriptor. An empty doc.ID is
// replaced with a generated one.
//
// On any failure the session is left Empty.
func (s *Session) LoadNamedDocument(ctx context.Context, doc Document, text string) (int, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	log := s.log(ctx)
	start := time.Now()

	chunks := chunker.Split(text, s.chunkSize)
	if len(chunks) == 0 {
		s.reset(ctx)
		return 0, ErrNoChunksProduced
	}

	log.Debug("session: embedding chunks", slog.Int("chunks", len(chunks)))
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedOne(ctx, chunk)
		if err != nil {
			s.reset(ctx)
			return 0, &EmbeddingError{ChunkIndex: i, Err: err}
		}
		vectors[i] = vec
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.LoadedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Build(ctx, vectors); err != nil {
		s.clearLocked(ctx)
		return 0, fmt.Errorf("session: build index: %w", err)
	}
	s.chunks = chunks
	s.doc = &doc
	s.state = StateReady

	log.Info("session: document loaded",
		slog.String("document_id", doc.ID),
		slog.String("name", doc.Name),
		slog.Int("chunks", len(chunks)),
		slog.Int("dimension", s.index.Dimension()),
		slog.Duration("duration", time.Since(start)),
	)
	return len(chunks), nil
}

// Retrieve embeds question and returns the k closest passages, closest first.
// k <= 0 uses the configured TopK.
func (s *Session) Retrieve(ctx context.Context, question string, k int) ([]Passage, error) {
	if !s.ready() {
		return nil, ErrSessionNotReady
	}
	if k <= 0 {
		k = s.topK
	}

	query, err := s.embedOne(ctx, question)
	if err != nil {
		return nil, &EmbeddingError{ChunkIndex: -1, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return nil, ErrSessionNotReady
	}
	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("session: search: %w", err)
	}

	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(s.chunks) {
			return nil, fmt.Errorf("session: search returned out-of-range index %d", h.Index)
		}
		passages = append(passages, Passage{Index: h.Index, Text: s.chunks[h.Index], Distance: h.Distance})
	}
	return passages, nil
}

// Answer retrieves the k passages closest to question, assembles a prompt
// from them and returns the generator's output verbatim.
func (s *Session) Answer(ctx context.Context, question string, k int) (string, error) {
	passages, err := s.Retrieve(ctx, question, k)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	prompt := BuildPrompt(texts, question)

	s.log(ctx).Debug("session: generating answer",
		slog.Int("passages", len(passages)),
		slog.Int("prompt_chars", len(prompt)),
	)
	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return answer, nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{State: s.state}
	if s.state == StateReady {
		st.ChunkCount = len(s.chunks)
		st.Dimension = s.index.Dimension()
		doc := *s.doc
		st.Document = &doc
	}
	return st
}

// Reset discards the loaded document and returns the session to Empty.
func (s *Session) Reset() {
	s.reset(context.Background())
}

func (s *Session) reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

// clearLocked empties the chunk store and the index together. A failed index
// clear is logged only; searches are gated on StateReady.
func (s *Session) clearLocked(ctx context.Context) {
	s.state = StateEmpty
	s.chunks = nil
	s.doc = nil
	if err := s.index.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log(ctx).Warn("session: failed to clear index", slog.String("error", err.Error()))
	}
}

func (s *Session) ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateReady
}

// embedOne embeds a single text and checks the provider honoured the batch
// contract.
func (s *Session) embedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 input", len(out))
	}
	if len(out[0]) == 0 {
		return nil, errors.New("embedder returned an empty vector")
	}
	return out[0], nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/vectorindex"
)

// fakeEmbedder returns a fixed vector per text and counts calls.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  string
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if t == f.failOn {
			return nil, errors.New("provider unavailable")
		}
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out = append(out, v)
	}
	return out, nil
}

// recordingGenerator captures the prompt it receives.
type recordingGenerator struct {
	mu     sync.Mutex
	prompt string
	answer string
	err    error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = prompt
	return g.answer, g.err
}

func newTestSession(t *testing.T, emb rag.Embedder, gen rag.Generator, chunkSize int) *Session {
	t.Helper()
	s, err := New(&Config{Embedder: emb, Generator: gen, ChunkSize: chunkSize})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func twoChunkEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"alpha beta":  {1, 0},
		"gamma delta": {0, 1},
		"q":           {0.9, 0.1},
	}}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	gen := &recordingGenerator{}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"nil embedder", &Config{Generator: gen}},
		{"nil generator", &Config{Embedder: emb}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNew_StartsEmpty(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, twoChunkEmbedder(), &recordingGenerator{}, 2)
	st := s.Status()
	if st.State != StateEmpty || st.ChunkCount != 0 || st.Document != nil {
		t.Fatalf("unexpected initial status: %+v", st)
	}
}

func TestAnswer_EndToEnd(t *testing.T) {
	t.Parallel()
	gen := &recordingGenerator{answer: "the answer"}
	s := newTestSession(t, twoChunkEmbedder(), gen, 2)
	ctx := context.Background()

	n, err := s.LoadDocument(ctx, "alpha beta gamma delta")
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if n != 2 {
		t.Fatalf("chunk count = %d, want 2", n)
	}

	got, err := s.Answer(ctx, "q", 1)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "the answer" {
		t.Errorf("answer = %q, want generator output verbatim", got)
	}
	if !strings.Contains(gen.prompt, "alpha beta") {
		t.Errorf("prompt missing closest chunk: %q", gen.prompt)
	}
	if strings.Contains(gen.prompt, "gamma delta") {
		t.Errorf("prompt contains chunk beyond k=1: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "q") {
		t.Errorf("prompt missing question: %q", gen.prompt)
	}
}

func TestAnswer_PromptOrderClosestFirst(t *testing.T) {
	t.Parallel()
	gen := &recordingGenerator{answer: "ok"}
	emb := twoChunkEmbedder()
	emb.vectors["q"] = []float32{0.1, 0.9}
	s := newTestSession(t, emb, gen, 2)
	ctx := context.Background()

	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if _, err := s.Answer(ctx, "q", 0); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	want := BuildPrompt([]string{"gamma delta", "alpha beta"}, "q")
	if gen.prompt != want {
		t.Errorf("prompt =\n%q\nwant\n%q", gen.prompt, want)
	}
}

func TestRetrieve_ReturnsDistances(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, twoChunkEmbedder(), &recordingGenerator{}, 2)
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	passages, err := s.Retrieve(ctx, "q", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("len = %d, want min(k, chunks) = 2", len(passages))
	}
	if passages[0].Index != 0 || passages[0].Text != "alpha beta" {
		t.Errorf("first passage = %+v, want chunk 0", passages[0])
	}
	if passages[0].Distance > passages[1].Distance {
		t.Errorf("passages not sorted by distance: %+v", passages)
	}
}

func TestLoadDocument_EmptyText(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	s := newTestSession(t, emb, &recordingGenerator{}, 2)

	n, err := s.LoadDocument(context.Background(), "")
	if !errors.Is(err, ErrNoChunksProduced) {
		t.Fatalf("err = %v, want ErrNoChunksProduced", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if s.Status().State != StateEmpty {
		t.Errorf("state = %s, want empty", s.Status().State)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for empty document", emb.calls)
	}
}

func TestAnswer_BeforeLoad(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	gen := &recordingGenerator{}
	s := newTestSession(t, emb, gen, 2)

	_, err := s.Answer(context.Background(), "q", 1)
	if !errors.Is(err, ErrSessionNotReady) {
		t.Fatalf("err = %v, want ErrSessionNotReady", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called before load")
	}
}

func TestLoadDocument_EmbeddingFailureRollsBack(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	s := newTestSession(t, emb, &recordingGenerator{}, 2)
	ctx := context.Background()

	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("first load: %v", err)
	}

	emb.failOn = "gamma delta"
	_, err := s.LoadDocument(ctx, "alpha beta gamma delta")
	if !errors.Is(err, ErrEmbeddingFailure) {
		t.Fatalf("err = %v, want ErrEmbeddingFailure", err)
	}
	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("err is not *EmbeddingError: %T", err)
	}
	if ee.ChunkIndex != 1 {
		t.Errorf("ChunkIndex = %d, want 1", ee.ChunkIndex)
	}
	if s.Status().State != StateEmpty {
		t.Errorf("state after failed load = %s, want empty", s.Status().State)
	}
	if _, err := s.Answer(ctx, "q", 1); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Answer after failed load: err = %v, want ErrSessionNotReady", err)
	}
}

func TestLoadDocument_IndexBuildFailureRollsBack(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	idx := vectorindex.NewFlat()
	s, err := New(&Config{Embedder: emb, Generator: &recordingGenerator{}, Index: idx, ChunkSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("first load: %v", err)
	}

	emb.mu.Lock()
	emb.vectors["gamma delta"] = []float32{1}
	emb.mu.Unlock()

	_, err = s.LoadDocument(ctx, "alpha beta gamma delta")
	if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if st := s.Status(); st.State != StateEmpty || st.ChunkCount != 0 {
		t.Errorf("status after failed build = %+v, want empty", st)
	}
	if idx.Len() != 0 || idx.Dimension() != 0 {
		t.Errorf("index still holds the previous build: len=%d dim=%d", idx.Len(), idx.Dimension())
	}
	if _, err := s.Answer(ctx, "q", 1); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Answer after failed build: err = %v, want ErrSessionNotReady", err)
	}
}

func TestAnswer_QuestionEmbeddingFailure(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	s := newTestSession(t, emb, &recordingGenerator{}, 2)
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	emb.failOn = "q"
	_, err := s.Answer(ctx, "q", 1)
	var ee *EmbeddingError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EmbeddingError", err)
	}
	if ee.ChunkIndex != -1 {
		t.Errorf("ChunkIndex = %d, want -1", ee.ChunkIndex)
	}
	if s.Status().State != StateReady {
		t.Errorf("question failure must not change state")
	}
}

func TestAnswer_GenerationFailure(t *testing.T) {
	t.Parallel()
	cause := errors.New("model overloaded")
	s := newTestSession(t, twoChunkEmbedder(), &recordingGenerator{err: cause}, 2)
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	_, err := s.Answer(ctx, "q", 1)
	if !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("err = %v, want ErrGenerationFailure", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("provider cause not preserved: %v", err)
	}
}

func TestAnswer_QueryDimensionMismatch(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	emb.vectors["q"] = []float32{1, 0, 0}
	s := newTestSession(t, emb, &recordingGenerator{}, 2)
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	_, err := s.Answer(ctx, "q", 1)
	if !errors.Is(err, vectorindex.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestLoadDocument_ReplacesPrevious(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	emb.vectors["epsilon"] = []float32{0.5, 0.5}
	gen := &recordingGenerator{answer: "ok"}
	s := newTestSession(t, emb, gen, 2)
	ctx := context.Background()

	if _, err := s.LoadNamedDocument(ctx, Document{Name: "first.pdf"}, "alpha beta gamma delta"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	n, err := s.LoadNamedDocument(ctx, Document{Name: "second.pdf", ID: "doc-2"}, "epsilon")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}

	st := s.Status()
	if st.ChunkCount != 1 || st.Dimension != 2 {
		t.Errorf("status = %+v, want 1 chunk of dimension 2", st)
	}
	if st.Document == nil || st.Document.ID != "doc-2" || st.Document.Name != "second.pdf" {
		t.Errorf("document = %+v, want second.pdf/doc-2", st.Document)
	}

	if _, err := s.Answer(ctx, "q", 3); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if strings.Contains(gen.prompt, "alpha") {
		t.Errorf("prompt references a chunk from the replaced document: %q", gen.prompt)
	}
}

func TestLoadDocument_GeneratesID(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, twoChunkEmbedder(), &recordingGenerator{}, 2)
	if _, err := s.LoadDocument(context.Background(), "alpha beta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	doc := s.Status().Document
	if doc == nil || doc.ID == "" || doc.LoadedAt.IsZero() {
		t.Fatalf("document descriptor not populated: %+v", doc)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	idx := vectorindex.NewFlat()
	s, err := New(&Config{Embedder: twoChunkEmbedder(), Generator: &recordingGenerator{}, Index: idx, ChunkSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	s.Reset()
	if st := s.Status(); st.State != StateEmpty || st.ChunkCount != 0 {
		t.Fatalf("status after reset = %+v", st)
	}
	if idx.Len() != 0 {
		t.Errorf("index len after reset = %d, want 0", idx.Len())
	}
	if _, err := s.Answer(ctx, "q", 1); !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("Answer after reset: err = %v, want ErrSessionNotReady", err)
	}
}

func TestConcurrentLoadAndAnswer(t *testing.T) {
	t.Parallel()
	emb := twoChunkEmbedder()
	s := newTestSession(t, emb, rag.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		return prompt, nil
	}), 2)
	ctx := context.Background()
	if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.LoadDocument(ctx, "alpha beta gamma delta"); err != nil {
				t.Errorf("LoadDocument: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Answer(ctx, "q", 2); err != nil {
				t.Errorf("Answer: %v", err)
			}
		}()
	}
	wg.Wait()

	if st := s.Status(); st.State != StateReady || st.ChunkCount != 2 {
		t.Errorf("final status = %+v", st)
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()
	got := BuildPrompt([]string{"first", "second"}, "why?")
	if !strings.Contains(got, "first\nsecond") {
		t.Errorf("chunks not joined by newline in order: %q", got)
	}
	if strings.Index(got, "second") > strings.Index(got, `"why?"`) {
		t.Errorf("question must follow the context: %q", got)
	}
}

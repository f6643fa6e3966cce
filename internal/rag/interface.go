// Package rag defines the narrow interfaces the retrieval core consumes from
// external providers: an embedding model and a text-generation model.
// Concrete implementations live in the embedder and generator packages so
// the session and index logic never depend on a specific backend and can be
// tested with deterministic fakes.
package rag

import (
	"context"
)

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator is the interface for a text-completion provider.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate sends prompt to the model and returns its textual output.
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderFunc adapts a plain function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
)

// Generator answers prompts with a chat model. It implements rag.Generator
// and is safe for concurrent use.
type Generator struct {
	runnable         compose.Runnable[[]*schema.Message, *schema.Message]
	maxContextTokens int
}

// New validates cfg, constructs the backend chat model and compiles it into
// a chain.
func New(ctx context.Context, cfg *Config) (*Generator, error) {
	if cfg == nil {
		return nil, errors.New("generator: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithModel(ctx, m, cfg.Tuning.MaxContextTokens)
}

// NewFromEnv is shorthand for New(ctx, ConfigFromEnv()).
func NewFromEnv(ctx context.Context) (*Generator, error) {
	return New(ctx, ConfigFromEnv())
}

// NewWithModel wraps an already constructed chat model. maxContextTokens <= 0
// uses [budget.DefaultMaxContextTokens].
func NewWithModel(ctx context.Context, m model.BaseChatModel, maxContextTokens int) (*Generator, error) {
	if m == nil {
		return nil, errors.New("generator: chat model must not be nil")
	}
	if maxContextTokens <= 0 {
		maxContextTokens = budget.DefaultMaxContextTokens
	}
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(m)
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("generator: compile chain: %w", err)
	}
	return &Generator{runnable: runnable, maxContextTokens: maxContextTokens}, nil
}

// Generate sends prompt as a single user message and returns the model's
// reply content unmodified.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	msgs := []*schema.Message{schema.UserMessage(prompt)}

	if est, over := budget.Exceeds(msgs, g.maxContextTokens); over {
		logging.FromContext(ctx).Warn("generator: prompt exceeds context budget",
			slog.Int("estimated_tokens", est),
			slog.Int("max_context_tokens", g.maxContextTokens),
		)
	}

	out, err := g.runnable.Invoke(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generator: invoke model: %w", err)
	}
	if out == nil {
		return "", errors.New("generator: model returned no message")
	}
	return out.Content, nil
}

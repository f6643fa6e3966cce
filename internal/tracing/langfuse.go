// Package tracing wires Langfuse into the eino callback system so every
// chat-model invocation made through a compiled chain is traced.
package tracing

import (
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// Setup initialises the Langfuse callback handler if LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY are set. The returned flush function must be called
// before process exit so buffered traces are sent. When Langfuse is not
// configured it returns (nil, nil, false).
func Setup() (callbacks.Handler, func(), bool) {
	publicKey := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secretKey := os.Getenv("LANGFUSE_SECRET_KEY")
	if publicKey == "" || secretKey == "" {
		return nil, nil, false
	}
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "http://localhost:3000"
	}

	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: publicKey,
		SecretKey: secretKey,
		Name:      "docqa",
	})
	return handler, flusher, true
}

// Enable registers the Langfuse handler globally when configured and returns
// a flush function. The flush function is a no-op when tracing is disabled.
func Enable() (flush func(), enabled bool) {
	handler, flusher, ok := Setup()
	if !ok {
		return func() {}, false
	}
	callbacks.AppendGlobalHandlers(handler)
	return flusher, true
}

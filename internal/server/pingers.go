package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// HTTPPinger probes an HTTP dependency with a GET request. Any 2xx response
// counts as healthy. It is used for model backends that expose a cheap
// listing endpoint, such as Ollama's /api/tags, so readiness never spends
// tokens.
type HTTPPinger struct {
	name   string
	url    string
	header http.Header
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger that GETs url. header may be nil.
func NewHTTPPinger(name, url string, header http.Header) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, header: header, client: &http.Client{}}
}

// Name returns the backend label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping issues the GET and checks the status code.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range p.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned HTTP %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// pingFunc adapts any value with a Ping method, such as the archive bucket
// or the history store, to the Pinger interface.
type pingFunc struct {
	name string
	ping func(ctx context.Context) error
}

// NewPinger wraps dep under the given readiness label.
func NewPinger(name string, dep interface{ Ping(context.Context) error }) Pinger {
	return &pingFunc{name: name, ping: dep.Ping}
}

func (p *pingFunc) Name() string                   { return p.name }
func (p *pingFunc) Ping(ctx context.Context) error { return p.ping(ctx) }

package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/session"
	"github.com/54b3r/docqa-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request, including
	// an uploaded file.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single question from embedding to answer.
	// Defaults to 2 minutes.
	AskTimeout time.Duration
	// UploadTimeout bounds a single upload from extraction to indexing.
	// Defaults to 10 minutes since every chunk is embedded separately.
	UploadTimeout time.Duration
	// MaxUploadBytes caps the uploaded file size. Defaults to
	// [ingestion.MaxUploadBytes].
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// CORSOrigin is sent as Access-Control-Allow-Origin. Defaults to "*".
	CORSOrigin string
	// History records exchanges and serves GET /api/history. Optional.
	History History
	// MetricsRegistry receives the server's Prometheus collectors.
	// Defaults to a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Defaults to MetricsRegistry when
	// it is also a Gatherer.
	MetricsGatherer prometheus.Gatherer
}

// Answerer is the retrieval session as seen by the HTTP handlers.
// *session.Session satisfies it; tests inject a fake.
type Answerer interface {
	Answer(ctx context.Context, question string, k int) (string, error)
	Retrieve(ctx context.Context, question string, k int) ([]session.Passage, error)
	Status() session.Status
	Reset()
}

// Ingester processes an uploaded file. *ingestion.Pipeline satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, up ingestion.Upload) (*ingestion.Result, error)
}

// History persists and lists question/answer exchanges.
// *store.SQLiteStore satisfies it.
type History interface {
	RecordExchange(ctx context.Context, ex store.Exchange) error
	RecentExchanges(ctx context.Context, n int) ([]store.Exchange, error)
}

// Server is the HTTP server that exposes document upload and question
// answering.
type Server struct {
	// session answers questions about the loaded document.
	session Answerer
	// ingester turns uploads into the loaded document.
	ingester Ingester
	// history is optional; nil disables recording and GET /api/history.
	history History
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped root handler.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask and POST /api/search.
type askRequest struct {
	// Question is the natural-language question about the loaded document.
	Question string `json:"question"`
	// K is the number of passages to retrieve. Zero uses the server default.
	K int `json:"k,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	Answer string `json:"answer"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Passages []session.Passage `json:"passages"`
}

// uploadResponse is the JSON response for POST /api/upload.
type uploadResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunkCount"`
	Location   string `json:"location,omitempty"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	Exchanges []store.Exchange `json:"exchanges"`
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

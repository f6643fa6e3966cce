package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/docqa-go/internal/archive"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/extract"
	"github.com/54b3r/docqa-go/internal/generator"
	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/session"
	"github.com/54b3r/docqa-go/internal/store"
	"github.com/54b3r/docqa-go/internal/vectorindex"
)

// app bundles the components shared by `serve` and `ask`.
type app struct {
	session  *session.Session
	pipeline *ingestion.Pipeline
	// history is nil when DOCQA_HISTORY_DB=disabled or the store failed to open.
	history *store.SQLiteStore
	pingers []server.Pinger
	closers []func()
}

// Close releases every component in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires embedder, generator, index, archive, history and the
// ingestion pipeline from the environment. On error every component built
// so far is released.
func buildApp(ctx context.Context, log *slog.Logger, withHistory bool) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := embedder.ValidateForRAG(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised", slog.String("backend", embedder.Backend()))

	genCfg := generator.ConfigFromEnv()
	gen, err := generator.New(ctx, genCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise generator: %w", err)
	}
	log.Info("generator initialised",
		slog.String("provider", string(genCfg.Backend)),
		slog.String("model", genCfg.ModelName()),
	)
	if p := llmPinger(genCfg); p != nil {
		a.pingers = append(a.pingers, p)
	}

	idx, err := a.buildIndex(log)
	if err != nil {
		return nil, err
	}

	a.session, err = session.New(&session.Config{
		Embedder:  emb,
		Generator: gen,
		Index:     idx,
		ChunkSize: getEnvInt("DOCQA_CHUNK_SIZE", 0),
		TopK:      getEnvInt("DOCQA_TOP_K", 0),
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise session: %w", err)
	}

	arc, err := a.buildArchive(ctx, log)
	if err != nil {
		return nil, err
	}

	pipeCfg := &ingestion.Config{MaxBytes: getEnvInt64("DOCQA_MAX_UPLOAD_BYTES", 0)}
	if withHistory {
		a.buildStore(log)
		if a.history != nil {
			pipeCfg.Recorder = a.history
		}
	}

	a.pipeline, err = ingestion.NewPipeline(extract.New(), arc, a.session, pipeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise ingestion pipeline: %w", err)
	}
	return a, nil
}

// buildIndex selects the vector index from INDEX_BACKEND (flat | qdrant).
func (a *app) buildIndex(log *slog.Logger) (vectorindex.Index, error) {
	backend := strings.ToLower(getEnvOrDefault("INDEX_BACKEND", "flat"))
	switch backend {
	case "flat":
		log.Info("index: in-memory flat index")
		return vectorindex.NewFlat(), nil

	case "qdrant":
		cfg := &vectorindex.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "docqa"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS"),
		}
		q, err := vectorindex.NewQdrant(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
		}
		a.closers = append(a.closers, func() { _ = q.Close() })
		a.pingers = append(a.pingers, server.NewQdrantPinger(q.Client()))
		log.Info("index: qdrant",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("collection", cfg.Collection),
		)
		return q, nil

	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q (valid: flat, qdrant)", backend)
	}
}

// buildArchive selects where uploads are kept from ARCHIVE_BACKEND
// (none | local | minio).
func (a *app) buildArchive(ctx context.Context, log *slog.Logger) (archive.Archive, error) {
	backend := archive.Backend(strings.ToLower(getEnvOrDefault("ARCHIVE_BACKEND", string(archive.BackendNone))))
	switch backend {
	case archive.BackendNone:
		return archive.None{}, nil

	case archive.BackendLocal:
		dir := os.Getenv("ARCHIVE_DIR")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("archive: resolve home dir: %w", err)
			}
			dir = home + "/.docqa/uploads"
		}
		l, err := archive.NewLocal(dir)
		if err != nil {
			return nil, err
		}
		log.Info("archive: local directory", slog.String("dir", dir))
		return l, nil

	case archive.BackendMinio:
		cfg := archive.MinioConfig{
			Endpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    os.Getenv("MINIO_BUCKET"),
			UseSSL:    getEnvBool("MINIO_USE_SSL"),
		}
		m, err := archive.NewMinio(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.pingers = append(a.pingers, server.NewPinger("minio", m))
		log.Info("archive: minio", slog.String("endpoint", cfg.Endpoint))
		return m, nil

	default:
		return nil, fmt.Errorf("unknown ARCHIVE_BACKEND %q (valid: none, local, minio)", backend)
	}
}

// buildStore opens the history database. DOCQA_HISTORY_DB overrides the
// default path (~/.docqa/history.db); "disabled" turns history off. Failures
// are logged and leave history disabled.
func (a *app) buildStore(log *slog.Logger) {
	dbPath := os.Getenv("DOCQA_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via DOCQA_HISTORY_DB=disabled")
		return
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return
	}
	a.history = hs
	a.closers = append(a.closers, func() { _ = hs.Close() })
	a.pingers = append(a.pingers, server.NewPinger("history", hs))
	log.Info("history: store opened", slog.String("path", dbPath))
}

// llmPinger returns a zero-token readiness probe for the chat backend, or
// nil when the backend has no cheap listing endpoint.
func llmPinger(cfg *generator.Config) server.Pinger {
	switch cfg.Backend {
	case generator.BackendOllama:
		return server.NewHTTPPinger("ollama", strings.TrimRight(cfg.Ollama.Host, "/")+"/api/tags", nil)
	case generator.BackendOpenAI:
		return server.NewHTTPPinger("openai", "https://api.openai.com/v1/models",
			http.Header{"Authorization": {"Bearer " + cfg.OpenAI.APIKey}})
	case generator.BackendAzure:
		url := fmt.Sprintf("%s/openai/models?api-version=%s",
			strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/"), cfg.AzureOpenAI.APIVersion)
		return server.NewHTTPPinger("azure", url, http.Header{"api-key": {cfg.AzureOpenAI.APIKey}})
	case generator.BackendGemini:
		return server.NewHTTPPinger("gemini", "https://generativelanguage.googleapis.com/v1beta/models",
			http.Header{"x-goog-api-key": {cfg.Gemini.APIKey}})
	default:
		return nil
	}
}

// getEnvOrDefault returns the value of key, or fallback if unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses key as an integer, returning fallback on absence or error.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvInt64 is getEnvInt for byte sizes.
func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool reports whether key is set to a true value ("true", "1", ...).
func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

// NewServeCmd constructs the `docqa serve` command, which starts the HTTP
// API for uploading a document and asking questions about it.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docqa HTTP server",
		Long: `Start the docqa HTTP server.

The server starts with no document loaded. Upload a PDF with
POST /api/upload (multipart field "file"), then ask questions with
POST /api/ask. Uploading a new document replaces the previous one.

Examples:
  docqa serve
  docqa serve --port 9090
  MODEL_PROVIDER=gemini INDEX_BACKEND=qdrant docqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// The config file is applied after flag parsing, so env-derived
			// defaults are resolved here rather than in the flag definitions.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCQA_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("DOCQA_PORT", port)
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing is opt-in and a no-op if keys are absent.
			flush, ok := tracing.Enable()
			defer flush()
			if ok {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			// Every process starts without a document.
			a.session.Reset()

			cfg := &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        a.pingers,
				APIKey:         os.Getenv("DOCQA_API_KEY"),
				CORSOrigin:     os.Getenv("DOCQA_CORS_ORIGIN"),
				MaxUploadBytes: a.pipeline.MaxBytes(),
			}
			if a.history != nil {
				cfg.History = a.history
			}

			srv, err := server.New(a.session, a.pipeline, cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: DOCQA_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: DOCQA_PORT)")

	return cmd
}

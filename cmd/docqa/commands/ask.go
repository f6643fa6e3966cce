package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/ingestion"
	"github.com/54b3r/docqa-go/internal/store"
)

// NewAskCmd constructs the `docqa ask` command, which loads a single
// document, answers one question about it and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var file string
	var docURL string
	var k int
	var showPassages bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question about a local or remote document",
		Long: `Load a document, then answer a natural-language question about it.

Exactly one of --file or --url must be given. The document is chunked,
embedded and indexed exactly as an upload to 'docqa serve' would be.

Examples:
  docqa ask --file ./handbook.pdf "how many vacation days do I get?"
  docqa ask --url https://example.com/paper.pdf -k 5 "what dataset was used?"
  docqa ask --file ./runbook.pdf --passages "what is the retry policy?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if (file == "") == (docURL == "") {
				return fmt.Errorf("ask: exactly one of --file or --url is required")
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}
			if k < 0 {
				return fmt.Errorf("ask: -k must not be negative")
			}

			a, err := buildApp(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer a.Close()

			var res *ingestion.Result
			if file != "" {
				data, readErr := os.ReadFile(file)
				if readErr != nil {
					return fmt.Errorf("ask: %w", readErr)
				}
				res, err = a.pipeline.Ingest(ctx, ingestion.Upload{Name: filepath.Base(file), Data: data})
			} else {
				res, err = a.pipeline.IngestURL(ctx, docURL)
			}
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			log.Info("document loaded", slog.String("name", res.Name), slog.Int("chunks", res.ChunkCount))

			out := cmd.OutOrStdout()
			if showPassages {
				passages, err := a.session.Retrieve(ctx, question, k)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				for _, p := range passages {
					fmt.Fprintf(out, "--- chunk %d (distance %.4f)\n%s\n", p.Index, p.Distance, p.Text)
				}
				fmt.Fprintln(out, "---")
			}

			start := time.Now()
			answer, err := a.session.Answer(ctx, question, k)
			if a.history != nil {
				ex := store.Exchange{
					DocumentID: res.DocumentID,
					Question:   question,
					Answer:     answer,
					DurationMS: time.Since(start).Milliseconds(),
				}
				if err != nil {
					ex.Error = err.Error()
				}
				if recErr := a.history.RecordExchange(ctx, ex); recErr != nil {
					log.Warn("history: failed to record exchange", slog.Any("error", recErr))
				}
			}
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Fprintln(out, answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the document to load")
	cmd.Flags().StringVarP(&docURL, "url", "u", "", "URL of the document to download and load")
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "Number of passages to retrieve (default: DOCQA_TOP_K or 3)")
	cmd.Flags().BoolVar(&showPassages, "passages", false, "Print the retrieved passages before the answer")

	return cmd
}

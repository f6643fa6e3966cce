package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/store"
)

// NewHistoryCmd constructs the `docqa history` command, which lists recent
// exchanges or documents from the history database.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var documents bool
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent questions or documents from the history database",
		Long: `List recent questions (default) or ingested documents (--documents),
newest first.

Examples:
  docqa history
  docqa history --limit 50
  docqa history --documents`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if dbPath == "" {
				dbPath = getEnvOrDefault("DOCQA_HISTORY_DB", "")
			}
			if dbPath == "disabled" {
				return fmt.Errorf("history: disabled via DOCQA_HISTORY_DB=disabled")
			}
			if dbPath == "" {
				var err error
				if dbPath, err = store.DefaultDBPath(); err != nil {
					return fmt.Errorf("history: %w", err)
				}
			}

			hs, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer hs.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if documents {
				docs, err := hs.RecentDocuments(ctx, limit)
				if err != nil {
					return fmt.Errorf("history: %w", err)
				}
				fmt.Fprintln(tw, "LOADED\tID\tNAME\tCHUNKS\tLOCATION")
				for _, d := range docs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						d.CreatedAt.Local().Format(time.DateTime), d.ID, d.Name, d.ChunkCount, d.Location)
				}
				return nil
			}

			exchanges, err := hs.RecentExchanges(ctx, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			fmt.Fprintln(tw, "ASKED\tDOCUMENT\tMS\tQUESTION\tRESULT")
			for _, ex := range exchanges {
				result := ex.Answer
				if ex.Error != "" {
					result = "error: " + ex.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					ex.CreatedAt.Local().Format(time.DateTime), ex.DocumentID, ex.DurationMS,
					truncate(ex.Question, 60), truncate(result, 80))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows to print")
	cmd.Flags().BoolVar(&documents, "documents", false, "List ingested documents instead of questions")
	cmd.Flags().StringVar(&dbPath, "db", "", "History database path (default: $DOCQA_HISTORY_DB or ~/.docqa/history.db)")

	return cmd
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

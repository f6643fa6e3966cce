// Package commands defines all Cobra CLI commands for the docqa binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/docqa-go/internal/audit"
	"github.com/54b3r/docqa-go/internal/config"
	"github.com/54b3r/docqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFiles holds the --env-file flag values.
var envFiles []string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docqa",
		Short: "docqa answers questions about a single uploaded document",
		Long: `docqa loads one document at a time, splits it into chunks, embeds them,
and answers natural-language questions using the passages closest to the
question as context for a chat model.

The model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.docqa/config.yaml). A .env file in the working
directory is read first and never overrides variables that are already set.
See 'docqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootstrap := slog.Default()

			if _, err := config.LoadDotEnv(bootstrap, envFiles...); err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, bootstrap)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// LOG_LEVEL and LOG_FORMAT may come from either file above.
			log := logging.New()
			slog.SetDefault(log)

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), loadedConfigPath)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: $DOCQA_CONFIG, ~/.docqa/config.yaml, ./docqa.yaml)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv file(s) to load before the config file (default: .env)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}

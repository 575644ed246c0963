// Package cli implements robocompctl, the operator command line for
// bootstrapping a deployment.
package cli

import (
	"context"
	"database/sql"
	"robocomp/internal/platform/config"
	"robocomp/internal/platform/database"
	"robocomp/internal/platform/logging"

	"github.com/spf13/cobra"
)

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	var cfg *config.Config
	root := &cobra.Command{
		Use:   "robocompctl",
		Short: "Operator tooling for the robotics competition backend",
		Long: `robocompctl applies database migrations, mints development tokens and
promotes users. It reads the same environment (and .env file) as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			logging.Setup(cfg.LogLevel, "text")
			return cfg.Validate()
		},
	}
	loadConfig := func() *config.Config { return cfg }

	root.AddCommand(
		newMigrateCmd(loadConfig),
		newTokenCmd(loadConfig),
		newPromoteCmd(loadConfig),
	)
	return root
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.Open(ctx, cfg.DBConnStr)
}

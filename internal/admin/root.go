package admin

import (
	"context"
	"time"

	"github.com/dmitrijs2005/workflow/internal/logging"
	"github.com/dmitrijs2005/workflow/internal/server"
	"github.com/dmitrijs2005/workflow/internal/server/config"
	"github.com/spf13/cobra"
)

// deps are the collaborators every subcommand needs. Tests replace
// bootstrap to avoid a real database.
type deps struct {
	loadConfig func() (*config.Config, error)
	bootstrap  func(ctx context.Context, cfg *config.Config, logger logging.Logger) *server.Backend

	cfg    *config.Config
	logger logging.Logger
}

type rootFlags struct {
	database string
	timeout  time.Duration
	logLevel string
}

// NewRootCmd builds the workflow-admin command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&deps{
		loadConfig: config.FromEnvironment,
		bootstrap: func(ctx context.Context, cfg *config.Config, logger logging.Logger) *server.Backend {
			return server.Bootstrap(ctx, cfg, logger, nil)
		},
	})
}

func newRootCmd(d *deps) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "workflow-admin",
		Short:         "Operator tasks for the workflow server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := d.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("database") {
				cfg.DatabaseURI = flags.database
			}
			if cmd.Flags().Changed("timeout") {
				cfg.ConnectTimeout = flags.timeout
			}
			d.cfg = cfg
			d.logger = logging.NewJSONLogger(cmd.ErrOrStderr(), flags.logLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.database, "database", "d", "", "database URI (overrides WORKFLOW_DATABASE_URI)")
	cmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 5*time.Second, "per-strategy connect timeout")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(newPingCmd(d), newSeedAdminCmd(d), newCleanupCmd(d))

	return cmd
}

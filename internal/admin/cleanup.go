package admin

import (
	"fmt"

	"github.com/dmitrijs2005/workflow/internal/server"
	"github.com/dmitrijs2005/workflow/internal/server/password"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/spf13/cobra"
)

func newCleanupCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-resets",
		Short: "Delete expired password reset tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := d.bootstrap(cmd.Context(), d.cfg, d.logger)
			defer b.Close()

			rs := services.NewResetService(b.Store, b.Manager, password.NewHasher(d.cfg.BcryptCost),
				server.NewMailer(d.cfg, d.logger), d.cfg.ResetTokenValidityDuration, services.WithLogger(d.logger))

			n, err := rs.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %d expired tokens\n", n)
			return nil
		},
	}
}

package admin

import (
	"fmt"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/spf13/cobra"
)

func newPingCmd(d *deps) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Run the connection ladder and report the winning strategy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := d.bootstrap(cmd.Context(), d.cfg, d.logger)
			defer b.Close()

			if !b.Store.Available() {
				fmt.Fprintf(cmd.OutOrStdout(), "store: unavailable (%v)\n", b.Store.Err())
				return common.ErrorStoreUnavailable
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store: connected (strategy: %s)\n", b.Store.Strategy())
			return nil
		},
	}
}

package admin

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/password"
	"github.com/dmitrijs2005/workflow/internal/server/services"
	"github.com/spf13/cobra"
)

type seedConfig struct {
	email string
	name  string
}

func newSeedAdminCmd(d *deps) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an administrator account",
		Long: `Create a user with the admin role. Signup over HTTP always assigns the
employee role, so the first administrator has to be created here.
The password is prompted for, or read from stdin when it is not a terminal.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeedAdmin(cmd, d, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.email, "email", "", "administrator email")
	cmd.Flags().StringVar(&cfg.name, "name", "", "administrator full name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runSeedAdmin(cmd *cobra.Command, d *deps, cfg *seedConfig) error {
	pw, err := getPassword(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}

	b := d.bootstrap(cmd.Context(), d.cfg, d.logger)
	defer b.Close()

	us := services.NewUserService(b.Store, b.Manager, password.NewHasher(d.cfg.BcryptCost), nil, services.WithLogger(d.logger))

	u, err := us.CreateUser(cmd.Context(), services.NewUser{
		FullName: cfg.name,
		Email:    cfg.email,
		Password: pw,
		Role:     common.RoleAdmin,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return fmt.Errorf("user %s already exists", cfg.email)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %s)\n", u.Email, u.ID)
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/services"
)

// promoteCmd is the only way to grant the admin and manager roles;
// registration always creates plain users.
func promoteCmd(load configLoader) *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change a user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			gdb, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDatabase(gdb)

			svc := services.NewAuthService(repository.NewUserRepository(gdb), nil)
			user, err := svc.Promote(cmd.Context(), email, role)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> is now %s\n", user.Name, user.Email, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email of the user to promote")
	cmd.Flags().StringVarP(&role, "role", "r", "admin", "New role (admin, manager, user)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskflow-dev/taskflow/internal/apperr"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/services"
	"github.com/taskflow-dev/taskflow/internal/types"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

func parseSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, u := range seed.Users {
		if u.Role != "" && !types.ValidRole(u.Role) {
			return nil, fmt.Errorf("user %d (%s): unknown role %q", i, u.Email, u.Role)
		}
	}
	return &seed, nil
}

func seedCmd(load configLoader) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a YAML file; existing emails are skipped",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := parseSeedFile(file)
			if err != nil {
				return err
			}

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
			created := 0

			for _, u := range seed.Users {
				user, err := svc.Register(cmd.Context(), u.Name, u.Email, u.Password)
				if errors.Is(err, apperr.ErrConflict) {
					slog.Info("seed user exists, skipping", "email", u.Email)
					continue
				}
				if err != nil {
					return fmt.Errorf("seed %s: %w", u.Email, err)
				}

				if u.Role != "" && u.Role != types.RoleUser {
					if _, err := svc.Promote(cmd.Context(), user.Email, u.Role); err != nil {
						return fmt.Errorf("promote %s: %w", u.Email, err)
					}
				}
				created++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d users.\n", created, len(seed.Users))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "YAML file with a users list")

	return cmd
}

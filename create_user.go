package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pk55-api/logger"
	"pk55-api/services/auth"
)

var createUserCmd = &cobra.Command{
	Use:   "create-user <username> <password>",
	Short: "Create an admin user",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreateUser,
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// only CreateUser is used, which needs no signing key
	svc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, store)

	user, err := svc.CreateUser(cmd.Context(), args[0], args[1])
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return fmt.Errorf("user %q already exists", args[0])
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "User created: %s (id %s)\n", user.Username, user.ID)
	return nil
}

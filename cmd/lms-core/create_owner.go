package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/wolfwhale/lms-core/internal/core/service"
	"github.com/wolfwhale/lms-core/internal/pkg/config"
)

func newCreateOwnerCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-owner",
		Short: "Create the platform owner account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			if cfg.StoreDriver == config.DriverMemory {
				return errors.New("create-owner: set OWNER_EMAIL and OWNER_PASSWORD instead when using the memory store")
			}

			st, err := openStores(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			auth := service.NewAuthService(st.users, st.schools, cfg.JWTSecret, cfg.TokenTTL, log)
			owner, err := auth.BootstrapOwner(ctx, name, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("owner %s ready (id %s)\n", owner.Email, owner.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Platform Owner", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

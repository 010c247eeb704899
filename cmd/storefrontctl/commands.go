package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/storefront/internal/app"
	"github.com/geocoder89/storefront/internal/config"
	"github.com/geocoder89/storefront/internal/db"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/observability"
	"github.com/geocoder89/storefront/internal/repo/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			pool, err := db.NewPool(cmd.Context(), cfg.DB.DSN())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := postgres.Migrate(cmd.Context(), pool); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the starter categories and products if the catalog is empty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg, observability.NewLogger(cfg.Env))
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			// browsing seeds both collections on first load
			view, err := a.Catalog.Browse(cmd.Context(), "")
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "catalog has %d categories and %d products (%s backend)\n",
				len(view.Categories), view.TotalProducts, cfg.CatalogBackend)
			return nil
		},
	}
}

func promoteCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Give a registered user the ADMIN role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			pool, err := db.NewPool(cmd.Context(), cfg.DB.DSN())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			u, err := promote(cmd.Context(), postgres.NewUsersRepo(pool, nil), email)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", u.Email, u.AuthID, u.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email of the user to promote")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func promote(ctx context.Context, users db.AdminDirectory, email string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return user.User{}, errors.New("email is required")
	}

	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, fmt.Errorf("no user registered with %s", email)
		}
		return user.User{}, err
	}

	if u.Role.IsAdmin() {
		return u, nil
	}
	return users.SetRole(ctx, u.AuthID, user.RoleAdmin)
}

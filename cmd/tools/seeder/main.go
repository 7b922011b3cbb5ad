package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-kasir/internal/app"
	"github.com/noah-isme/backend-kasir/internal/auth"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/store"
)

var logger zerolog.Logger

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:           "seeder",
		Short:         "Schema and demo data tooling for the kasir ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = obs.NewLogger("console", level).With().Str("component", "seeder").Logger()
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "log level")
	root.AddCommand(migrateCmd(), seedCmd())
	return root
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return err
					}
					logger.Info().Msg("schema up to date")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrate.Migrate) error {
					if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return err
					}
					logger.Info().Msg("rolled back one migration")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(m *migrate.Migrate) error {
					v, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(*migrate.Migrate) error) error {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return errors.New("DATABASE_URL is not set")
	}
	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo data into the configured store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "products",
		Short: "Load the demo catalog when the product list is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				n, err := store.Seed(ctx, deps.Store, model.SeedProducts())
				if err != nil {
					return err
				}
				logger.Info().Int("products", n).Str("store", deps.Config.StoreDriver).Msg("catalog seeded")
				return nil
			})
		},
	})

	var in auth.RegisterInput
	operator := &cobra.Command{
		Use:   "operator",
		Short: "Register a cashier account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
				services, err := deps.Services()
				if err != nil {
					return err
				}
				in.ConfirmPassword = in.Password
				u, err := services.Auth.Register(ctx, in)
				if err != nil {
					return err
				}
				logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("operator registered")
				return nil
			})
		},
	}
	operator.Flags().StringVar(&in.FullName, "name", "Kasir Demo", "full name")
	operator.Flags().StringVar(&in.Email, "email", "kasir@example.com", "e-mail address")
	operator.Flags().StringVar(&in.Username, "username", "kasir", "username")
	operator.Flags().StringVar(&in.Password, "password", "", "password")
	operator.Flags().StringVar(&in.SecurityQuestion, "question", "pet", "security question key")
	operator.Flags().StringVar(&in.SecurityAnswer, "answer", "", "security answer")
	_ = operator.MarkFlagRequired("password")
	_ = operator.MarkFlagRequired("answer")
	cmd.AddCommand(operator)
	return cmd
}

func withDeps(parent context.Context, fn func(context.Context, *app.Dependencies) error) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(parent, time.Minute)
	defer cancel()
	deps, err := app.New(ctx, cfg, logger, app.Options{ApplicationName: "kasir-seeder"})
	if err != nil {
		return err
	}
	defer deps.Close()
	return fn(ctx, deps)
}

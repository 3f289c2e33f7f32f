package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mentora-auth/internal/db"
	"mentora-auth/internal/repository"
)

var errDatabaseURLRequired = errors.New("DATABASE_URL environment variable is required")

// deps permite reemplazar el acceso a la base en tests.
type deps struct {
	migrate   func(ctx context.Context, databaseURL string) error
	openUsers func(ctx context.Context, databaseURL string) (repository.UserRepository, func(), error)
	logger    *zap.Logger
}

func defaultDeps() deps {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	return deps{
		migrate: func(ctx context.Context, databaseURL string) error {
			pool, err := db.NewPool(ctx, databaseURL)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()
			return db.Migrate(ctx, pool)
		},
		openUsers: func(ctx context.Context, databaseURL string) (repository.UserRepository, func(), error) {
			pool, err := db.NewPool(ctx, databaseURL)
			if err != nil {
				return nil, nil, fmt.Errorf("connect to database: %w", err)
			}
			return repository.NewPgUserRepository(pool), pool.Close, nil
		},
		logger: logger,
	}
}

// NewRootCmd crea el comando raiz de authctl.
func NewRootCmd(d deps) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tasks for the mentora-auth service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before running")

	cmd.AddCommand(newMigrateCmd(d))
	cmd.AddCommand(newCreateAdminCmd(d))
	cmd.AddCommand(newHashPasswordCmd())

	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newMigrateCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			databaseURL := os.Getenv("DATABASE_URL")
			if databaseURL == "" {
				return errDatabaseURLRequired
			}

			cmd.Println("Running migrations...")
			if err := d.migrate(cmd.Context(), databaseURL); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

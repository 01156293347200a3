package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/authsession/store/sqlite"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := sqlite.NewStore(database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.ApplyMigrations(); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			cmd.Println("migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "database", "authsession.db", "SQLite database path")
	return cmd
}

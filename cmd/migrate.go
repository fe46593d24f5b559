package main

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Dosada05/lanparty/db"
)

func newMigrateCommand() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := resolveDatabaseURL(databaseURL)
			if url == "" {
				return errors.New("DATABASE_URL is not set")
			}
			logger := newLogger(slog.LevelInfo)
			return db.MigrateUp(url, logger)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := resolveDatabaseURL(databaseURL)
			if url == "" {
				return errors.New("DATABASE_URL is not set")
			}
			logger := newLogger(slog.LevelInfo)
			return db.MigrateDown(url, steps, logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

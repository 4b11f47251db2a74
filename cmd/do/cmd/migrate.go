package cmd

import (
	"fmt"
	"os"

	"github.com/flipwise/flipwise/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	var driver, connection string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if driver == "" {
				driver = envOr("DB_DRIVER", db.DriverSQLite)
			}
			if connection == "" {
				connection = envOr("DB_CONNECTION", "./data/flipwise.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
			}
		},
	}
	cmd.PersistentFlags().StringVar(&driver, "driver", "", "database driver (sqlite or pgx), defaults to DB_DRIVER")
	cmd.PersistentFlags().StringVar(&connection, "db", "", "connection string, defaults to DB_CONNECTION")

	withDB := func(fn func(conn *sqlx.DB) error) error {
		conn, err := db.Init(driver, connection)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(conn) }()
		return fn(conn)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sqlx.DB) error {
				return db.RunMigrations(conn.DB, driver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sqlx.DB) error {
				return db.MigrateDown(conn.DB, driver)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(conn *sqlx.DB) error {
				version, err := db.SchemaVersion(conn.DB, driver)
				if err != nil {
					return err
				}
				fmt.Printf("schema version: %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

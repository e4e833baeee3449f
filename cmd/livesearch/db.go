package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gomigrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/spf13/cobra"

	"github.com/txn2/live-search/pkg/database/migrate"
	"github.com/txn2/live-search/pkg/platform"
)

// errNoDSN is returned by database commands without a connection string.
var errNoDSN = errors.New("no database configured: pass --dsn or set database.dsn")

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resolveDSN prefers the flag, then database.dsn from the config file. The
// config is not validated; database commands do not need a provider key.
func resolveDSN(flagDSN, configPath string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if _, err := os.Stat(configPath); err != nil {
		return "", errNoDSN
	}
	cfg, err := platform.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Database.DSN == "" {
		return "", errNoDSN
	}
	return cfg.Database.DSN, nil
}

// openDB opens and pings the database.
func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// dbCommand wraps fn with DSN resolution and connection handling.
func dbCommand(opts *rootOptions, dsn *string, fn func(*cobra.Command, *sql.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		resolved, err := resolveDSN(*dsn, opts.configPath)
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), resolved)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return fn(cmd, db, args)
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the audit database schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string, overriding database.dsn")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			if err := migrate.Run(db); err != nil {
				return err
			}
			return printVersion(cmd, db)
		}),
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (all of them unless --steps is set)",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			var err error
			if steps > 0 {
				err = migrate.Steps(db, -steps)
			} else {
				err = migrate.Down(db)
			}
			if err != nil {
				return err
			}
			return printVersion(cmd, db)
		}),
	}
	down.Flags().IntVar(&steps, "steps", 0, "Number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: dbCommand(opts, &dsn, func(cmd *cobra.Command, db *sql.DB, _ []string) error {
			return printVersion(cmd, db)
		}),
	})

	return cmd
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	version, dirty, err := migrate.Version(db)
	if errors.Is(err, gomigrate.ErrNilVersion) {
		fmt.Fprintln(cmd.OutOrStdout(), "schema version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}

// Package main provides the entry point for the livesearch server.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/txn2/live-search/internal/server"
	"github.com/txn2/live-search/pkg/platform"
)

const (
	envConfig     = "LIVESEARCH_CONFIG"
	defaultConfig = "livesearch.yaml"
	defaultEnv    = ".env"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "livesearch",
		Short: "Live news search over WebSocket",
		Long: `livesearch serves live news searches over WebSocket.

Clients start a search, receive the first page of results with analyses, and
are pushed newly published articles as the search is polled in the background.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
	}

	defaultPath := os.Getenv(envConfig)
	if defaultPath == "" {
		defaultPath = defaultConfig
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultPath, "Path to configuration file (env "+envConfig+")")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnv, "Environment file loaded before the configuration")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newAuditCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// loadEnvFile loads path into the environment. A missing file is ignored;
// variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live-search server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			logger := platform.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			slog.SetDefault(logger)

			p, err := platform.New(platform.WithConfig(cfg), platform.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("creating platform: %w", err)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return server.Run(ctx, p)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address, overriding server.address")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livesearch version %s\n", server.Version)
		},
	}
}

// loadConfig loads and validates the configuration file.
func loadConfig(path string) (*platform.Config, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

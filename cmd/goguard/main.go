package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "goguard:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "goguard",
		Short:         "Brute-force login protection and per-identity rate limiting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("dotenv")
			return loadDotEnv(path)
		},
	}

	root.PersistentFlags().String("config", "", "path to YAML config file")
	root.PersistentFlags().String("dotenv", ".env", "path to a .env file loaded before configuration; missing files are ignored")
	root.PersistentFlags().String("store", "", "counter store: memory, redis, bolt, postgres or sqlite")
	root.PersistentFlags().String("redis-addr", "", "redis address for the redis store")
	root.PersistentFlags().String("store-path", "", "database file for the bolt and sqlite stores")
	root.PersistentFlags().String("store-dsn", "", "connection string for the postgres store")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (json, text)")

	root.AddCommand(
		newServeCmd(),
		newStatusCmd(),
		newUnlockCmd(),
		newHashSecretCmd(),
		newVersionCmd(),
	)

	return root
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goguard %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

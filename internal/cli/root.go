// Package cli implements the qamesh command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/logging"
	"github.com/hupe1980/qamesh/session"
	"github.com/hupe1980/qamesh/session/libsql"
)

var rootCmd = &cobra.Command{
	Use:   "qamesh",
	Short: "Automated QA verification sessions",
	Long: `qamesh orchestrates automated quality-assurance sessions: it selects a
test depth for the change under verification, dispatches verification agents
with retry and cost guarding, and aggregates their findings into one report.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "libsql/sqlite session store URL (empty = in-memory)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")

	rootCmd.AddCommand(runCmd, statusCmd, resultCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the structured logger from the persistent flags.
func newLogger(cmd *cobra.Command) logging.Logger {
	levelName, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return logging.New(&logging.Config{Level: level, Format: format, Output: os.Stderr})
}

// openStore returns the session store selected by --store and a close func.
func openStore(cmd *cobra.Command) (core.SessionStore, func() error, error) {
	url, _ := cmd.Flags().GetString("store")
	if url == "" {
		return session.NewInMemoryStore(), func() error { return nil }, nil
	}
	store, err := libsql.Open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	return store, store.Close, nil
}

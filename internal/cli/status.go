package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hupe1980/qamesh/core"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the stored state of a session",
	Long: `Show the persisted state of a session. Requires a durable session
store (--store); sessions run with the in-memory store do not outlive their
process.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var resultCmd = &cobra.Command{
	Use:   "result <session-id>",
	Short: "Print the report of a finalized session",
	Args:  cobra.ExactArgs(1),
	RunE:  runResult,
}

func init() {
	statusCmd.Flags().StringP("format", "f", "text", "output format: text, json")
	resultCmd.Flags().StringP("format", "f", "text", "output format: text, json")
}

func runStatus(cmd *cobra.Command, args []string) error {
	sess, closeStore, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeStore()

	format, _ := cmd.Flags().GetString("format")
	return printSession(cmd.OutOrStdout(), sess, format)
}

func runResult(cmd *cobra.Command, args []string) error {
	sess, closeStore, err := loadSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeStore()

	format, _ := cmd.Flags().GetString("format")
	return printResult(cmd.OutOrStdout(), sess, format)
}

func loadSession(cmd *cobra.Command, id string) (*core.Session, func() error, error) {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	sess, err := store.Get(id)
	if err != nil {
		_ = closeStore()
		return nil, nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	return sess, closeStore, nil
}

// printResult prints a finalized session's report. Reports exist only once
// the session reaches a terminal status.
func printResult(w io.Writer, sess *core.Session, format string) error {
	if !sess.Status.Terminal() {
		return fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, core.ErrNotReady)
	}
	return printSession(w, sess, format)
}

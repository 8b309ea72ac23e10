package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/qamesh"
	"github.com/hupe1980/qamesh/agent"
	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/triage"
	"github.com/hupe1980/qamesh/triage/anthropic"
	"github.com/hupe1980/qamesh/triage/openai"
	"github.com/hupe1980/qamesh/vcs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a verification session and print its report",
	Long: `Run a verification session against a feature and block until it
finalizes.

Exit codes:
  0 — completed, no findings
  1 — findings reported or session degraded to partial
  2 — session failed`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("feature", "", "feature or issue id under verification (required)")
	runCmd.Flags().String("base-url", "", "root URL of the running application under test")
	runCmd.Flags().StringSlice("endpoint", nil, "HTTP path the change affects (repeatable)")
	runCmd.Flags().StringSlice("file", nil, "source file the change touched (repeatable)")
	runCmd.Flags().String("diff-range", "", "VCS revision range of the change (empty = working tree vs HEAD)")
	runCmd.Flags().String("repo", "", "repository directory for diff analysis (empty = cwd)")
	runCmd.Flags().String("depth", "", "force a depth: shallow, standard, deep, regression")
	runCmd.Flags().String("trigger", string(core.TriggerUserCommand), "session trigger: user_command, scheduled_health, spec_compliance, pipeline")
	runCmd.Flags().Float64("max-cost", core.DefaultLimits().MaxCostUSD, "maximum session cost in USD (0 = unlimited)")
	runCmd.Flags().Int("max-endpoints", core.DefaultLimits().MaxEndpoints, "maximum endpoints probed (0 = unlimited)")
	runCmd.Flags().Duration("max-duration", core.DefaultLimits().MaxDuration, "maximum session duration (0 = unlimited)")
	runCmd.Flags().Bool("production", false, "treat the target as a production environment")
	runCmd.Flags().Bool("allow-destructive", false, "permit mutating probes in production")
	runCmd.Flags().String("triage", "", "evidence triage model: anthropic, openai (empty = heuristics only)")
	runCmd.Flags().StringP("format", "f", "text", "output format: text, json")

	_ = runCmd.MarkFlagRequired("feature")
}

func runRun(cmd *cobra.Command, args []string) error {
	target, err := targetFromFlags(cmd)
	if err != nil {
		return err
	}

	trigger := core.Trigger(mustString(cmd, "trigger"))

	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}

	model, err := triageFromFlags(cmd)
	if err != nil {
		return err
	}

	repoDir, _ := cmd.Flags().GetString("repo")
	maxCost, _ := cmd.Flags().GetFloat64("max-cost")
	maxEndpoints, _ := cmd.Flags().GetInt("max-endpoints")
	maxDuration, _ := cmd.Flags().GetDuration("max-duration")
	production, _ := cmd.Flags().GetBool("production")
	allowDestructive, _ := cmd.Flags().GetBool("allow-destructive")

	mesh := qamesh.New(func(o *qamesh.Options) {
		o.SessionStore = store
		o.Logger = newLogger(cmd)
		o.EngineConfig.Limits = core.Limits{
			MaxCostUSD:   maxCost,
			MaxEndpoints: maxEndpoints,
			MaxDuration:  maxDuration,
		}
		o.EngineConfig.Safety = core.SafetyConfig{
			Production:       production,
			AllowDestructive: allowDestructive,
		}
		o.Agents = []core.Agent{
			agent.NewBehavioral(func(bo *agent.BehavioralOptions) { bo.Triage = model }),
			agent.NewContract(),
			agent.NewRegression(vcs.NewGitProvider(repoDir)),
		}
	})

	sess, err := mesh.RunSync(cmd.Context(), target, trigger, func(o *qamesh.StartOptions) {
		if depth, _ := cmd.Flags().GetString("depth"); depth != "" {
			o.Depth = core.Depth(depth)
		}
	})
	if cerr := closeStore(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if err := printSession(cmd.OutOrStdout(), sess, format); err != nil {
		return err
	}

	switch {
	case sess.Status == core.StatusFailed:
		os.Exit(2)
	case sess.Status != core.StatusCompleted || (sess.Result != nil && len(sess.Result.Findings) > 0):
		os.Exit(1)
	}
	return nil
}

func targetFromFlags(cmd *cobra.Command) (core.TargetContext, error) {
	endpoints, _ := cmd.Flags().GetStringSlice("endpoint")
	files, _ := cmd.Flags().GetStringSlice("file")

	target := core.TargetContext{
		FeatureID:       mustString(cmd, "feature"),
		TargetFiles:     files,
		TargetEndpoints: endpoints,
		BaseURL:         mustString(cmd, "base-url"),
		DiffRange:       mustString(cmd, "diff-range"),
	}
	return target, target.Validate()
}

func triageFromFlags(cmd *cobra.Command) (triage.Model, error) {
	switch name := mustString(cmd, "triage"); name {
	case "":
		return nil, nil
	case "anthropic":
		return anthropic.NewModel(), nil
	case "openai":
		return openai.NewModel(), nil
	default:
		return nil, fmt.Errorf("unknown triage model %q", name)
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// printSession renders a terminal session for humans or machines.
func printSession(w io.Writer, sess *core.Session, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	fmt.Fprintf(w, "session  %s\n", sess.ID)
	fmt.Fprintf(w, "status   %s\n", sess.Status)
	fmt.Fprintf(w, "depth    %s\n", sess.Depth)
	fmt.Fprintf(w, "cost     $%.2f\n", sess.CostUSD)
	fmt.Fprintf(w, "created  %s\n", sess.Created.Format(time.RFC3339))

	for _, skip := range sess.Skips {
		fmt.Fprintf(w, "skipped  %s\n", skip)
	}

	if sess.Result == nil {
		return nil
	}
	for _, ar := range sess.Result.Agents {
		line := fmt.Sprintf("agent    %-12s %s", ar.Agent, ar.Outcome)
		if ar.Attempts > 1 {
			line += fmt.Sprintf(" (attempts %d)", ar.Attempts)
		}
		if ar.Reason != "" {
			line += fmt.Sprintf(": %s", ar.Reason)
		}
		fmt.Fprintln(w, line)
	}
	if len(sess.Result.Findings) == 0 {
		fmt.Fprintln(w, "no findings")
		return nil
	}
	fmt.Fprintf(w, "\n%d finding(s):\n", len(sess.Result.Findings))
	for _, f := range sess.Result.Findings {
		fmt.Fprintf(w, "  [%s] %s (%s, confidence %.2f)\n", f.Severity, f.Title, f.Agent, f.Confidence)
	}
	return nil
}

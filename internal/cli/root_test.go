package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/qamesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "status", "result", "version"} {
		assert.True(t, names[want], "root command missing subcommand %q", want)
	}
}

func TestPrintSessionText(t *testing.T) {
	sess := core.NewSession("abc-123", core.TriggerUserCommand, core.DepthStandard, core.TargetContext{FeatureID: "login"})
	require.NoError(t, sess.Transition(core.StatusRunning))
	require.NoError(t, sess.AddSkip(core.LimitSkip(core.LimitCost, "contract")))
	require.NoError(t, sess.Finalize(core.StatusCompletedPartial, &core.Result{
		Partial:      true,
		TotalCostUSD: 0.60,
		Agents: []core.AgentResult{
			{Agent: "behavioral", Outcome: core.OutcomeSucceeded, CostUSD: 0.60},
			{Agent: "contract", Outcome: core.OutcomeSkipped, Reason: "limit:cost (contract)"},
		},
		Findings: []core.Finding{
			{Severity: core.SeverityHigh, Title: "endpoint /api/cart returned 500", Agent: "behavioral", Confidence: 0.95, Timestamp: time.Now().UTC()},
		},
	}))

	var buf bytes.Buffer
	require.NoError(t, printSession(&buf, sess, "text"))

	out := buf.String()
	assert.Contains(t, out, "session  abc-123")
	assert.Contains(t, out, "status   completed_partial")
	assert.Contains(t, out, "skipped  limit:cost (contract)")
	assert.Contains(t, out, "endpoint /api/cart returned 500")
}

func TestPrintResultRequiresTerminalSession(t *testing.T) {
	sess := core.NewSession("abc-123", core.TriggerUserCommand, core.DepthStandard, core.TargetContext{FeatureID: "login"})
	require.NoError(t, sess.Transition(core.StatusRunning))

	var buf bytes.Buffer
	err := printResult(&buf, sess, "text")
	require.ErrorIs(t, err, core.ErrNotReady)
	assert.Empty(t, buf.String())

	require.NoError(t, sess.Finalize(core.StatusCompleted, &core.Result{}))
	require.NoError(t, printResult(&buf, sess, "text"))
	assert.Contains(t, buf.String(), "status   completed")
}

func TestPrintSessionJSON(t *testing.T) {
	sess := core.NewSession("abc-123", core.TriggerUserCommand, core.DepthStandard, core.TargetContext{FeatureID: "login"})

	var buf bytes.Buffer
	require.NoError(t, printSession(&buf, sess, "json"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"))
	assert.Contains(t, buf.String(), `"id": "abc-123"`)
}

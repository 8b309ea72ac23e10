package engine

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/hupe1980/qamesh/agent"
	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/internal/testutil"
	"github.com/hupe1980/qamesh/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxConcurrentAgents: 3,
		Resilience: core.ResilienceConfig{
			MaxAttempts:      2,
			BaseBackoff:      time.Millisecond,
			MaxBackoff:       5 * time.Millisecond,
			CallTimeout:      time.Second,
			BreakerThreshold: 10,
		},
	}
}

func newTestEngine(cfg Config, agents ...core.Agent) *Engine {
	return New(agent.NewDispatcher(agents), func(o *Options) { o.Config = cfg })
}

func waitTerminal(t *testing.T, e *Engine, id string) *core.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx, id))
	sess, err := e.GetStatus(id)
	require.NoError(t, err)
	return sess
}

func target() core.TargetContext {
	return core.TargetContext{
		FeatureID:       "checkout-flow",
		TargetEndpoints: []string{"/api/cart"},
		BaseURL:         "http://app.local",
	}
}

func TestSessionCompletesWithMergedFindings(t *testing.T) {
	behavioral := testutil.NewScriptedAgent(agent.BehavioralName, testutil.WithReport(core.Report{
		Outcome: core.OutcomeSucceeded,
		CostUSD: 0.30,
		Findings: []core.Finding{
			testutil.NewFinding(agent.BehavioralName, core.SeverityHigh, 0.7, "endpoint returned 500"),
			testutil.NewFinding(agent.BehavioralName, core.SeverityLow, 0.5, "slow response"),
		},
	}))
	contract := testutil.NewScriptedAgent(agent.ContractName, testutil.WithReport(core.Report{
		Outcome: core.OutcomeSkipped,
		Reason:  "no discoverable API spec",
		CostUSD: 0.10,
	}))
	regression := testutil.NewScriptedAgent(agent.RegressionName, testutil.WithReport(core.Report{
		Outcome:  core.OutcomeSucceeded,
		CostUSD:  0.04,
		Findings: []core.Finding{testutil.NewFinding(agent.RegressionName, core.SeverityCritical, 0.9, "target file deleted")},
	}))

	e := newTestEngine(testConfig(), behavioral, contract, regression)
	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	assert.Equal(t, core.DepthStandard, sess.Depth)
	assert.InDelta(t, 0.44, sess.CostUSD, 1e-9)
	assert.Empty(t, sess.Skips)

	result, err := e.GetResult(id)
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.InDelta(t, 0.44, result.TotalCostUSD, 1e-9)

	// Severity descending across agents.
	require.Len(t, result.Findings, 3)
	assert.Equal(t, core.SeverityCritical, result.Findings[0].Severity)
	assert.Equal(t, core.SeverityHigh, result.Findings[1].Severity)
	assert.Equal(t, core.SeverityLow, result.Findings[2].Severity)

	// Per-agent outcomes in agent-name order.
	require.Len(t, result.Agents, 3)
	assert.Equal(t, agent.BehavioralName, result.Agents[0].Agent)
	assert.Equal(t, core.OutcomeSucceeded, result.Agents[0].Outcome)
	assert.Equal(t, agent.ContractName, result.Agents[1].Agent)
	assert.Equal(t, core.OutcomeSkipped, result.Agents[1].Outcome)
	assert.Equal(t, "no discoverable API spec", result.Agents[1].Reason)
	assert.Equal(t, agent.RegressionName, result.Agents[2].Agent)
}

func TestCostLimitSkipsAgentDeterministically(t *testing.T) {
	behavioral := testutil.NewScriptedAgent(agent.BehavioralName,
		testutil.WithEstimate(core.Estimate{CostUSD: 0.60}),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.60}),
	)
	contract := testutil.NewScriptedAgent(agent.ContractName,
		testutil.WithEstimate(core.Estimate{CostUSD: 0.70}),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.70}),
	)
	regression := testutil.NewScriptedAgent(agent.RegressionName,
		testutil.WithEstimate(core.Estimate{CostUSD: 0.10}),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.10}),
	)

	cfg := testConfig()
	cfg.Limits = core.Limits{MaxCostUSD: 1.00}
	e := newTestEngine(cfg, behavioral, contract, regression)

	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompletedPartial, sess.Status)
	require.Len(t, sess.Skips, 1)
	assert.Equal(t, core.SkipLimit, sess.Skips[0].Kind)
	assert.Equal(t, string(core.LimitCost), sess.Skips[0].Detail)
	assert.Equal(t, agent.ContractName, sess.Skips[0].Agent)

	// The skipped agent never ran.
	assert.Zero(t, contract.Calls())

	result, err := e.GetResult(id)
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, core.OutcomeSkipped, result.Agents[1].Outcome)

	// Session cost equals the sum of per-agent costs of the agents that ran.
	assert.InDelta(t, 0.70, result.TotalCostUSD, 1e-9)
	assert.InDelta(t, result.TotalCostUSD, sess.CostUSD, 1e-9)
}

func TestTransientFailureRetriedToSuccess(t *testing.T) {
	behavioral := testutil.NewScriptedAgent(agent.BehavioralName)
	contract := testutil.NewScriptedAgent(agent.ContractName,
		testutil.WithScript(syscall.ECONNREFUSED),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.20}),
	)
	regression := testutil.NewScriptedAgent(agent.RegressionName)

	e := newTestEngine(testConfig(), behavioral, contract, regression)
	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	assert.Equal(t, 2, contract.Calls())

	result, err := e.GetResult(id)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSucceeded, result.Agents[1].Outcome)
	assert.Equal(t, 2, result.Agents[1].Attempts)
}

func TestFatalAgentYieldsPartialResult(t *testing.T) {
	behavioral := testutil.NewScriptedAgent(agent.BehavioralName, testutil.WithReport(core.Report{
		Outcome:  core.OutcomeSucceeded,
		Findings: []core.Finding{testutil.NewFinding(agent.BehavioralName, core.SeverityHigh, 0.9, "endpoint returned 500")},
	}))
	contract := testutil.NewScriptedAgent(agent.ContractName,
		testutil.WithScript(&core.StatusError{Code: 400, URL: "http://app.local/openapi.json"}),
	)
	regression := testutil.NewScriptedAgent(agent.RegressionName)

	e := newTestEngine(testConfig(), behavioral, contract, regression)
	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompletedPartial, sess.Status)

	// Fatal failures do not retry.
	assert.Equal(t, 1, contract.Calls())

	require.Len(t, sess.Skips, 1)
	assert.Equal(t, core.SkipAgentFailure, sess.Skips[0].Kind)
	assert.Equal(t, agent.ContractName, sess.Skips[0].Agent)

	result, err := e.GetResult(id)
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, core.OutcomeFatal, result.Agents[1].Outcome)

	// Successful agents' findings survive the partial degradation.
	require.Len(t, result.Findings, 1)
	assert.Equal(t, agent.BehavioralName, result.Findings[0].Agent)
}

func TestAllAgentsFatalFailsSession(t *testing.T) {
	fatal := &core.StatusError{Code: 400, URL: "http://app.local"}
	e := newTestEngine(testConfig(),
		testutil.NewScriptedAgent(agent.BehavioralName, testutil.WithScript(fatal)),
		testutil.NewScriptedAgent(agent.ContractName, testutil.WithScript(fatal)),
		testutil.NewScriptedAgent(agent.RegressionName, testutil.WithScript(fatal)),
	)

	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusFailed, sess.Status)

	result, err := e.GetResult(id)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

func TestCancelSession(t *testing.T) {
	started := make(chan struct{})
	blocking := testutil.NewScriptedAgent(agent.BehavioralName,
		testutil.WithRunFn(func(ctx context.Context, in core.RunInput) (core.Report, error) {
			close(started)
			<-ctx.Done()
			return core.Report{}, ctx.Err()
		}),
	)

	e := newTestEngine(testConfig(), blocking)
	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand,
		func(o *StartOptions) { o.Depth = core.DepthShallow },
	)
	require.NoError(t, err)

	<-started
	require.NoError(t, e.Cancel(id))

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCancelled, sess.Status)

	// Cancelling a terminal session is a no-op.
	assert.NoError(t, e.Cancel(id))
}

func TestResultUnavailableWhileRunning(t *testing.T) {
	started := make(chan struct{})
	blocking := testutil.NewScriptedAgent(agent.BehavioralName,
		testutil.WithRunFn(func(ctx context.Context, in core.RunInput) (core.Report, error) {
			close(started)
			<-ctx.Done()
			return core.Report{}, ctx.Err()
		}),
	)

	e := newTestEngine(testConfig(), blocking)
	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand,
		func(o *StartOptions) { o.Depth = core.DepthShallow },
	)
	require.NoError(t, err)

	<-started
	_, err = e.GetResult(id)
	assert.ErrorIs(t, err, core.ErrNotReady)

	require.NoError(t, e.Cancel(id))
	waitTerminal(t, e, id)

	_, err = e.GetResult(id)
	assert.NoError(t, err)
}

func TestDurationLimitSkipsEverything(t *testing.T) {
	behavioral := testutil.NewScriptedAgent(agent.BehavioralName)

	cfg := testConfig()
	cfg.Limits = core.Limits{MaxDuration: time.Nanosecond}
	e := newTestEngine(cfg, behavioral)

	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand,
		func(o *StartOptions) { o.Depth = core.DepthShallow },
	)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompletedPartial, sess.Status)
	require.Len(t, sess.Skips, 1)
	assert.Equal(t, string(core.LimitDuration), sess.Skips[0].Detail)
	assert.Zero(t, behavioral.Calls())
}

func TestDepthSelection(t *testing.T) {
	t.Run("trigger default", func(t *testing.T) {
		behavioral := testutil.NewScriptedAgent(agent.BehavioralName)
		contract := testutil.NewScriptedAgent(agent.ContractName)
		regression := testutil.NewScriptedAgent(agent.RegressionName)
		e := newTestEngine(testConfig(), behavioral, contract, regression)

		id, err := e.Start(context.Background(), target(), core.TriggerScheduledHealth)
		require.NoError(t, err)

		sess := waitTerminal(t, e, id)
		assert.Equal(t, core.DepthShallow, sess.Depth)
		assert.Equal(t, 1, behavioral.Calls())
		assert.Zero(t, contract.Calls())
	})

	t.Run("history escalates", func(t *testing.T) {
		e := newTestEngine(testConfig(),
			testutil.NewScriptedAgent(agent.BehavioralName),
			testutil.NewScriptedAgent(agent.ContractName),
			testutil.NewScriptedAgent(agent.RegressionName),
		)

		history := []policy.HistoryEntry{
			{FeatureID: "checkout-flow", Status: core.StatusFailed},
			{FeatureID: "checkout-flow", Status: core.StatusCompletedPartial},
		}
		id, err := e.Start(context.Background(), target(), core.TriggerScheduledHealth,
			func(o *StartOptions) { o.History = history },
		)
		require.NoError(t, err)

		sess := waitTerminal(t, e, id)
		assert.Equal(t, core.DepthDeep, sess.Depth)
	})
}

func TestStartValidation(t *testing.T) {
	e := newTestEngine(testConfig(), testutil.NewScriptedAgent(agent.BehavioralName))

	_, err := e.Start(context.Background(), target(), core.Trigger("bogus"))
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = e.Start(context.Background(), core.TargetContext{}, core.TriggerUserCommand)
	assert.ErrorIs(t, err, core.ErrConfig)

	_, err = e.Start(context.Background(), target(), core.TriggerUserCommand,
		func(o *StartOptions) { o.Depth = core.Depth("bogus") },
	)
	assert.ErrorIs(t, err, core.ErrConfig)

	noSelector := New(nil)
	_, err = noSelector.Start(context.Background(), target(), core.TriggerUserCommand)
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestUnknownSessionID(t *testing.T) {
	e := newTestEngine(testConfig(), testutil.NewScriptedAgent(agent.BehavioralName))

	_, err := e.GetStatus("nope")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = e.GetResult("nope")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	assert.ErrorIs(t, e.Cancel("nope"), core.ErrSessionNotFound)
	assert.ErrorIs(t, e.Wait(context.Background(), "nope"), core.ErrSessionNotFound)
}

func TestSequentialDispatch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentAgents = 0

	e := newTestEngine(cfg,
		testutil.NewScriptedAgent(agent.BehavioralName),
		testutil.NewScriptedAgent(agent.ContractName),
		testutil.NewScriptedAgent(agent.RegressionName),
	)

	id, err := e.Start(context.Background(), target(), core.TriggerUserCommand)
	require.NoError(t, err)

	sess := waitTerminal(t, e, id)
	assert.Equal(t, core.StatusCompleted, sess.Status)
}

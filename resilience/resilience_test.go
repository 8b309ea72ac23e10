package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() core.ResilienceConfig {
	return core.ResilienceConfig{
		MaxAttempts:      3,
		BaseBackoff:      time.Millisecond,
		MaxBackoff:       5 * time.Millisecond,
		CallTimeout:      time.Second,
		BreakerThreshold: 5,
	}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.10}),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	assert.Equal(t, core.OutcomeSucceeded, rep.Outcome)
	assert.Equal(t, 1, rep.Attempts)
	assert.InDelta(t, 0.10, rep.CostUSD, 1e-9)
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	// Fails transiently exactly twice with a retry budget of three attempts.
	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithScript(syscall.ECONNREFUSED, syscall.ECONNREFUSED),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded}),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	assert.Equal(t, core.OutcomeSucceeded, rep.Outcome)
	assert.Equal(t, 3, rep.Attempts)
	assert.Equal(t, 3, a.Calls())
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithScript(syscall.ECONNREFUSED, syscall.ECONNREFUSED, syscall.ECONNREFUSED, syscall.ECONNREFUSED),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 3, rep.Attempts)
	assert.Contains(t, rep.Reason, "retry budget exhausted after 3 attempts")
}

func TestExecuteFatalErrorIsNotRetried(t *testing.T) {
	a := testutil.NewScriptedAgent("contract",
		testutil.WithScript(errors.New("validation failed"), errors.New("validation failed")),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 1, rep.Attempts)
	assert.Equal(t, "validation failed", rep.Reason)
	assert.Equal(t, 1, a.Calls())
}

func TestExecuteFatalCallKeepsIncurredCost(t *testing.T) {
	// A probe run can spend real money before failing; the settled report
	// must carry that spend so the session ledger stays truthful.
	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithRunFn(func(context.Context, core.RunInput) (core.Report, error) {
			return core.Report{CostUSD: 0.35, Endpoints: 3}, &core.StatusError{Code: 400, URL: "http://target/health"}
		}),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 1, rep.Attempts)
	assert.InDelta(t, 0.35, rep.CostUSD, 1e-9)
	assert.Equal(t, 3, rep.Endpoints)
}

func TestExecuteAccumulatesSpendAcrossRetries(t *testing.T) {
	// Two transient failures at 0.05 each, then a success at 0.10: the
	// settled report owes all three attempts.
	calls := 0
	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithRunFn(func(context.Context, core.RunInput) (core.Report, error) {
			calls++
			if calls <= 2 {
				return core.Report{CostUSD: 0.05, Endpoints: 1}, syscall.ECONNREFUSED
			}
			return core.Report{Outcome: core.OutcomeSucceeded, CostUSD: 0.10, Endpoints: 2}, nil
		}),
	)
	c := New(testConfig(), nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})

	require.Equal(t, core.OutcomeSucceeded, rep.Outcome)
	assert.Equal(t, 3, rep.Attempts)
	assert.InDelta(t, 0.20, rep.CostUSD, 1e-9)
	assert.Equal(t, 4, rep.Endpoints)
}

func TestExecuteCustomClassifier(t *testing.T) {
	cfg := testConfig()
	// Treat everything as fatal, overriding the default rule table.
	cfg.Classify = func(error) core.ErrorClass { return core.ClassFatal }

	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithScript(syscall.ECONNREFUSED),
	)
	c := New(cfg, nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})
	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 1, a.Calls())
}

func TestCircuitBreakerOpensAcrossCalls(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2
	cfg.BreakerThreshold = 3

	failing := testutil.NewScriptedAgent("behavioral",
		testutil.WithScript(syscall.ECONNREFUSED, syscall.ECONNREFUSED, syscall.ECONNREFUSED, syscall.ECONNREFUSED),
	)
	c := New(cfg, nil)

	// First call burns two transient failures; second trips the breaker on
	// its first failure.
	first := c.Execute(context.Background(), failing, core.RunInput{})
	require.Equal(t, core.OutcomeFatal, first.Outcome)

	second := c.Execute(context.Background(), failing, core.RunInput{})
	assert.Equal(t, core.OutcomeFatal, second.Outcome)
	assert.Contains(t, second.Reason, "circuit open after 3 consecutive transient failures")

	// Further calls are rejected without invoking the agent.
	calls := failing.Calls()
	third := c.Execute(context.Background(), failing, core.RunInput{})
	assert.Equal(t, core.OutcomeFatal, third.Outcome)
	assert.Equal(t, 0, third.Attempts)
	assert.Contains(t, third.Reason, "circuit open")
	assert.Equal(t, calls, failing.Calls())
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.BreakerThreshold = 3

	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithScript(syscall.ECONNREFUSED, syscall.ECONNREFUSED),
		testutil.WithReport(core.Report{Outcome: core.OutcomeSucceeded}),
	)
	c := New(cfg, nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})
	require.Equal(t, core.OutcomeSucceeded, rep.Outcome)

	// Two failures then a success must leave the breaker closed.
	assert.False(t, c.tripped())
}

func TestExecuteObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := testutil.NewScriptedAgent("behavioral")
	c := New(testConfig(), nil)

	rep := c.Execute(ctx, a, core.RunInput{})
	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 0, a.Calls())
}

func TestExecutePerCallTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 1
	cfg.CallTimeout = 10 * time.Millisecond

	a := testutil.NewScriptedAgent("behavioral",
		testutil.WithRunFn(func(ctx context.Context, _ core.RunInput) (core.Report, error) {
			<-ctx.Done()
			return core.Report{}, ctx.Err()
		}),
	)
	c := New(cfg, nil)

	rep := c.Execute(context.Background(), a, core.RunInput{})
	assert.Equal(t, core.OutcomeFatal, rep.Outcome)
	assert.Equal(t, 1, rep.Attempts)
}

package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/qamesh/core"
)

// ScriptedAgent is a configurable fake agent for tests. Supply a RunFn for
// full control, or a Script of per-call errors followed by the configured
// Report once the script is exhausted.
//
// Example:
//
//	a := NewScriptedAgent("behavioral",
//	    WithScript(errConnRefused, errConnRefused), // fail twice, then succeed
//	    WithReport(core.Report{Outcome: core.OutcomeSucceeded}),
//	)
type ScriptedAgent struct {
	name     string
	estimate core.Estimate
	report   core.Report
	script   []error
	runFn    func(ctx context.Context, in core.RunInput) (core.Report, error)

	calls atomic.Int64
}

// Option mutates a ScriptedAgent under construction.
type Option func(*ScriptedAgent)

// WithEstimate sets the agent's admission estimate.
func WithEstimate(est core.Estimate) Option {
	return func(a *ScriptedAgent) { a.estimate = est }
}

// WithReport sets the report returned once the script is exhausted.
func WithReport(rep core.Report) Option {
	return func(a *ScriptedAgent) { a.report = rep }
}

// WithScript queues errors returned by successive Run calls before the
// configured report is produced.
func WithScript(errs ...error) Option {
	return func(a *ScriptedAgent) { a.script = errs }
}

// WithRunFn overrides Run entirely.
func WithRunFn(fn func(ctx context.Context, in core.RunInput) (core.Report, error)) Option {
	return func(a *ScriptedAgent) { a.runFn = fn }
}

// NewScriptedAgent constructs a fake agent that succeeds by default.
func NewScriptedAgent(name string, optFns ...Option) *ScriptedAgent {
	a := &ScriptedAgent{
		name:   name,
		report: core.Report{Outcome: core.OutcomeSucceeded},
	}
	for _, fn := range optFns {
		fn(a)
	}
	return a
}

// Name implements core.Agent.
func (a *ScriptedAgent) Name() string { return a.name }

// Estimate implements core.Agent.
func (a *ScriptedAgent) Estimate(core.TargetContext) core.Estimate { return a.estimate }

// Run implements core.Agent.
func (a *ScriptedAgent) Run(ctx context.Context, in core.RunInput) (core.Report, error) {
	call := a.calls.Add(1)
	if a.runFn != nil {
		return a.runFn(ctx, in)
	}
	if int(call) <= len(a.script) {
		return core.Report{}, a.script[call-1]
	}
	return a.report, nil
}

// Calls returns how many times Run was invoked.
func (a *ScriptedAgent) Calls() int { return int(a.calls.Load()) }

// NewFinding builds a finding with sensible defaults for tests.
func NewFinding(agent string, sev core.Severity, confidence float64, title string) core.Finding {
	return core.Finding{
		Severity:   sev,
		Title:      title,
		Confidence: confidence,
		Agent:      agent,
		Timestamp:  time.Now().UTC(),
	}
}

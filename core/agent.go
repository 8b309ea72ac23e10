package core

import "context"

// Outcome is the per-agent result classification reported back to the
// orchestrator after an agent run (or after the resilience controller gave
// up on one).
type Outcome string

const (
	// OutcomeSucceeded means the agent completed its verification strategy.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeTransient means the run failed in a retryable way. The
	// resilience controller absorbs this classification; the orchestrator
	// never observes it on a settled report.
	OutcomeTransient Outcome = "failed-transient"
	// OutcomeFatal means the agent cannot participate further this session.
	OutcomeFatal Outcome = "failed-fatal"
	// OutcomeSkipped means the agent was not applicable to the context and
	// deliberately did nothing. It does not count as a failure.
	OutcomeSkipped Outcome = "skipped-not-applicable"
)

// RunInput is the read-only input handed to an agent run.
type RunInput struct {
	// Target is the immutable context under verification.
	Target TargetContext
	// Depth the session runs at; agents may scale their effort with it.
	Depth Depth
	// Safety gates destructive or production-unsafe probes. Agents must
	// consult it immediately before any mutating action.
	Safety SafetyConfig
}

// Report is what an agent hands back to the orchestrator. Agents never
// mutate session state directly; all accounting flows through the report.
type Report struct {
	// Outcome classifies the run.
	Outcome Outcome
	// Findings produced during the run, in discovery order.
	Findings []Finding
	// CostUSD actually incurred by the run.
	CostUSD float64
	// Endpoints is the number of endpoints probed.
	Endpoints int
	// Attempts is the number of invocation attempts, filled in by the
	// resilience controller.
	Attempts int
	// Reason carries the failure or skip explanation when Outcome is not
	// succeeded.
	Reason string
	// Skips records partial blocks inside an otherwise successful run,
	// such as a safety-gated probe that was not performed.
	Skips []SkipReason
}

// Estimate is an agent's pre-dispatch forecast, used by the cost/limit guard
// for admission decisions.
type Estimate struct {
	// CostUSD the run is expected to incur.
	CostUSD float64
	// Endpoints the run expects to probe.
	Endpoints int
}

// Agent is the uniform capability contract every verification strategy
// satisfies. Behavioral, Contract and Regression agents (and any future
// agent) are polymorphic over this interface; no agent-specific branching
// lives outside the dispatcher's selection table.
//
// Implementations must:
//   - Respect context cancellation at their own checkpoints
//   - Treat the RunInput as read-only
//   - Report skipped-not-applicable instead of erroring when the context
//     does not apply to their strategy
type Agent interface {
	// Name is the stable external identifier of the agent.
	Name() string
	// Estimate forecasts the cost of a run against the given context.
	Estimate(target TargetContext) Estimate
	// Run executes the verification strategy. A nil error means the report
	// is authoritative; a non-nil error is classified transient or fatal by
	// the resilience controller, which owns retries.
	Run(ctx context.Context, in RunInput) (Report, error)
}

// Selector picks the agent subset to dispatch for a depth. Prior findings
// from earlier sessions let regression-depth runs include agents whose past
// findings overlap the change.
type Selector interface {
	Select(depth Depth, target TargetContext, prior []Finding) ([]Agent, error)
}

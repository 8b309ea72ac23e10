package core

import "fmt"

// Trigger identifies what initiated a session. The trigger determines the
// default depth when the target context carries no override.
type Trigger string

const (
	// TriggerUserCommand is an explicit user request.
	TriggerUserCommand Trigger = "user_command"
	// TriggerScheduledHealth is a periodic health sweep.
	TriggerScheduledHealth Trigger = "scheduled_health"
	// TriggerSpecCompliance is a full compliance verification pass.
	TriggerSpecCompliance Trigger = "spec_compliance"
	// TriggerPipeline is a CI/CD pipeline or hook invocation.
	TriggerPipeline Trigger = "pipeline"
)

// Validate reports whether the trigger is a known value.
func (t Trigger) Validate() error {
	switch t {
	case TriggerUserCommand, TriggerScheduledHealth, TriggerSpecCompliance, TriggerPipeline:
		return nil
	}
	return fmt.Errorf("%w: unknown trigger %q", ErrConfig, string(t))
}

// Depth is the configured thoroughness level. It controls which agents the
// dispatcher selects and their per-agent limits.
type Depth string

const (
	// DepthShallow runs the cheapest checks only.
	DepthShallow Depth = "shallow"
	// DepthStandard runs the default agent set.
	DepthStandard Depth = "standard"
	// DepthDeep runs every agent, including probes gated by safety config.
	DepthDeep Depth = "deep"
	// DepthRegression focuses on diff-driven regression detection.
	DepthRegression Depth = "regression"
)

// Validate reports whether the depth is a known value.
func (d Depth) Validate() error {
	switch d {
	case DepthShallow, DepthStandard, DepthDeep, DepthRegression:
		return nil
	}
	return fmt.Errorf("%w: unknown depth %q", ErrConfig, string(d))
}

// Rank orders depths by thoroughness. Regression is ranked alongside deep
// because its agent set is narrow but exhaustive over the diff.
func (d Depth) Rank() int {
	switch d {
	case DepthShallow:
		return 1
	case DepthStandard:
		return 2
	case DepthDeep, DepthRegression:
		return 3
	default:
		return 0
	}
}

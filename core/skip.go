package core

import "fmt"

// SkipKind tags the machine-readable category of a skip reason.
type SkipKind string

const (
	// SkipLimit records an agent not dispatched (or work not performed)
	// because a hard limit would have been exceeded.
	SkipLimit SkipKind = "limit"
	// SkipSafety records an action blocked by the safety configuration.
	SkipSafety SkipKind = "safety"
	// SkipAgentFailure records an agent excluded after a fatal failure.
	SkipAgentFailure SkipKind = "agent-failure"
)

// LimitKind identifies which hard limit produced a SkipLimit reason.
type LimitKind string

const (
	// LimitCost is the maximum total session cost in USD.
	LimitCost LimitKind = "cost"
	// LimitDuration is the maximum wall-clock session duration.
	LimitDuration LimitKind = "duration"
	// LimitEndpoints is the maximum number of endpoints probed.
	LimitEndpoints LimitKind = "endpoints"
)

// SkipReason is a structured record of why part of a session did not run.
// It replaces ad hoc string reasons so callers can match on Kind and Detail
// instead of substrings.
type SkipReason struct {
	// Kind is the category: limit, safety or agent-failure.
	Kind SkipKind `json:"kind"`
	// Detail is the machine-readable specifics: the LimitKind for limit
	// skips, the blocked action for safety skips, the failure reason for
	// agent-failure skips.
	Detail string `json:"detail"`
	// Agent names the agent the reason applies to, when applicable.
	Agent string `json:"agent,omitempty"`
}

// String renders the reason as "kind:detail" (plus agent when set).
func (r SkipReason) String() string {
	if r.Agent != "" {
		return fmt.Sprintf("%s:%s (%s)", r.Kind, r.Detail, r.Agent)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.Detail)
}

// LimitSkip builds a SkipLimit reason for the given limit kind.
func LimitSkip(kind LimitKind, agent string) SkipReason {
	return SkipReason{Kind: SkipLimit, Detail: string(kind), Agent: agent}
}

// SafetySkip builds a SkipSafety reason for a blocked action.
func SafetySkip(action, agent string) SkipReason {
	return SkipReason{Kind: SkipSafety, Detail: action, Agent: agent}
}

// FailureSkip builds a SkipAgentFailure reason.
func FailureSkip(detail, agent string) SkipReason {
	return SkipReason{Kind: SkipAgentFailure, Detail: detail, Agent: agent}
}

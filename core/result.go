package core

import "sort"

// AgentResult is the settled per-agent outcome recorded on a Result.
type AgentResult struct {
	// Agent is the agent's name.
	Agent string `json:"agent"`
	// Outcome is the settled classification (never failed-transient).
	Outcome Outcome `json:"outcome"`
	// CostUSD the agent actually incurred.
	CostUSD float64 `json:"cost_usd"`
	// Attempts made by the resilience controller, including the final one.
	Attempts int `json:"attempts"`
	// Reason explains non-succeeded outcomes.
	Reason string `json:"reason,omitempty"`
}

// Result is the aggregated output of a finalized session. It is created once
// during finalization and never mutated afterwards.
type Result struct {
	// Findings merged from all agents, ordered severity desc, confidence
	// desc, with stable tie-breaks by agent name then discovery order.
	Findings []Finding `json:"findings"`
	// Agents holds the per-agent outcomes in agent-name order.
	Agents []AgentResult `json:"agents"`
	// TotalCostUSD is the sum of per-agent costs.
	TotalCostUSD float64 `json:"total_cost_usd"`
	// Partial is set iff the session finalized as completed_partial.
	Partial bool `json:"partial"`
}

// SortFindings orders findings by severity desc then confidence desc. The
// sort is stable, so callers that append findings grouped by agent name in
// discovery order get the documented tie-break for free.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		return findings[i].Confidence > findings[j].Confidence
	})
}

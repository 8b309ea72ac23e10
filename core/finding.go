package core

import "time"

// Severity classifies how serious a finding is. Ordering is
// critical > high > medium > low; use Rank for comparisons.
type Severity string

const (
	// SeverityCritical indicates the target is broken or unsafe.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a defect likely to affect users.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a defect with limited impact.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a cosmetic or advisory issue.
	SeverityLow Severity = "low"
)

// Rank maps severities to a comparable ordering; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Finding is a single reported issue produced by an agent. Findings are
// append-only; once recorded on a result they are never mutated.
type Finding struct {
	// Severity of the issue.
	Severity Severity `json:"severity"`
	// Title is a short human-readable summary.
	Title string `json:"title"`
	// Evidence is the raw payload backing the finding (response bodies,
	// diff hunks, spec excerpts).
	Evidence string `json:"evidence,omitempty"`
	// Subject names the endpoint or file the finding refers to, when known.
	Subject string `json:"subject,omitempty"`
	// Confidence is the agent's confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Agent is the name of the originating agent.
	Agent string `json:"agent"`
	// Timestamp records when the finding was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Package triage defines the optional model-assisted evidence triage used by
// agents to refine the severity and confidence of a finding before it is
// recorded. Vendor adapters live in the triage/anthropic and triage/openai
// subpackages; agents fall back to their own heuristics when no model is
// configured or a triage call fails.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/qamesh/core"
)

// Evidence is the raw material handed to a triage model.
type Evidence struct {
	// Agent names the verification strategy that produced the evidence.
	Agent string `json:"agent"`
	// Title is the agent's provisional summary of the issue.
	Title string `json:"title"`
	// Payload is the raw evidence (response bodies, diff hunks, spec
	// excerpts), possibly truncated by the adapter.
	Payload string `json:"payload"`
}

// Assessment is the model's refined judgement of a piece of evidence.
type Assessment struct {
	Severity   core.Severity `json:"severity"`
	Confidence float64       `json:"confidence"`
	Rationale  string        `json:"rationale,omitempty"`
}

// Model assesses raw evidence. Implementations must be safe for concurrent
// use and honor context cancellation.
type Model interface {
	Assess(ctx context.Context, ev Evidence) (Assessment, error)
}

// SystemPrompt is the shared instruction both vendor adapters send.
const SystemPrompt = `You are a QA triage assistant. Given evidence from an automated
verification agent, assess how severe the underlying issue is. Respond with a
single JSON object: {"severity": "critical"|"high"|"medium"|"low",
"confidence": 0.0-1.0, "rationale": "<one sentence>"}. Respond with JSON only.`

// BuildPrompt renders the user message for a piece of evidence.
func BuildPrompt(ev Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent: %s\n", ev.Agent)
	fmt.Fprintf(&b, "Issue: %s\n", ev.Title)
	b.WriteString("Evidence:\n")
	b.WriteString(ev.Payload)
	return b.String()
}

// ParseAssessment decodes a model reply, tolerating surrounding prose and
// markdown fences, and clamps confidence into [0,1].
func ParseAssessment(reply string) (Assessment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Assessment{}, fmt.Errorf("triage reply contains no JSON object")
	}
	var a Assessment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &a); err != nil {
		return Assessment{}, fmt.Errorf("decoding triage reply: %w", err)
	}
	if a.Severity.Rank() == 0 {
		return Assessment{}, fmt.Errorf("triage reply has unknown severity %q", a.Severity)
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a, nil
}

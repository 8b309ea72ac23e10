// Package core provides the foundational domain types, interfaces and value
// objects used by qamesh. It defines the core abstractions for:
//
//   - Sessions (one end-to-end verification run with a single lifecycle)
//   - Target contexts (the immutable description of the change under test)
//   - Agents (independent verification strategies behind one run contract)
//   - Findings and Results (aggregated, severity-ordered evidence)
//   - Structured skip reasons (limit / safety / agent-failure)
//   - Pluggable stores for session persistence and VCS diff retrieval
//
// The package intentionally keeps implementation concerns (persistence,
// engine orchestration, concrete agents) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core

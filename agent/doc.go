// Package agent provides the concrete verification strategies and the
// dispatcher that selects which of them run at a given depth.
//
// Three agents ship with qamesh, all polymorphic over core.Agent:
//
//   - Behavioral probes the running target over HTTP (health, endpoint
//     status, latency; mutating probes at deep depth behind the safety gate)
//   - Contract discovers the target's API spec and diffs it against the
//     declared endpoints
//   - Regression analyzes the VCS diff of the change for risky patterns
//
// The dispatcher holds the depth → agent-subset table; adding an agent never
// touches dispatch or resilience code.
package agent

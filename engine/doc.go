// Package engine orchestrates verification sessions: it owns the session
// state machine, drives agent dispatch with bounded concurrency, meters
// spend through the cost/limit guard, wraps every agent call in the
// resilience controller, and aggregates per-agent reports into one result.
//
// Concurrency model: agents of one session run as independent goroutines,
// but all mutation of shared session state (cumulative cost, skip reasons,
// finding accumulation) happens in the session's single run goroutine,
// which collects agent reports from a channel. Agents communicate results
// back instead of mutating the session, eliminating data races without
// fine-grained locking. Sessions are fully independent of each other.
//
// Error policy: only configuration errors abort session creation. Every
// other failure class (transient, fatal, limit, safety) is absorbed into
// structured status and skip-reason data on the finalized session, so a
// caller inspecting a terminal session always gets a complete picture.
package engine

// Package guard enforces the hard session limits: maximum total cost,
// maximum endpoints probed and maximum wall-clock duration.
//
// Admission works on reservations: before an agent is dispatched the guard
// reserves its estimate, and the settled actuals replace the reservation
// when the agent completes. A rejected admission produces a structured skip
// reason; it is an expected control-flow outcome, never an error.
//
// When several limits would be breached by the same admission the reported
// reason follows a fixed precedence: cost, then duration, then endpoints.
package guard

import (
	"sync"
	"time"

	"github.com/hupe1980/qamesh/core"
)

// Guard tracks cumulative spend for one session against its limits. Safe
// for concurrent use, though the engine drives it from a single goroutine.
type Guard struct {
	limits  core.Limits
	started time.Time
	now     func() time.Time

	mu        sync.Mutex
	cost      float64
	endpoints int
}

// New creates a guard for a session that started at the given time.
func New(limits core.Limits, started time.Time) *Guard {
	return &Guard{limits: limits, started: started, now: time.Now}
}

// Admit decides whether an agent with the given estimate may be dispatched.
// On rejection it returns the structured skip reason identifying the first
// breached limit in precedence order (cost > duration > endpoints) and
// reserves nothing. On admission the estimate is reserved until Settle.
func (g *Guard) Admit(agent string, est core.Estimate) (core.SkipReason, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.limits.MaxCostUSD > 0 && g.cost+est.CostUSD > g.limits.MaxCostUSD {
		return core.LimitSkip(core.LimitCost, agent), false
	}
	if g.limits.MaxDuration > 0 && g.now().Sub(g.started) > g.limits.MaxDuration {
		return core.LimitSkip(core.LimitDuration, agent), false
	}
	if g.limits.MaxEndpoints > 0 && g.endpoints+est.Endpoints > g.limits.MaxEndpoints {
		return core.LimitSkip(core.LimitEndpoints, agent), false
	}

	g.cost += est.CostUSD
	g.endpoints += est.Endpoints
	return core.SkipReason{}, true
}

// Settle replaces an admitted reservation with the agent's actuals.
func (g *Guard) Settle(est core.Estimate, actualCostUSD float64, actualEndpoints int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cost += actualCostUSD - est.CostUSD
	g.endpoints += actualEndpoints - est.Endpoints
}

// Deadline returns the absolute session deadline and whether one applies.
// The engine derives the whole-session context from it, so a non-responsive
// agent call is abandoned at the deadline regardless of cooperation.
func (g *Guard) Deadline() (time.Time, bool) {
	if g.limits.MaxDuration <= 0 {
		return time.Time{}, false
	}
	return g.started.Add(g.limits.MaxDuration), true
}

// CommittedCost returns the currently reserved plus settled spend.
func (g *Guard) CommittedCost() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cost
}

// CommittedEndpoints returns the currently reserved plus settled endpoints.
func (g *Guard) CommittedEndpoints() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endpoints
}

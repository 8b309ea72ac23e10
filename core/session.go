package core

import (
	"fmt"
	"sync"
	"time"
)

// Session represents one end-to-end orchestration run. It is owned
// exclusively by the engine for its lifetime: agents communicate results
// back through reports instead of mutating session state, so all writes go
// through a single logical owner. The embedded lock only guards concurrent
// snapshot reads (GetStatus) against that single writer.
//
// Contract:
//   - Cost is monotonically non-decreasing and equals the sum of agent
//     costs recorded so far
//   - Terminal sessions are immutable; mutation attempts return
//     ErrTerminalState
//   - Clone returns a deep copy safe for external use
type Session struct {
	ID      string        `json:"id"`
	Trigger Trigger       `json:"trigger"`
	Depth   Depth         `json:"depth"`
	Status  Status        `json:"status"`
	Target  TargetContext `json:"context"`
	Result  *Result       `json:"result,omitempty"`
	Created time.Time     `json:"created"`
	CostUSD float64       `json:"cost_usd"`
	Skips   []SkipReason  `json:"skip_reasons,omitempty"`

	mu sync.RWMutex
}

// NewSession creates a pending session for the given target.
func NewSession(id string, trigger Trigger, depth Depth, target TargetContext) *Session {
	return &Session{
		ID:      id,
		Trigger: trigger,
		Depth:   depth,
		Status:  StatusPending,
		Target:  target,
		Created: time.Now().UTC(),
	}
}

// Transition moves the session to the next status, enforcing the state
// machine. Moves out of a terminal state return ErrTerminalState.
func (s *Session) Transition(to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkTransition(s.Status, to); err != nil {
		return err
	}
	s.Status = to
	return nil
}

// CurrentStatus returns the status under the read lock.
func (s *Session) CurrentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// AddCost records an agent's incurred cost. Costs only accumulate; the
// cumulative value stays equal to the sum of recorded agent costs.
func (s *Session) AddCost(usd float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.CostUSD += usd
	return nil
}

// AddSkip appends a structured skip reason.
func (s *Session) AddSkip(reason SkipReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status.Terminal() {
		return ErrTerminalState
	}
	s.Skips = append(s.Skips, reason)
	return nil
}

// Finalize attaches the result and moves the session to its terminal status
// in one step. Exactly one finalize succeeds per session.
func (s *Session) Finalize(status Status, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkTransition(s.Status, status); err != nil {
		return err
	}
	if !status.Terminal() {
		return fmt.Errorf("%w: finalize requires a terminal status, got %q", ErrConfig, status)
	}
	s.Status = status
	s.Result = result
	return nil
}

// Clone returns a deep copy safe for callers to retain.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:      s.ID,
		Trigger: s.Trigger,
		Depth:   s.Depth,
		Status:  s.Status,
		Target:  s.Target,
		Created: s.Created,
		CostUSD: s.CostUSD,
	}
	clone.Target.TargetFiles = append([]string(nil), s.Target.TargetFiles...)
	clone.Target.TargetEndpoints = append([]string(nil), s.Target.TargetEndpoints...)
	clone.Skips = append([]SkipReason(nil), s.Skips...)
	if s.Result != nil {
		res := Result{
			Findings:     append([]Finding(nil), s.Result.Findings...),
			Agents:       append([]AgentResult(nil), s.Result.Agents...),
			TotalCostUSD: s.Result.TotalCostUSD,
			Partial:      s.Result.Partial,
		}
		clone.Result = &res
	}
	return clone
}

// SessionStore persists sessions. The orchestration core depends only on
// this narrow create / read / update-on-finalize interface, never on a
// specific storage technology.
type SessionStore interface {
	// Create persists a newly created session record.
	Create(s *Session) error
	// Get returns the stored session or ErrSessionNotFound.
	Get(id string) (*Session, error)
	// Finalize persists the terminal snapshot of a session.
	Finalize(s *Session) error
}

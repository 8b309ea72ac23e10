package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/guard"
	"github.com/hupe1980/qamesh/logging"
	"github.com/hupe1980/qamesh/policy"
	"github.com/hupe1980/qamesh/resilience"
	"github.com/hupe1980/qamesh/session"
)

// Config defines tuning parameters for the engine's operational behavior.
type Config struct {
	// MaxConcurrentAgents bounds concurrent agent runs within one session.
	// Set to 0 for sequential dispatch.
	MaxConcurrentAgents int

	// Resilience parameters applied around every agent invocation.
	Resilience core.ResilienceConfig

	// Limits are the hard session caps the guard enforces.
	Limits core.Limits

	// Safety gates destructive probes.
	Safety core.SafetyConfig
}

// DefaultConfig provides conservative defaults suitable for local use.
var DefaultConfig = Config{
	MaxConcurrentAgents: 3,
	Resilience:          core.DefaultResilienceConfig(),
	Limits:              core.DefaultLimits(),
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore persists sessions. Defaults to the in-memory store.
	SessionStore core.SessionStore

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine coordinates verification sessions. Public methods are safe for
// concurrent use; sessions never share mutable state with each other.
type Engine struct {
	selector core.Selector
	config   Config
	store    core.SessionStore
	logger   logging.Logger

	mu   sync.RWMutex
	live map[string]*liveSession
}

// liveSession tracks an in-flight session: the mutable session record owned
// by its run goroutine, the cancel func for cooperative cancellation, and a
// channel closed on finalization.
type liveSession struct {
	sess   *core.Session
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Engine dispatching through the given selector.
func New(selector core.Selector, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		selector: selector,
		config:   opts.Config,
		store:    opts.SessionStore,
		logger:   opts.Logger,
		live:     make(map[string]*liveSession),
	}
}

// StartOptions carries optional per-session inputs.
type StartOptions struct {
	// Depth forces a depth, bypassing the depth selector.
	Depth core.Depth
	// History feeds the depth selector's escalation rule.
	History []policy.HistoryEntry
	// PriorFindings lets regression-depth sessions include agents whose
	// past findings overlap the change.
	PriorFindings []core.Finding
}

// Start validates the inputs, creates a pending session and begins
// asynchronous dispatch, returning the session id immediately. Only
// configuration errors abort creation.
func (e *Engine) Start(ctx context.Context, target core.TargetContext, trigger core.Trigger, optFns ...func(o *StartOptions)) (string, error) {
	var startOpts StartOptions
	for _, fn := range optFns {
		fn(&startOpts)
	}

	if e.selector == nil {
		return "", fmt.Errorf("%w: engine has no agent selector", core.ErrConfig)
	}
	if err := trigger.Validate(); err != nil {
		return "", err
	}
	if err := target.Validate(); err != nil {
		return "", err
	}

	depth := startOpts.Depth
	if depth == "" {
		depth = policy.Select(trigger, target, startOpts.History)
	} else if err := depth.Validate(); err != nil {
		return "", err
	}

	sess := core.NewSession(uuid.NewString(), trigger, depth, target)
	if err := e.store.Create(sess); err != nil {
		return "", fmt.Errorf("creating session record: %w", err)
	}

	// The session outlives the caller's context; cancellation flows through
	// Cancel. The guard's session deadline bounds the run independently of
	// agent cooperation.
	g := guard.New(e.config.Limits, sess.Created)
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := g.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(context.Background(), deadline)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	ls := &liveSession{sess: sess, cancel: cancel, done: make(chan struct{})}
	e.mu.Lock()
	e.live[sess.ID] = ls
	e.mu.Unlock()

	go e.run(runCtx, ls, g, startOpts.PriorFindings)

	return sess.ID, nil
}

// GetStatus returns a snapshot of the session's current state.
func (e *Engine) GetStatus(id string) (*core.Session, error) {
	e.mu.RLock()
	ls, ok := e.live[id]
	e.mu.RUnlock()
	if ok {
		return ls.sess.Clone(), nil
	}
	return e.store.Get(id)
}

// GetResult returns the aggregated result once the session is terminal,
// or core.ErrNotReady before that.
func (e *Engine) GetResult(id string) (*core.Result, error) {
	sess, err := e.GetStatus(id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Terminal() {
		return nil, core.ErrNotReady
	}
	return sess.Result, nil
}

// Cancel requests cooperative cancellation of a running session. It is
// idempotent: cancelling a terminal or already-cancelled session is a no-op.
func (e *Engine) Cancel(id string) error {
	e.mu.RLock()
	ls, ok := e.live[id]
	e.mu.RUnlock()
	if ok {
		ls.cancel()
		return nil
	}
	// Terminal sessions have left the live map; verify the id exists.
	if _, err := e.store.Get(id); err != nil {
		return err
	}
	return nil
}

// Wait blocks until the session reaches a terminal status or ctx is done.
func (e *Engine) Wait(ctx context.Context, id string) error {
	e.mu.RLock()
	ls, ok := e.live[id]
	e.mu.RUnlock()
	if !ok {
		// Already terminal (or unknown).
		_, err := e.store.Get(id)
		return err
	}
	select {
	case <-ls.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settledReport pairs an agent's settled report with its admission estimate.
type settledReport struct {
	agent string
	est   core.Estimate
	rep   core.Report
}

// run is the session's single-writer goroutine: it owns every mutation of
// the session record from first transition to finalization.
func (e *Engine) run(ctx context.Context, ls *liveSession, g *guard.Guard, prior []core.Finding) {
	sess := ls.sess
	log := logging.NewSessionLogger(e.logger).WithSession(sess.ID)
	defer e.finish(ls)

	if err := sess.Transition(core.StatusRunning); err != nil {
		log.Error("session failed to start", "error", err.Error())
		return
	}
	log.Info("session running", "trigger", string(sess.Trigger), "depth", string(sess.Depth))

	selected, err := e.selector.Select(sess.Depth, sess.Target, prior)
	if err != nil {
		log.Error("agent selection failed", "error", err.Error())
		e.finalize(ctx, sess, nil, log)
		return
	}

	resil := resilience.New(e.config.Resilience, log)

	// Admission happens up front against estimate reservations, so the
	// decision is deterministic regardless of completion order. Settled
	// actuals replace reservations as reports arrive.
	var dispatched []struct {
		agent core.Agent
		est   core.Estimate
	}
	var settled []settledReport
	for _, a := range selected {
		est := a.Estimate(sess.Target)
		if reason, ok := g.Admit(a.Name(), est); !ok {
			_ = sess.AddSkip(reason)
			settled = append(settled, settledReport{
				agent: a.Name(),
				rep:   core.Report{Outcome: core.OutcomeSkipped, Reason: reason.String()},
			})
			log.Info("agent not dispatched", "agent", a.Name(), "reason", reason.String())
			continue
		}
		dispatched = append(dispatched, struct {
			agent core.Agent
			est   core.Estimate
		}{a, est})
	}

	results := make(chan settledReport, len(dispatched))
	sem := make(chan struct{}, e.concurrency())
	for _, d := range dispatched {
		d := d
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			rep := resil.Execute(ctx, d.agent, core.RunInput{
				Target: sess.Target,
				Depth:  sess.Depth,
				Safety: e.config.Safety,
			})
			log.LogAgentRun(d.agent.Name(), string(rep.Outcome), rep.CostUSD, rep.Attempts, time.Since(start), nil)
			results <- settledReport{agent: d.agent.Name(), est: d.est, rep: rep}
		}()
	}

	// Single-writer collection: all session mutation happens here.
	for range dispatched {
		out := <-results
		g.Settle(out.est, out.rep.CostUSD, out.rep.Endpoints)
		_ = sess.AddCost(out.rep.CostUSD)
		if out.rep.Outcome == core.OutcomeFatal {
			_ = sess.AddSkip(core.FailureSkip(out.rep.Reason, out.agent))
		}
		for _, skip := range out.rep.Skips {
			_ = sess.AddSkip(skip)
		}
		settled = append(settled, out)
	}

	e.finalize(ctx, sess, settled, log)
}

// finalize merges the settled reports into a Result, decides the terminal
// status and persists the session exactly once.
func (e *Engine) finalize(ctx context.Context, sess *core.Session, settled []settledReport, log *logging.SessionLogger) {
	status := terminalStatus(ctx, sess, settled)

	result := &core.Result{Partial: status == core.StatusCompletedPartial}

	// Group reports by agent name so the stable severity sort yields the
	// documented tie-break: agent name, then discovery order.
	sort.SliceStable(settled, func(i, j int) bool { return settled[i].agent < settled[j].agent })
	for _, out := range settled {
		result.Agents = append(result.Agents, core.AgentResult{
			Agent:    out.agent,
			Outcome:  out.rep.Outcome,
			CostUSD:  out.rep.CostUSD,
			Attempts: out.rep.Attempts,
			Reason:   out.rep.Reason,
		})
		result.Findings = append(result.Findings, out.rep.Findings...)
		result.TotalCostUSD += out.rep.CostUSD
	}
	core.SortFindings(result.Findings)

	if err := sess.Finalize(status, result); err != nil {
		log.Error("session finalize rejected", "error", err.Error())
		return
	}
	if err := e.store.Finalize(sess); err != nil {
		log.Error("persisting terminal session failed", "error", err.Error())
	}
	log.Info("session finalized",
		"status", string(status),
		"findings", len(result.Findings),
		"cost_usd", result.TotalCostUSD,
		"skips", len(sess.Skips),
	)
}

// terminalStatus applies the state-machine rules from the settled reports.
func terminalStatus(ctx context.Context, sess *core.Session, settled []settledReport) core.Status {
	if ctx.Err() == context.Canceled {
		return core.StatusCancelled
	}

	var successes, fatals int
	for _, out := range settled {
		switch out.rep.Outcome {
		case core.OutcomeSucceeded:
			successes++
		case core.OutcomeFatal:
			fatals++
		}
	}

	anySkip := len(sess.Skips) > 0
	switch {
	case len(settled) == 0:
		// Selection failed or nothing was dispatchable: configuration error.
		return core.StatusFailed
	case successes == 0 && fatals > 0:
		return core.StatusFailed
	case anySkip || fatals > 0 || ctx.Err() != nil:
		return core.StatusCompletedPartial
	default:
		return core.StatusCompleted
	}
}

func (e *Engine) concurrency() int {
	if e.config.MaxConcurrentAgents <= 0 {
		return 1
	}
	return e.config.MaxConcurrentAgents
}

// finish removes the session from the live map and signals waiters.
func (e *Engine) finish(ls *liveSession) {
	ls.cancel()
	e.mu.Lock()
	delete(e.live, ls.sess.ID)
	e.mu.Unlock()
	close(ls.done)
}

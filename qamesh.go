// Package qamesh provides a high-level façade over the orchestration engine
// for automated quality-assurance runs. Most applications interact with this
// package by:
//  1. Creating a QAMesh via New() (optionally overriding stores, agents,
//     limits and logging)
//  2. Starting sessions asynchronously (Start) or synchronously (RunSync)
//  3. Inspecting terminal sessions via GetStatus / GetResult
//
// The façade delegates orchestration to engine.Engine while keeping setup
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable session store
// and a structured logger.
package qamesh

import (
	"context"

	"github.com/hupe1980/qamesh/agent"
	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/engine"
	"github.com/hupe1980/qamesh/logging"
	"github.com/hupe1980/qamesh/session"
	"github.com/hupe1980/qamesh/vcs"
)

// Options configures the QAMesh instance.
type Options struct {
	// EngineConfig holds concurrency, resilience, limit and safety settings.
	EngineConfig engine.Config

	// Agents overrides the default agent set (behavioral, contract,
	// regression with a git diff provider rooted at the process cwd).
	Agents []core.Agent

	// SessionStore defaults to the in-memory implementation.
	SessionStore core.SessionStore

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// StartOptions re-exports the engine's per-session options so façade callers
// need not import the engine package.
type StartOptions = engine.StartOptions

// QAMesh is the high-level façade aggregating the engine and its services.
type QAMesh struct {
	engine *engine.Engine
}

// New creates a QAMesh with optional overrides. Any unset service is
// initialized with a safe default.
func New(optFns ...func(o *Options)) *QAMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	agents := opts.Agents
	if agents == nil {
		agents = []core.Agent{
			agent.NewBehavioral(),
			agent.NewContract(),
			agent.NewRegression(vcs.NewGitProvider("")),
		}
	}

	eng := engine.New(agent.NewDispatcher(agents), func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Logger = opts.Logger
	})

	return &QAMesh{engine: eng}
}

// Engine exposes the underlying engine for advanced use.
func (m *QAMesh) Engine() *engine.Engine { return m.engine }

// Start begins an asynchronous session, returning its id immediately.
func (m *QAMesh) Start(ctx context.Context, target core.TargetContext, trigger core.Trigger, optFns ...func(o *StartOptions)) (string, error) {
	return m.engine.Start(ctx, target, trigger, optFns...)
}

// GetStatus returns a snapshot of the session's current state.
func (m *QAMesh) GetStatus(id string) (*core.Session, error) { return m.engine.GetStatus(id) }

// GetResult returns the result of a terminal session, or core.ErrNotReady.
func (m *QAMesh) GetResult(id string) (*core.Result, error) { return m.engine.GetResult(id) }

// Cancel requests cooperative cancellation; idempotent once terminal.
func (m *QAMesh) Cancel(id string) error { return m.engine.Cancel(id) }

// RunSync starts a session and blocks until it finalizes, returning the
// terminal session snapshot.
func (m *QAMesh) RunSync(ctx context.Context, target core.TargetContext, trigger core.Trigger, optFns ...func(o *StartOptions)) (*core.Session, error) {
	id, err := m.engine.Start(ctx, target, trigger, optFns...)
	if err != nil {
		return nil, err
	}
	if err := m.engine.Wait(ctx, id); err != nil {
		return nil, err
	}
	return m.engine.GetStatus(id)
}

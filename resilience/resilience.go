// Package resilience wraps agent invocations with retry, exponential backoff
// with jitter, per-call timeouts and a session-scoped circuit breaker.
//
// Transient failures (per the configured classifier) are retried within the
// attempt budget; fatal failures and exhausted budgets settle the call as
// failed-fatal. The controller checks the session cancellation signal before
// every retry wait, so cancellation is observed at each suspension point.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/qamesh/core"
	"github.com/hupe1980/qamesh/logging"
)

// breakerOpenError marks a call rejected or aborted by the open circuit.
type breakerOpenError struct {
	consecutive int
	last        error
}

func (e *breakerOpenError) Error() string {
	return fmt.Sprintf("circuit open after %d consecutive transient failures", e.consecutive)
}

func (e *breakerOpenError) Unwrap() error { return e.last }

// Controller applies the resilience policy to agent calls within one
// session. It is safe for concurrent use; the breaker state is shared across
// all calls of the session.
type Controller struct {
	cfg      core.ResilienceConfig
	classify core.Classifier
	log      *logging.SessionLogger

	mu          sync.Mutex
	consecutive int
	open        bool
}

// New builds a controller for one session.
func New(cfg core.ResilienceConfig, log *logging.SessionLogger) *Controller {
	classify := cfg.Classify
	if classify == nil {
		classify = core.DefaultClassifier
	}
	if log == nil {
		log = logging.NewSessionLogger(nil)
	}
	return &Controller{cfg: cfg, classify: classify, log: log}
}

// Execute runs the agent under the resilience policy and returns a settled
// report: the outcome is never failed-transient. Attempts is always filled
// in, including for rejected and failed calls.
func (c *Controller) Execute(ctx context.Context, agent core.Agent, in core.RunInput) core.Report {
	if c.tripped() {
		c.mu.Lock()
		n := c.consecutive
		c.mu.Unlock()
		return core.Report{
			Outcome:  core.OutcomeFatal,
			Attempts: 0,
			Reason:   (&breakerOpenError{consecutive: n}).Error(),
		}
	}

	var (
		report   core.Report
		attempts int
		// Spend incurred on attempts that ended in an error. Agents report
		// partial cost alongside failures; the money is gone either way and
		// must survive into the settled report.
		spentUSD       float64
		spentEndpoints int
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++

		callCtx := ctx
		if c.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()
		}

		rep, err := agent.Run(callCtx, in)
		if err == nil {
			c.reset()
			report = rep
			return nil
		}
		spentUSD += rep.CostUSD
		spentEndpoints += rep.Endpoints

		if c.classify(err) == core.ClassFatal {
			return backoff.Permanent(err)
		}
		if open, n := c.recordTransient(); open {
			return backoff.Permanent(&breakerOpenError{consecutive: n, last: err})
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseBackoff
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if c.cfg.MaxAttempts > 1 {
		retries = uint64(c.cfg.MaxAttempts - 1)
	}

	notify := func(err error, wait time.Duration) {
		c.log.LogRetry(agent.Name(), attempts, wait, err)
	}

	err := backoff.RetryNotify(operation, backoff.WithMaxRetries(backoff.WithContext(b, ctx), retries), notify)
	if err == nil {
		report.Attempts = attempts
		report.CostUSD += spentUSD
		report.Endpoints += spentEndpoints
		return report
	}

	return core.Report{
		Outcome:   core.OutcomeFatal,
		Attempts:  attempts,
		CostUSD:   spentUSD,
		Endpoints: spentEndpoints,
		Reason:    c.failureReason(ctx, err, attempts),
	}
}

func (c *Controller) failureReason(ctx context.Context, err error, attempts int) string {
	var open *breakerOpenError
	switch {
	case errors.As(err, &open):
		return open.Error()
	case ctx.Err() != nil:
		return fmt.Sprintf("cancelled after %d attempts: %v", attempts, ctx.Err())
	case c.classify(err) == core.ClassTransient:
		return fmt.Sprintf("retry budget exhausted after %d attempts: %v", attempts, err)
	default:
		return err.Error()
	}
}

// recordTransient bumps the consecutive-failure counter and reports whether
// the breaker just opened.
func (c *Controller) recordTransient() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive++
	if c.cfg.BreakerThreshold > 0 && c.consecutive >= c.cfg.BreakerThreshold {
		c.open = true
	}
	return c.open, c.consecutive
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutive = 0
	c.open = false
}

func (c *Controller) tripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

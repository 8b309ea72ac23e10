package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// ErrorClass partitions agent errors into the two classes the resilience
// controller acts on.
type ErrorClass int

const (
	// ClassFatal errors end the agent's participation in the session.
	ClassFatal ErrorClass = iota
	// ClassTransient errors are retried within the retry budget.
	ClassTransient
)

// Classifier decides the class of an agent error. The default rule table
// treats network failures, timeouts, 5xx and 429 responses as transient and
// everything else as fatal. Supply a custom classifier via ResilienceConfig
// to override the table; individual agents never hardcode their own.
type Classifier func(error) ErrorClass

// StatusError carries an HTTP status code through the error chain so the
// classifier can apply the 5xx/429-transient rule.
type StatusError struct {
	Code int
	URL  string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// transientError marks an error as retryable regardless of its shape.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the default classifier treats it as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// DefaultClassifier implements the fixed rule table: network errors,
// timeouts, connection resets, 5xx and 429 responses are transient; any
// other status, validation errors and unexpected agent errors are fatal.
func DefaultClassifier(err error) ErrorClass {
	if err == nil {
		return ClassFatal
	}
	var marked *transientError
	if errors.As(err, &marked) {
		return ClassTransient
	}
	var status *StatusError
	if errors.As(err, &status) {
		if status.Code >= 500 || status.Code == 429 {
			return ClassTransient
		}
		return ClassFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return ClassTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransient
	}
	return ClassFatal
}

// ResilienceConfig tunes the retry/backoff/timeout wrapper applied around
// every agent invocation. Immutable per session.
type ResilienceConfig struct {
	// MaxAttempts is the retry budget per call: the total number of
	// invocation attempts, including the first.
	MaxAttempts int
	// BaseBackoff is the initial backoff interval; jitter is applied on top.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth of the backoff interval.
	MaxBackoff time.Duration
	// CallTimeout is the hard per-attempt deadline, enforced regardless of
	// retry state or agent cooperation.
	CallTimeout time.Duration
	// BreakerThreshold is the number of consecutive transient failures
	// (across calls within one session) after which the circuit opens and
	// further calls are reclassified failed-fatal.
	BreakerThreshold int
	// Classify overrides the transient/fatal rule table. Nil selects
	// DefaultClassifier.
	Classify Classifier
}

// DefaultResilienceConfig returns conservative retry parameters suitable for
// probing a locally running target.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxAttempts:      3,
		BaseBackoff:      250 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		CallTimeout:      60 * time.Second,
		BreakerThreshold: 5,
	}
}

// Limits are the hard caps the cost/limit guard enforces. Zero values mean
// unlimited for the corresponding dimension. Immutable per session.
type Limits struct {
	// MaxCostUSD caps the cumulative session spend.
	MaxCostUSD float64
	// MaxEndpoints caps the number of endpoints probed across agents.
	MaxEndpoints int
	// MaxDuration caps wall-clock time since session start.
	MaxDuration time.Duration
}

// DefaultLimits returns the stock hard caps.
func DefaultLimits() Limits {
	return Limits{MaxCostUSD: 5.0, MaxEndpoints: 50, MaxDuration: 10 * time.Minute}
}

// SafetyConfig gates destructive or production-unsafe actions. Agents check
// it immediately before each mutating probe, not at session start, since the
// environment assessment can change.
type SafetyConfig struct {
	// Production marks the target as a production environment.
	Production bool
	// AllowDestructive permits mutating probes (POST/PUT/DELETE against the
	// target). Ignored when Production is true.
	AllowDestructive bool
}

// PermitsMutation reports whether a mutating probe may be performed now.
func (s SafetyConfig) PermitsMutation() bool {
	if s.Production {
		return false
	}
	return s.AllowDestructive
}

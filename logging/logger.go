package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger defines the minimal logging interface for qamesh. Users can provide
// their own implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// Config configures construction of a structured logger.
type Config struct {
	Level  slog.Level
	Format string // json or text
	Output io.Writer
}

// DefaultConfig returns a baseline JSON info-level configuration.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// New builds a Logger from a config (or defaults if nil).
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return NewSlogAdapter(slog.New(handler))
}

// NoOpLogger discards all log messages. Useful for testing or when logging
// is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}

// SessionLogger decorates a Logger with session context and domain helpers.
// It is cheap to copy via the With* methods.
type SessionLogger struct {
	logger    Logger
	sessionID string
	agent     string
}

// NewSessionLogger wraps l, substituting NoOpLogger when l is nil.
func NewSessionLogger(l Logger) *SessionLogger {
	if l == nil {
		l = NoOpLogger{}
	}
	return &SessionLogger{logger: l}
}

// WithSession returns a copy bound to a session id.
func (l *SessionLogger) WithSession(id string) *SessionLogger {
	nl := *l
	nl.sessionID = id
	return &nl
}

// WithAgent returns a copy bound to an agent name.
func (l *SessionLogger) WithAgent(name string) *SessionLogger {
	nl := *l
	nl.agent = name
	return &nl
}

func (l *SessionLogger) attrs(args []any) []any {
	out := make([]any, 0, len(args)+4)
	if l.sessionID != "" {
		out = append(out, "session_id", l.sessionID)
	}
	if l.agent != "" {
		out = append(out, "agent", l.agent)
	}
	return append(out, args...)
}

// Debug logs at debug level with the bound context.
func (l *SessionLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.attrs(args)...) }

// Info logs at info level with the bound context.
func (l *SessionLogger) Info(msg string, args ...any) { l.logger.Info(msg, l.attrs(args)...) }

// Warn logs at warn level with the bound context.
func (l *SessionLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, l.attrs(args)...) }

// Error logs at error level with the bound context.
func (l *SessionLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.attrs(args)...) }

// LogAgentRun records the settled outcome of one agent invocation.
func (l *SessionLogger) LogAgentRun(agent, outcome string, costUSD float64, attempts int, dur time.Duration, err error) {
	args := []any{"agent", agent, "outcome", outcome, "cost_usd", costUSD, "attempts", attempts, "duration", dur}
	if err != nil {
		args = append(args, "error", err.Error())
		l.logger.Warn("agent run settled", l.attrs(args)...)
		return
	}
	l.logger.Info("agent run settled", l.attrs(args)...)
}

// LogRetry records a retry decision taken by the resilience controller.
func (l *SessionLogger) LogRetry(agent string, attempt int, wait time.Duration, err error) {
	l.logger.Debug("retrying agent call", l.attrs([]any{"agent", agent, "attempt", attempt, "backoff", wait, "error", err.Error()})...)
}

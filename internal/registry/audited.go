// ABOUTME: Registry decorator that records every tool invocation to an audit recorder.
// ABOUTME: Wraps any Registry so both JSON-RPC and REST call paths share one audit trail.

package registry

import (
	"context"
	"log/slog"
	"time"
)

// Invocation describes one completed tool call for auditing.
type Invocation struct {
	Tool      string
	Arguments map[string]any
	Err       error
	Duration  time.Duration
	StartedAt time.Time
}

// Recorder persists invocation records. Implementations must not block the
// caller for long; recording failures are logged and otherwise ignored.
type Recorder interface {
	RecordInvocation(ctx context.Context, inv *Invocation) error
}

// Audited wraps a Registry and records each Call through a Recorder.
type Audited struct {
	inner    Registry
	recorder Recorder
	logger   *slog.Logger
}

// NewAudited creates an auditing wrapper. Pass nil logger for default.
func NewAudited(inner Registry, recorder Recorder, logger *slog.Logger) *Audited {
	if logger == nil {
		logger = slog.Default()
	}
	return &Audited{
		inner:    inner,
		recorder: recorder,
		logger:   logger.With("component", "audit"),
	}
}

// Tools returns the wrapped registry's tool set.
func (a *Audited) Tools() []Tool {
	return a.inner.Tools()
}

// Call executes the tool and records the outcome. Lookup failures are
// recorded too, so unknown-tool probes show up in the audit trail.
func (a *Audited) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	start := time.Now()
	result, err := a.inner.Call(ctx, name, args)

	inv := &Invocation{
		Tool:      name,
		Arguments: args,
		Err:       err,
		Duration:  time.Since(start),
		StartedAt: start.UTC(),
	}
	if recErr := a.recorder.RecordInvocation(ctx, inv); recErr != nil {
		a.logger.Warn("failed to record invocation", "tool_name", name, "error", recErr)
	}

	return result, err
}

// ABOUTME: Tool registry types and the Registry interface consumed by the protocol layer.
// ABOUTME: Provides a thread-safe static registry preserving tool registration order.

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolNotFound indicates the named tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Tool is a static descriptor for a callable tool. InputSchema is a JSON
// Schema object describing the accepted arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler executes a tool with the given arguments. The returned value is
// either a plain string or any JSON-serializable value; the protocol layer
// decides how to render it.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry is the boundary between the protocol layer and concrete tool
// implementations. Tools returns the tool set in registration order; the
// set is fixed for the lifetime of the server.
type Registry interface {
	Tools() []Tool
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}

// entry pairs a tool descriptor with its handler.
type entry struct {
	tool    Tool
	handler Handler
}

// Static is an in-memory Registry populated once at startup.
type Static struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	logger  *slog.Logger
}

// NewStatic creates an empty static registry. Pass nil logger for default.
func NewStatic(logger *slog.Logger) *Static {
	if logger == nil {
		logger = slog.Default()
	}
	return &Static{
		entries: make(map[string]*entry),
		logger:  logger.With("component", "registry"),
	}
}

// Register adds a tool and its handler. Returns ErrToolCollision if the
// name is already taken.
func (r *Static) Register(tool Tool, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, tool.Name)
	}

	r.entries[tool.Name] = &entry{tool: tool, handler: handler}
	r.order = append(r.order, tool.Name)

	r.logger.Debug("tool registered", "tool_name", tool.Name, "total_tools", len(r.order))
	return nil
}

// Tools returns all registered tools in registration order.
func (r *Static) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Call executes the named tool. Returns ErrToolNotFound if no tool with
// that name is registered; the tool is not invoked in that case.
func (r *Static) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return e.handler(ctx, args)
}

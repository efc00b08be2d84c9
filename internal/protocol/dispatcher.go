// ABOUTME: Transport-independent JSON-RPC method dispatch for the MCP tool surface.
// ABOUTME: Maps one parsed request to one response envelope (or none for notifications).

package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/access-ci-org/xdmod-mcp/internal/registry"
)

// protocolVersion is the MCP protocol revision advertised in initialize responses.
const protocolVersion = "2024-11-05"

// Session is the minimal session surface the dispatcher needs. The stdio
// transport passes nil; the SSE transport passes its per-connection session.
type Session interface {
	MarkInitialized()
}

// InitializeResult is the result payload for the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies this server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the result payload for tools/list.
type ListToolsResult struct {
	Tools []registry.Tool `json:"tools"`
}

// CallToolParams are the params for tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolResult is the result payload for tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// Content is one content block in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Dispatcher routes parsed JSON-RPC requests to the tool registry. It owns
// the method table and all protocol error codes; it performs no I/O beyond
// delegating to the registry and never returns an error itself - every
// failure path becomes an error envelope, or nil for notifications.
type Dispatcher struct {
	registry registry.Registry
	name     string
	version  string
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher serving the given registry. Name and
// version are reported in the initialize handshake and on /health.
func NewDispatcher(reg registry.Registry, name, version string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: reg,
		name:     name,
		version:  version,
		logger:   logger.With("component", "dispatcher"),
	}
}

// ServerName returns the server name advertised to clients.
func (d *Dispatcher) ServerName() string { return d.name }

// ServerVersion returns the server version advertised to clients.
func (d *Dispatcher) ServerVersion() string { return d.version }

// Registry returns the tool registry the dispatcher serves.
func (d *Dispatcher) Registry() registry.Registry { return d.registry }

// Dispatch handles one request and returns the response envelope, or nil
// when the method is a notification. sess may be nil for transports with a
// single implicit session.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, sess Session) *Response {
	d.logger.Debug("dispatch", "method", req.Method, "is_notification", req.IsNotification())

	switch req.Method {
	case "initialize":
		if sess != nil {
			sess.MarkInitialized()
		}
		return NewResult(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			ServerInfo: ServerInfo{Name: d.name, Version: d.version},
		})

	case "notifications/initialized":
		// Notifications never produce an envelope, even on error.
		return nil

	case "tools/list":
		tools := d.registry.Tools()
		if tools == nil {
			tools = []registry.Tool{}
		}
		return NewResult(req.ID, ListToolsResult{Tools: tools})

	case "tools/call":
		return d.dispatchToolCall(ctx, req)

	case "resources/list":
		return NewResult(req.ID, map[string]any{"resources": []any{}})

	case "prompts/list":
		// Known method, declared unsupported.
		return NewError(req.ID, CodeMethodNotFound, "Method not found")

	default:
		return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("Method '%s' not found", req.Method))
	}
}

// dispatchToolCall validates the tool name against the registry, invokes it,
// and wraps the result as text content. Unknown tools get -32601 without any
// invocation; execution failures surface as -32603 with the error string.
func (d *Dispatcher) dispatchToolCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return NewError(req.ID, CodeInternalError, fmt.Sprintf("invalid tools/call params: %v", err))
		}
	}

	result, err := d.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, registry.ErrToolNotFound) {
			return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("Tool '%s' not found", params.Name))
		}
		d.logger.Warn("tool execution failed", "tool_name", params.Name, "error", err)
		return NewError(req.ID, CodeInternalError, err.Error())
	}

	text, err := RenderResult(result)
	if err != nil {
		return NewError(req.ID, CodeInternalError, fmt.Sprintf("serializing tool result: %v", err))
	}

	return NewResult(req.ID, CallToolResult{
		Content: []Content{{Type: "text", Text: text}},
	})
}

// RenderResult normalizes a tool result to text: strings pass through
// unmodified, anything else is JSON-serialized with indented formatting.
func RenderResult(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

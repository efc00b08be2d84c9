// ABOUTME: HTTP+SSE transport exposing health, tool listing, direct execution, and
// ABOUTME: the session-based /sse + /messages pair bridging to the JSON-RPC dispatcher.

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/access-ci-org/xdmod-mcp/internal/protocol"
	"github.com/access-ci-org/xdmod-mcp/internal/registry"
	"github.com/access-ci-org/xdmod-mcp/internal/session"
)

// DefaultKeepalive is the idle interval after which the SSE loop emits a
// keepalive comment.
const DefaultKeepalive = 30 * time.Second

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// HTTPServer bridges the HTTP surface to the session manager and dispatcher.
type HTTPServer struct {
	dispatcher *protocol.Dispatcher
	sessions   *session.Manager
	keepalive  time.Duration
	logger     *slog.Logger
}

// HTTPConfig holds configuration for the HTTP transport.
type HTTPConfig struct {
	Dispatcher *protocol.Dispatcher
	Sessions   *session.Manager
	Keepalive  time.Duration // zero means DefaultKeepalive
	Logger     *slog.Logger
}

// NewHTTPServer creates the HTTP transport. Sessions may be nil, in which
// case a fresh manager is created and owned by the transport.
func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewManager(logger)
	}
	keepalive := cfg.Keepalive
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}

	return &HTTPServer{
		dispatcher: cfg.Dispatcher,
		sessions:   sessions,
		keepalive:  keepalive,
		logger:     logger.With("component", "http"),
	}, nil
}

// Sessions returns the session manager owned by this transport.
func (s *HTTPServer) Sessions() *session.Manager { return s.sessions }

// RegisterRoutes registers all endpoints on the given ServeMux.
func (s *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /sse", s.handleSSE)
	mux.HandleFunc("POST /messages", s.handleMessages)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{name}", s.handleExecuteTool)
}

// Run serves until ctx is cancelled, then shuts down gracefully and removes
// all live sessions.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown error", "error", err)
	}
	s.sessions.Close()
	return nil
}

// handleHealth returns server identity, version, status, and UTC timestamp.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"server":    s.dispatcher.ServerName(),
		"version":   s.dispatcher.ServerVersion(),
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSSE creates a session and streams its queue until the client
// disconnects. The first event carries the /messages URL for the session;
// idle intervals produce keepalive comments.
func (s *HTTPServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.sessions.Create()
	defer s.sessions.Remove(sess.ID())

	s.logger.Info("SSE session opened", "session_id", sess.ID())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?sessionId=%s\n\n", sess.ID())
	flusher.Flush()

	timer := time.NewTimer(s.keepalive)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE session closed", "session_id", sess.ID())
			return

		case resp, open := <-sess.Messages():
			if !open {
				// Session removed elsewhere (shutdown).
				return
			}
			data, err := json.Marshal(resp)
			if err != nil {
				s.logger.Warn("failed to encode SSE message", "session_id", sess.ID(), "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
				s.logger.Debug("SSE write failed", "session_id", sess.ID(), "error", err)
				return
			}
			flusher.Flush()

		case <-timer.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.keepalive)
	}
}

// handleMessages accepts a JSON-RPC request for an existing session,
// dispatches it, and queues any response for asynchronous SSE delivery.
// The POST itself always gets 202 once dispatch completes.
func (s *HTTPServer) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Session not found"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	var req protocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON"})
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), &req, sess)
	if resp != nil {
		s.sessions.Enqueue(sess.ID(), resp)
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")
}

// handleListTools returns the flat tool list without any session.
func (s *HTTPServer) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.dispatcher.Registry().Tools()
	if tools == nil {
		tools = []registry.Tool{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// executeToolBody is the JSON body accepted by POST /tools/{name}.
type executeToolBody struct {
	Arguments map[string]any `json:"arguments"`
}

// handleExecuteTool is the synchronous REST shortcut: invokes the named tool
// directly and returns its normalized content, bypassing the JSON-RPC
// envelope entirely.
func (s *HTTPServer) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	// Absent or non-JSON bodies mean empty arguments.
	var body executeToolBody
	if data, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize)); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	result, err := s.dispatcher.Registry().Call(r.Context(), name, body.Arguments)
	if err != nil {
		if errors.Is(err, registry.ErrToolNotFound) {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("Tool '%s' not found", name)})
			return
		}
		s.logger.Warn("direct tool execution failed", "tool_name", name, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	text, err := protocol.RenderResult(result)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"content": []protocol.Content{{Type: "text", Text: text}},
	})
}

// writeJSON writes a JSON response body with the given status code.
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// ABOUTME: In-memory SSE session table with per-session outbound response queues.
// ABOUTME: Creation, lookup, enqueue, and removal are safe under concurrent access.

package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/access-ci-org/xdmod-mcp/internal/protocol"
)

// queueSize is the channel buffer for each session's outbound queue.
// An enqueue that finds the buffer full drops the envelope rather than
// blocking the HTTP handler.
const queueSize = 64

// Session represents one SSE-connected client. The SSE connection handler
// exclusively consumes the queue; the manager owns creation and removal.
type Session struct {
	id        string
	queue     chan *protocol.Response
	createdAt time.Time

	mu          sync.Mutex // protects closed and initialized
	closed      bool
	initialized bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Messages returns the channel the SSE loop drains. The channel is closed
// when the session is removed.
func (s *Session) Messages() <-chan *protocol.Response { return s.queue }

// MarkInitialized records that an initialize request was processed.
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

// Initialized reports whether the session has completed the handshake.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// enqueue appends an envelope to the outbound queue. Returns false if the
// session is closed or the queue is full; the caller decides whether that
// matters. Holding mu across the send prevents a close racing the send.
func (s *Session) enqueue(resp *protocol.Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- resp:
		return true
	default:
		return false
	}
}

// close marks the session closed and closes its queue. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
}

// Manager owns the table of live SSE sessions. One manager instance is
// owned by the HTTP transport; there is no process-global state, so
// multiple transport instances never collide.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewManager creates an empty session manager. Pass nil logger for default.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "sessions"),
	}
}

// Create allocates and registers a new session with a fresh unique id.
func (m *Manager) Create() *Session {
	sess := &Session{
		id:        uuid.New().String(),
		queue:     make(chan *protocol.Response, queueSize),
		createdAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", sess.id, "active_sessions", count)
	return sess
}

// Get returns the session with the given id, or false if it does not exist.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	return sess, ok
}

// Enqueue appends a response envelope to the session's outbound queue.
// A missing or concurrently removed session is a silent no-op: the client
// may have disconnected between dispatch and delivery.
func (m *Manager) Enqueue(id string, resp *protocol.Response) {
	sess, ok := m.Get(id)
	if !ok {
		m.logger.Debug("enqueue to unknown session dropped", "session_id", id)
		return
	}
	if !sess.enqueue(resp) {
		m.logger.Debug("enqueue dropped", "session_id", id)
	}
}

// Remove deletes the session and closes its queue. Idempotent; safe to call
// concurrently with Enqueue for the same id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return
	}
	sess.close()
	m.logger.Debug("session removed", "session_id", id, "active_sessions", count)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close removes all sessions. Called during graceful shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
	m.logger.Debug("session manager closed", "sessions_closed", len(sessions))
}

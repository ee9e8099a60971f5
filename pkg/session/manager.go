// Package session tracks in-flight key-load handoffs. A bootstrap spans two
// operator calls (build the request, absorb the responses) and the transport
// secret minted in between must survive only for that window.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
	"github.com/benhaq/sui-nautilus/pkg/logger"
	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
)

// State is the position of a bootstrap session in its lifecycle.
type State string

const (
	// StateRequestBuilt: the encoded request left the enclave; responses are
	// awaited.
	StateRequestBuilt State = "request_built"
	// StateCompleted: responses were verified and cached; the session is spent.
	StateCompleted State = "completed"
)

// Session is one in-flight key load.
type Session struct {
	ID        string
	State     State
	Transport *tibe.TransportKeyPair
	CreatedAt time.Time
}

// Manager stores bootstrap sessions and expires the ones the operator never
// completed.
type Manager struct {
	sessions       map[string]*Session
	sessionsLock   sync.RWMutex
	sessionTimeout time.Duration
	stopChan       chan struct{}
}

// NewManager creates a session manager. Sessions older than sessionTimeout
// are dropped by the cleanup routine.
func NewManager(sessionTimeout time.Duration) *Manager {
	return &Manager{
		sessions:       make(map[string]*Session),
		sessionTimeout: sessionTimeout,
		stopChan:       make(chan struct{}),
	}
}

// Begin registers a new session around a freshly minted transport key pair
// and returns its ID.
func (m *Manager) Begin(transport *tibe.TransportKeyPair) string {
	id := uuid.NewString()
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()

	m.sessions[id] = &Session{
		ID:        id,
		State:     StateRequestBuilt,
		Transport: transport,
		CreatedAt: time.Now(),
	}
	logger.Debug("bootstrap session started", "sessionID", id)
	return id
}

// Take retrieves a session awaiting responses and marks it spent. A second
// Take for the same ID fails: each transport key opens exactly one response
// batch.
func (m *Manager) Take(id string) (*Session, error) {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.KindProtocol, "unknown session %s", id)
	}
	if sess.State != StateRequestBuilt {
		return nil, errors.Newf(errors.KindProtocol, "session %s already %s", id, sess.State)
	}
	sess.State = StateCompleted
	delete(m.sessions, id)
	return sess, nil
}

// ActiveCount returns the number of sessions awaiting completion.
func (m *Manager) ActiveCount() int {
	m.sessionsLock.RLock()
	defer m.sessionsLock.RUnlock()
	return len(m.sessions)
}

// StartCleanup runs the expiry loop until StopCleanup is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expireStale()
		case <-m.stopChan:
			return
		}
	}
}

// StopCleanup stops the expiry loop.
func (m *Manager) StopCleanup() {
	close(m.stopChan)
}

func (m *Manager) expireStale() {
	now := time.Now()
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()

	for id, sess := range m.sessions {
		if now.Sub(sess.CreatedAt) > m.sessionTimeout {
			delete(m.sessions, id)
			logger.Info("expired stale bootstrap session", "sessionID", id)
		}
	}
}

package session

import (
	"testing"
	"time"

	"github.com/benhaq/sui-nautilus/pkg/seal/tibe"
)

func newTransport() *tibe.TransportKeyPair {
	return tibe.NewSuite().GenTransportKeyPair()
}

func TestManager_BeginAndTake(t *testing.T) {
	manager := NewManager(5 * time.Minute)

	id := manager.Begin(newTransport())
	if id == "" {
		t.Fatal("expected non-empty session ID")
	}
	if manager.ActiveCount() != 1 {
		t.Errorf("expected 1 active session, got %d", manager.ActiveCount())
	}

	sess, err := manager.Take(id)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if sess.Transport == nil {
		t.Error("expected transport key pair on session")
	}
	if manager.ActiveCount() != 0 {
		t.Errorf("expected 0 active sessions after Take, got %d", manager.ActiveCount())
	}
}

func TestManager_TakeIsSingleUse(t *testing.T) {
	manager := NewManager(5 * time.Minute)
	id := manager.Begin(newTransport())

	if _, err := manager.Take(id); err != nil {
		t.Fatalf("first Take failed: %v", err)
	}
	if _, err := manager.Take(id); err == nil {
		t.Error("expected second Take to fail")
	}
}

func TestManager_TakeUnknownSession(t *testing.T) {
	manager := NewManager(5 * time.Minute)

	if _, err := manager.Take("no-such-session"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestManager_ExpireStale(t *testing.T) {
	manager := NewManager(10 * time.Millisecond)
	id := manager.Begin(newTransport())

	time.Sleep(20 * time.Millisecond)
	manager.expireStale()

	if manager.ActiveCount() != 0 {
		t.Errorf("expected stale session to be expired, got %d active", manager.ActiveCount())
	}
	if _, err := manager.Take(id); err == nil {
		t.Error("expected Take of expired session to fail")
	}
}

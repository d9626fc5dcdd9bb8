package websocket

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	s := newTestSession()

	r.Add(s)
	if r.ActiveCount() != 1 {
		t.Fatalf("expected 1 active session, got %d", r.ActiveCount())
	}

	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != s {
		t.Error("Get() returned a different session")
	}

	r.Remove(s.ID)
	if r.ActiveCount() != 0 {
		t.Errorf("expected 0 active sessions, got %d", r.ActiveCount())
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	// Removal closes the ingestion side.
	if err := s.OfferAudio([]byte{1, 2}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after removal, got %v", err)
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	s := newTestSession()

	r.Add(s)
	r.Remove(s.ID)
	r.Remove(s.ID)
	r.Remove("never-existed")

	if r.ActiveCount() != 0 {
		t.Errorf("expected 0 active sessions, got %d", r.ActiveCount())
	}
}

func TestRegistryExpireIdle(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)

	stale := newTestSession()
	stale.lastActivity.Store(time.Now().Add(-time.Hour).UnixNano())
	fresh := newTestSession()
	fresh.Touch()

	r.Add(stale)
	r.Add(fresh)

	r.expireIdle(10 * time.Minute)

	if _, err := r.Get(stale.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("stale session must be expired")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Errorf("fresh session must survive, got %v", err)
	}
}

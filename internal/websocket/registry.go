package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/widyatma/lantang/internal/observability"
)

// Registry maps session id → Session. It is the only structure touched
// by more than one connection's setup/teardown path, so all access goes
// through a single mutex; every other piece of session state lives
// inside one connection's task group.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRegistry creates an empty session registry
func NewRegistry(logger *zap.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		metrics:  metrics,
	}
}

// Add registers a freshly created session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Inc()
		r.metrics.SessionEvents.WithLabelValues("created").Inc()
	}
	r.logger.Info("session registered",
		zap.String("sessionID", s.ID),
		zap.String("ownerID", s.OwnerID))
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove tears a session down: closes its queues so downstream stages
// drain and exit, then drops it from the map. Removing twice is a
// no-op, not an error.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	s.beginClose()
	if r.metrics != nil {
		r.metrics.ActiveSessions.Dec()
		r.metrics.SessionEvents.WithLabelValues("removed").Inc()
	}
	r.logger.Info("session removed", zap.String("sessionID", s.ID))
}

// ActiveCount returns the number of registered sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartJanitor expires sessions with no inbound activity past maxIdle.
// The connection's own keepalive normally wins this race; the janitor
// catches sessions whose transport died without a close frame.
func (r *Registry) StartJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.expireIdle(maxIdle)
			}
		}
	}()
}

func (r *Registry) expireIdle(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.RLock()
	var stale []string
	for id, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		r.logger.Warn("expiring idle session", zap.String("sessionID", id))
		if r.metrics != nil {
			r.metrics.SessionEvents.WithLabelValues("expired").Inc()
		}
		r.Remove(id)
	}
}

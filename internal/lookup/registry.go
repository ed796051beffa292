package lookup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// minSweepInterval keeps the janitor from spinning on very short TTLs.
const minSweepInterval = time.Second

// Registry holds the live sessions and evicts ones idle longer than the TTL.
type Registry struct {
	deps Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	return &Registry{
		deps:     deps,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session with a random ID.
func (r *Registry) Create() *Session {
	s := newSession(uuid.NewString(), r.deps)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.deps.Metrics.ActiveSessions.Set(float64(n))
	r.deps.Logger.Debug("session created", "session", s.ID())
	return s
}

// Get returns the session and marks it as seen.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if ok {
		s.touch()
	}
	return s, ok
}

// Delete closes and forgets a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.Close()
		r.deps.Metrics.ActiveSessions.Set(float64(n))
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many it removed.
func (r *Registry) Sweep() int {
	now := r.deps.Clock.Now()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		r.deps.Metrics.ActiveSessions.Set(float64(n))
		r.deps.Logger.Info("expired idle sessions", "count", len(expired), "remaining", n)
	}
	return len(expired)
}

// Run sweeps on an interval of half the TTL until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := max(r.ttl/2, minSweepInterval)
	ticker := r.deps.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.deps.Metrics.ActiveSessions.Set(0)
}

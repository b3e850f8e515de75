package quickview

import (
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/quickview/events"
)

// Factory builds the Manager for a new session.
type Factory func(session string) *Manager

type sessionEntry struct {
	manager  *Manager
	lastSeen time.Time
}

// Registry holds one Manager per storefront session. Sessions idle for longer
// than the TTL are stopped and dropped by a background goroutine.
type Registry struct {
	factory Factory
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry. A ttl <= 0 disables idle eviction.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	r := &Registry{
		factory:  factory,
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go r.cleanupLoop()
	}
	return r
}

// Get returns the session's Manager, creating it on first use.
func (r *Registry) Get(session string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[session]
	if !ok {
		entry = &sessionEntry{manager: r.factory(session)}
		r.sessions[session] = entry
		sessionsActive.Inc()
		slog.Debug("quickview: session created", "session", session)
	}
	entry.lastSeen = time.Now()
	return entry.manager
}

// Lookup returns the session's Manager without creating or touching it.
func (r *Registry) Lookup(session string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[session]
	if !ok {
		return nil, false
	}
	return entry.manager, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Listen routes cart-updated events on bus to the matching session. An event
// without a session closes every open modal.
func (r *Registry) Listen(bus *events.Bus) (unsubscribe func()) {
	return bus.Subscribe(func(e events.Event) {
		if e.Type != events.CartUpdated {
			return
		}
		if e.Session != "" {
			if m, ok := r.Lookup(e.Session); ok {
				m.CartUpdated()
			}
			return
		}
		for _, m := range r.managers() {
			m.CartUpdated()
		}
	})
}

// Prune stops and removes sessions last seen before cutoff. It returns the
// number of sessions removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	var stale []*Manager
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			stale = append(stale, entry.manager)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, m := range stale {
		m.Stop()
	}
	sessionsActive.Sub(float64(len(stale)))
	return len(stale)
}

// Close stops the cleanup goroutine and every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.sessions))
	for _, entry := range r.sessions {
		managers = append(managers, entry.manager)
	}
	sessionsActive.Sub(float64(len(r.sessions)))
	r.sessions = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, m := range managers {
		m.Stop()
	}
}

func (r *Registry) managers() []*Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Manager, 0, len(r.sessions))
	for _, entry := range r.sessions {
		out = append(out, entry.manager)
	}
	return out
}

// cleanupLoop prunes idle sessions every ttl/2, at least once a minute.
func (r *Registry) cleanupLoop() {
	interval := r.ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = r.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if n := r.Prune(time.Now().Add(-r.ttl)); n > 0 {
				slog.Info("quickview: evicted idle sessions", "count", n)
			}
		}
	}
}

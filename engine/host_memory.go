package engine

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// HostMemory remembers which engine last served a host after the cheaper
// engines failed, so later fetches skip straight to it. Entries expire after
// the TTL; expired entries are dropped on read.
type HostMemory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]hostEntry
}

type hostEntry struct {
	engine    string
	expiresAt time.Time
}

// NewHostMemory creates a HostMemory whose entries live for ttl.
func NewHostMemory(ttl time.Duration) *HostMemory {
	return &HostMemory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]hostEntry),
	}
}

// Get returns the remembered engine for host, "" when none.
func (m *HostMemory) Get(host string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[host]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, host)
		return ""
	}
	return e.engine
}

// Set records that engine served host.
func (m *HostMemory) Set(host, engine string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[host] = hostEntry{engine: engine, expiresAt: m.now().Add(m.ttl)}
}

// Forget drops the entry for host.
func (m *HostMemory) Forget(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, host)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// Package netmon tracks device connectivity as reported by the host platform.
package netmon

import "sync"

// Monitor exposes a single boolean: is the device currently online. It is
// event-driven only; the platform reports transitions via SetOnline and every
// data-access call site re-reads IsOnline when deciding between remote and
// mirror. When the platform cannot report status, the monitor assumes online.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// NewMonitor creates a Monitor that assumes the device is online.
func NewMonitor() *Monitor {
	return &Monitor{
		online: true,
		subs:   make(map[int]func(online bool)),
	}
}

// IsOnline reports the current connectivity assumption.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity transition. Subscribers are notified only
// when the value actually changes.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers a callback invoked on every transition. The returned
// function removes the subscription.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

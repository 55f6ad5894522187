// Package connectivity tracks device network reachability and notifies
// listeners exactly when the online/offline state actually flips.
package connectivity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Listener receives the new online state after a real transition.
type Listener func(online bool)

// Monitor debounces raw reachability reports and deduplicates them against
// the last known state. App-lifecycle noise (backgrounding re-firing the
// platform network API without a real change) collapses to nothing.
//
// The monitor starts optimistically online so a failed reachability probe
// setup never strands the app in a degraded offline mode.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	debounce  time.Duration
	listeners map[int]Listener
	nextID    int

	timer      *time.Timer
	pending    bool
	hasPending bool

	log zerolog.Logger
}

// NewMonitor constructs a Monitor with the given debounce window.
// A zero window disables debouncing; reports then apply synchronously.
func NewMonitor(debounce time.Duration, log zerolog.Logger) *Monitor {
	return &Monitor{
		online:    true,
		debounce:  debounce,
		listeners: make(map[int]Listener),
		log:       log,
	}
}

// IsOnline returns the last known reachability state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnStatusChange registers a listener and returns its unsubscribe function.
func (m *Monitor) OnStatusChange(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Report feeds a raw reachability observation into the monitor. Reports
// arriving within the debounce window collapse; only the final value is
// compared against the last known state.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	if m.debounce <= 0 {
		m.applyLocked(online)
		return // applyLocked releases the lock
	}
	m.pending = online
	if !m.hasPending {
		m.hasPending = true
		m.timer = time.AfterFunc(m.debounce, m.flush)
	}
	m.mu.Unlock()
}

// flush runs when the debounce window closes.
func (m *Monitor) flush() {
	m.mu.Lock()
	m.hasPending = false
	m.applyLocked(m.pending)
}

// applyLocked compares the settled value against the recorded state and
// notifies listeners on a real flip. It must be called with mu held and
// releases the lock before invoking listeners.
func (m *Monitor) applyLocked(online bool) {
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	m.mu.Unlock()

	m.log.Info().Bool("online", online).Msg("connectivity state changed")
	for _, l := range ls {
		l(online)
	}
}

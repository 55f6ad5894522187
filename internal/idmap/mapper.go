// Package idmap bridges optimistic local identifiers to server-assigned ones.
package idmap

import "sync"

// Resolution is the three-valued outcome of a temp-id lookup.
type Resolution int

const (
	// Unresolved means no mapping has been recorded yet; callers should
	// keep showing the temporary entity.
	Unresolved Resolution = iota
	// Failed means the creation permanently failed; callers should drop
	// the temporary entity.
	Failed
	// Resolved means the server assigned a permanent id.
	Resolved
)

// String returns a human-readable representation of the resolution.
func (r Resolution) String() string {
	switch r {
	case Unresolved:
		return "Unresolved"
	case Failed:
		return "Failed"
	case Resolved:
		return "Resolved"
	}
	return "Unknown"
}

// Mapper holds temp→real lookup tables for sits and images. Mappings are
// never removed: late-arriving UI references must still resolve (or fail
// explicitly) for the lifetime of the session.
type Mapper struct {
	mu     sync.RWMutex
	sits   map[string]*string // nil value records a permanent failure
	images map[string]*string
}

// NewMapper constructs an empty Mapper.
func NewMapper() *Mapper {
	return &Mapper{
		sits:   make(map[string]*string),
		images: make(map[string]*string),
	}
}

// MapSit records the real id assigned to a temporary sit id.
func (m *Mapper) MapSit(tempID, realID string) { m.put(m.sits, tempID, &realID) }

// MapSitFailed records that the sit creation permanently failed.
func (m *Mapper) MapSitFailed(tempID string) { m.put(m.sits, tempID, nil) }

// ResolveSit looks up a temporary sit id.
func (m *Mapper) ResolveSit(tempID string) (string, Resolution) { return m.get(m.sits, tempID) }

// MapImage records the real id assigned to a temporary image id.
func (m *Mapper) MapImage(tempID, realID string) { m.put(m.images, tempID, &realID) }

// MapImageFailed records that the image creation permanently failed.
func (m *Mapper) MapImageFailed(tempID string) { m.put(m.images, tempID, nil) }

// ResolveImage looks up a temporary image id.
func (m *Mapper) ResolveImage(tempID string) (string, Resolution) { return m.get(m.images, tempID) }

func (m *Mapper) put(table map[string]*string, tempID string, realID *string) {
	if tempID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table[tempID] = realID
}

func (m *Mapper) get(table map[string]*string, tempID string) (string, Resolution) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	real, ok := table[tempID]
	if !ok {
		return "", Unresolved
	}
	if real == nil {
		return "", Failed
	}
	return *real, Resolved
}

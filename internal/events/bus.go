// Package events provides typed observer registration for the sync core,
// replacing ad hoc stringly-named application events.
package events

import (
	"sync"

	"github.com/satlas/satlas-sync/internal/model"
)

// Bus fans domain events out to registered listeners. Emission is
// synchronous; listeners must not block.
type Bus struct {
	mu     sync.RWMutex
	nextID int

	sitCreated      map[int]func(sit model.Sit)
	sitDeleted      map[int]func(sitID string)
	mutationQueued  map[int]func(rec model.MutationRecord)
	mutationApplied map[int]func(rec model.MutationRecord)
	mutationFailed  map[int]func(id string, err error)
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{
		sitCreated:      make(map[int]func(model.Sit)),
		sitDeleted:      make(map[int]func(string)),
		mutationQueued:  make(map[int]func(model.MutationRecord)),
		mutationApplied: make(map[int]func(model.MutationRecord)),
		mutationFailed:  make(map[int]func(string, error)),
	}
}

// OnSitCreated registers a listener for newly created sits.
func (b *Bus) OnSitCreated(l func(sit model.Sit)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.sitCreated[id] = l
	return func() { b.remove(func() { delete(b.sitCreated, id) }) }
}

// OnSitDeleted registers a listener for cascade sit deletions.
func (b *Bus) OnSitDeleted(l func(sitID string)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.sitDeleted[id] = l
	return func() { b.remove(func() { delete(b.sitDeleted, id) }) }
}

// OnMutationQueued registers a listener for mutations accepted while offline.
func (b *Bus) OnMutationQueued(l func(rec model.MutationRecord)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.mutationQueued[id] = l
	return func() { b.remove(func() { delete(b.mutationQueued, id) }) }
}

// OnMutationApplied registers a listener for successful replays.
func (b *Bus) OnMutationApplied(l func(rec model.MutationRecord)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.mutationApplied[id] = l
	return func() { b.remove(func() { delete(b.mutationApplied, id) }) }
}

// OnMutationFailed registers a listener for per-entry replay failures.
func (b *Bus) OnMutationFailed(l func(id string, err error)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.mutationFailed[id] = l
	return func() { b.remove(func() { delete(b.mutationFailed, id) }) }
}

// EmitSitCreated notifies sit-creation listeners. Safe on a nil bus.
func (b *Bus) EmitSitCreated(sit model.Sit) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ls := make([]func(model.Sit), 0, len(b.sitCreated))
	for _, l := range b.sitCreated {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(sit)
	}
}

// EmitSitDeleted notifies sit-deletion listeners. Safe on a nil bus.
func (b *Bus) EmitSitDeleted(sitID string) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ls := make([]func(string), 0, len(b.sitDeleted))
	for _, l := range b.sitDeleted {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(sitID)
	}
}

// EmitMutationQueued notifies queued-mutation listeners. Safe on a nil bus.
func (b *Bus) EmitMutationQueued(rec model.MutationRecord) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ls := make([]func(model.MutationRecord), 0, len(b.mutationQueued))
	for _, l := range b.mutationQueued {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(rec)
	}
}

// EmitMutationApplied notifies applied-mutation listeners. Safe on a nil bus.
func (b *Bus) EmitMutationApplied(rec model.MutationRecord) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ls := make([]func(model.MutationRecord), 0, len(b.mutationApplied))
	for _, l := range b.mutationApplied {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(rec)
	}
}

// EmitMutationFailed notifies failed-mutation listeners. Safe on a nil bus.
func (b *Bus) EmitMutationFailed(id string, err error) {
	if b == nil {
		return
	}
	b.mu.RLock()
	ls := make([]func(string, error), 0, len(b.mutationFailed))
	for _, l := range b.mutationFailed {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(id, err)
	}
}

func (b *Bus) remove(del func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	del()
}

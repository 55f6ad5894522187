// Package cache holds the process-local read-through view of sits and
// images. Updates produce a fresh immutable snapshot, so concurrent readers
// never observe a partially applied change.
package cache

import (
	"sync"

	"github.com/satlas/satlas-sync/internal/model"
)

// Snapshot is an immutable view. All accessors are safe for concurrent use
// and remain valid after later updates to the owning Cache.
type Snapshot struct {
	sits   map[string]model.Sit
	images map[string][]model.Image // keyed by collection id
}

// Sit returns the sit with the given id.
func (s *Snapshot) Sit(id string) (model.Sit, bool) {
	sit, ok := s.sits[id]
	return sit, ok
}

// Sits returns all cached sits.
func (s *Snapshot) Sits() []model.Sit {
	out := make([]model.Sit, 0, len(s.sits))
	for _, sit := range s.sits {
		out = append(out, sit)
	}
	return out
}

// Images returns the images of one collection.
func (s *Snapshot) Images(collectionID string) []model.Image {
	return s.images[collectionID]
}

// Cache owns the current snapshot. Writers apply deltas under a mutex;
// readers grab the current snapshot without blocking writers.
type Cache struct {
	mu      sync.Mutex
	current *Snapshot
}

// NewCache constructs a Cache with an empty snapshot.
func NewCache() *Cache {
	return &Cache{current: &Snapshot{
		sits:   map[string]model.Sit{},
		images: map[string][]model.Image{},
	}}
}

// Current returns the latest snapshot.
func (c *Cache) Current() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// PutSit adds or replaces a sit.
func (c *Cache) PutSit(sit model.Sit) {
	c.update(func(next *Snapshot) {
		next.sits[sit.ID] = sit
	})
}

// RemoveSit deletes a sit and its image collection.
func (c *Cache) RemoveSit(id string) {
	c.update(func(next *Snapshot) {
		if sit, ok := next.sits[id]; ok {
			delete(next.images, sit.CollectionID)
		}
		delete(next.sits, id)
	})
}

// RemoveSitByCollection deletes the sit owning the given collection.
func (c *Cache) RemoveSitByCollection(collectionID string) {
	c.update(func(next *Snapshot) {
		for id, sit := range next.sits {
			if sit.CollectionID == collectionID {
				delete(next.sits, id)
			}
		}
		delete(next.images, collectionID)
	})
}

// PutImage adds or replaces an image within its collection.
func (c *Cache) PutImage(img model.Image) {
	c.update(func(next *Snapshot) {
		imgs := next.images[img.CollectionID]
		replaced := false
		out := make([]model.Image, 0, len(imgs)+1)
		for _, existing := range imgs {
			if existing.ID == img.ID {
				out = append(out, img)
				replaced = true
				continue
			}
			out = append(out, existing)
		}
		if !replaced {
			out = append(out, img)
		}
		next.images[img.CollectionID] = out
	})
}

// RemoveImage deletes an image from its collection.
func (c *Cache) RemoveImage(collectionID, imageID string) {
	c.update(func(next *Snapshot) {
		imgs := next.images[collectionID]
		out := make([]model.Image, 0, len(imgs))
		for _, existing := range imgs {
			if existing.ID != imageID {
				out = append(out, existing)
			}
		}
		next.images[collectionID] = out
	})
}

// ReassignSit replaces a temporary sit entry with its resolved entity.
func (c *Cache) ReassignSit(tempID string, sit model.Sit) {
	c.update(func(next *Snapshot) {
		delete(next.sits, tempID)
		next.sits[sit.ID] = sit
	})
}

// ReassignImage replaces a temporary image entry with its resolved entity.
// The temp entry is removed from collectionID and the resolved image lands
// in its own collection, which may differ when the server reassigned it.
func (c *Cache) ReassignImage(collectionID, tempID string, img model.Image) {
	c.update(func(next *Snapshot) {
		imgs := next.images[collectionID]
		out := make([]model.Image, 0, len(imgs))
		for _, existing := range imgs {
			if existing.ID == tempID {
				continue
			}
			out = append(out, existing)
		}
		next.images[collectionID] = out
		next.images[img.CollectionID] = append(next.images[img.CollectionID], img)
	})
}

// update clones the current snapshot, applies the delta, and swaps.
func (c *Cache) update(delta func(next *Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := &Snapshot{
		sits:   make(map[string]model.Sit, len(c.current.sits)),
		images: make(map[string][]model.Image, len(c.current.images)),
	}
	for id, sit := range c.current.sits {
		next.sits[id] = sit
	}
	for col, imgs := range c.current.images {
		next.images[col] = append([]model.Image(nil), imgs...)
	}
	delta(next)
	c.current = next
}

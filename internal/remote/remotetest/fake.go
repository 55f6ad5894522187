// Package remotetest provides an in-memory remote.Store for tests, with
// hooks to inject failures at specific operations.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/remote"
)

// Fake is an in-memory document + blob store.
type Fake struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	order       map[string][]string // per-collection insertion order for stable queries
	blobs       map[string][]byte

	// CreateDocumentHook, when set, runs before each CreateDocument and may
	// return an error to simulate a failed or interrupted write.
	CreateDocumentHook func(collection string, data map[string]any) error
	// DeleteDocumentHook mirrors CreateDocumentHook for deletes.
	DeleteDocumentHook func(collection, id string) error

	// Calls records operation names in invocation order.
	Calls []string
}

// New constructs an empty Fake.
func New() *Fake {
	return &Fake{
		collections: make(map[string]map[string]map[string]any),
		order:       make(map[string][]string),
		blobs:       make(map[string][]byte),
	}
}

var _ remote.Store = (*Fake)(nil)

func (f *Fake) CreateDocument(_ context.Context, collection string, data map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "CreateDocument:"+collection)
	if f.CreateDocumentHook != nil {
		if err := f.CreateDocumentHook(collection, data); err != nil {
			return "", err
		}
	}
	id := uuid.New().String()
	if f.collections[collection] == nil {
		f.collections[collection] = make(map[string]map[string]any)
	}
	cloned := make(map[string]any, len(data))
	for k, v := range data {
		cloned[k] = v
	}
	f.collections[collection][id] = cloned
	f.order[collection] = append(f.order[collection], id)
	return id, nil
}

func (f *Fake) GetDocument(_ context.Context, collection, id string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "GetDocument:"+collection)
	doc, ok := f.collections[collection][id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return doc, nil
}

func (f *Fake) QueryDocuments(_ context.Context, collection string, filter remote.Filter) ([]remote.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "QueryDocuments:"+collection)
	var out []remote.Document
	for _, id := range f.order[collection] {
		data, ok := f.collections[collection][id]
		if !ok {
			continue
		}
		if matches(data, filter) {
			out = append(out, remote.Document{ID: id, Data: data})
		}
	}
	return out, nil
}

func (f *Fake) DeleteDocument(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DeleteDocument:"+collection)
	if f.DeleteDocumentHook != nil {
		if err := f.DeleteDocumentHook(collection, id); err != nil {
			return err
		}
	}
	delete(f.collections[collection], id)
	return nil
}

func (f *Fake) UploadBlob(_ context.Context, path string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "UploadBlob")
	f.blobs[path] = append([]byte(nil), data...)
	return fmt.Sprintf("https://blobs.example.test/%s", path), nil
}

func (f *Fake) DeleteBlob(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DeleteBlob")
	delete(f.blobs, path)
	return nil
}

// CountDocuments returns how many documents a collection currently holds.
func (f *Fake) CountDocuments(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections[collection])
}

// HasBlob reports whether a blob exists at path.
func (f *Fake) HasBlob(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[path]
	return ok
}

func matches(data map[string]any, filter remote.Filter) bool {
	for k, want := range filter {
		if data[k] != want {
			return false
		}
	}
	return true
}

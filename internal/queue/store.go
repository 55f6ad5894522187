// Package queue persists pending mutations so they survive process restarts.
package queue

import (
	"context"

	"github.com/satlas/satlas-sync/internal/model"
)

// Store is the single source of truth for mutations not yet applied
// remotely. Implementations must make Append durable before returning and
// keep List enumeration cheap by excluding payload bodies.
type Store interface {
	// Append persists the mutation. The record must survive an abrupt
	// process kill occurring right after this call returns.
	Append(ctx context.Context, m *model.PendingMutation) error

	// List enumerates queued mutations in insertion order, metadata only.
	List(ctx context.Context) ([]model.MutationRecord, error)

	// Get fetches the full mutation including its payload body.
	// Returns model.ErrNotFound when the id is not queued.
	Get(ctx context.Context, id string) (*model.PendingMutation, error)

	// Remove deletes the mutation. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	Close() error
}

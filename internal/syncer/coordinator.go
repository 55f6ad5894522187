// Package syncer drains the durable mutation queue against the remote store
// once connectivity returns.
package syncer

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/satlas/satlas-sync/internal/connectivity"
	"github.com/satlas/satlas-sync/internal/events"
	"github.com/satlas/satlas-sync/internal/executor"
	"github.com/satlas/satlas-sync/internal/idmap"
	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/queue"
	"github.com/satlas/satlas-sync/internal/remote"
)

// OnError is invoked once per mutation that could not be applied.
type OnError func(id string, err error)

// Coordinator replays queued mutations strictly in timestamp order. Drains
// are single-flight: an online transition arriving while a drain runs is a
// no-op, and a failed entry waits for the next transition rather than being
// retried in a loop.
type Coordinator struct {
	queue queue.Store
	exec  *executor.Executor
	ids   *idmap.Mapper
	bus   *events.Bus
	log   zerolog.Logger

	draining uint32 // 0 → idle, 1 → drain in progress
}

// New constructs a Coordinator. A nil bus disables event emission.
func New(q queue.Store, exec *executor.Executor, ids *idmap.Mapper, bus *events.Bus, log zerolog.Logger) *Coordinator {
	return &Coordinator{queue: q, exec: exec, ids: ids, bus: bus, log: log}
}

// Attach subscribes the coordinator to offline→online transitions and
// returns the unsubscribe function. Each transition triggers one drain.
func (c *Coordinator) Attach(m *connectivity.Monitor) (unsubscribe func()) {
	return m.OnStatusChange(func(online bool) {
		if !online {
			return
		}
		go func() {
			if err := c.ProcessPendingMutations(context.Background(), nil); err != nil {
				c.log.Error().Err(err).Msg("drain aborted")
			}
		}()
	})
}

// ProcessPendingMutations drains the queue once. Per-entry failures are
// reported through onError and never abort the pass; the returned error is
// non-nil only when the queue itself cannot be enumerated. Invoking while a
// drain is already running is a no-op.
func (c *Coordinator) ProcessPendingMutations(ctx context.Context, onError OnError) error {
	if !atomic.CompareAndSwapUint32(&c.draining, 0, 1) {
		return nil
	}
	defer atomic.StoreUint32(&c.draining, 0)

	recs, err := c.queue.List(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	// Storage enumeration order is insertion order, but replay correctness
	// depends on logical time; sort rather than trusting the backend.
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp.Before(recs[j].Timestamp)
	})

	c.log.Info().Int("pending", len(recs)).Msg("draining mutation queue")

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.processOne(ctx, rec, onError)
	}
	return nil
}

func (c *Coordinator) processOne(ctx context.Context, rec model.MutationRecord, onError OnError) {
	m, err := c.queue.Get(ctx, rec.ID)
	if errors.Is(err, model.ErrNotFound) {
		return // removed between List and Get
	}
	if err == nil {
		err = m.Validate()
	}
	if err != nil && errors.Is(err, model.ErrValidation) {
		// Malformed entries are dropped, never retried forever. When the
		// payload was readable its temp ids resolve as failed so the UI
		// stops waiting on the optimistic entities.
		c.log.Warn().Err(err).Str("id", rec.ID).Str("kind", string(rec.Kind)).Msg("dropping malformed queue entry")
		if m != nil {
			c.markFailed(m)
		}
		_ = c.queue.Remove(ctx, rec.ID)
		drainDroppedTotal.Inc()
		return
	}
	if err != nil {
		c.reportFailure(rec, err, onError)
		return
	}

	if err := c.apply(ctx, m); err != nil {
		if c.isFinal(err) {
			// Retrying an unchanged precondition failure fails identically;
			// resolve the optimistic entities as failed and drop the entry.
			c.markFailed(m)
			_ = c.queue.Remove(ctx, rec.ID)
			drainDroppedTotal.Inc()
		}
		c.reportFailure(rec, err, onError)
		return
	}

	if err := c.queue.Remove(ctx, rec.ID); err != nil {
		c.log.Error().Err(err).Str("id", rec.ID).Msg("remove after apply failed")
	}
	drainAppliedTotal.WithLabelValues(string(rec.Kind)).Inc()
	c.bus.EmitMutationApplied(rec)
}

// apply dispatches one mutation to the executor with validation on and
// records identity resolutions for the temp entities it carried.
func (c *Coordinator) apply(ctx context.Context, m *model.PendingMutation) error {
	switch m.Kind {
	case model.KindNewSit:
		res, err := c.exec.CreateSitWithImage(ctx, m.Payload, m.UserID, true)
		if err != nil {
			return err
		}
		c.ids.MapSit(m.Payload.TempSitID, res.Sit.ID)
		c.ids.MapImage(m.Payload.TempImageID, res.Image.ID)
		return nil

	case model.KindAddImage:
		img, err := c.exec.AddImageToSit(ctx, m.Payload, m.UserID, true)
		if err != nil {
			return err
		}
		c.ids.MapImage(m.Payload.TempImageID, img.ID)
		return nil

	case model.KindReplaceImage:
		img, err := c.exec.ReplaceImage(ctx, m.Payload, m.UserID, true)
		if err != nil {
			return err
		}
		c.ids.MapImage(m.Payload.TempImageID, img.ID)
		return nil

	case model.KindDeleteImage:
		return c.exec.DeleteImage(ctx, m.Payload.ImageID, m.UserID)
	}
	return nil // unreachable: Validate rejects unknown kinds
}

// isFinal reports whether the failure would repeat identically next drain.
func (c *Coordinator) isFinal(err error) bool {
	return executor.IsPrecondition(err) ||
		remote.IsIrrecoverable(err) ||
		errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrNotAuthenticated) ||
		errors.Is(err, model.ErrNotAuthorized)
}

// markFailed resolves the mutation's temp ids to "creation failed" so late
// UI references stop waiting for them.
func (c *Coordinator) markFailed(m *model.PendingMutation) {
	if m.Payload.TempSitID != "" {
		c.ids.MapSitFailed(m.Payload.TempSitID)
	}
	if m.Payload.TempImageID != "" {
		c.ids.MapImageFailed(m.Payload.TempImageID)
	}
}

func (c *Coordinator) reportFailure(rec model.MutationRecord, err error, onError OnError) {
	c.log.Warn().Err(err).Str("id", rec.ID).Str("kind", string(rec.Kind)).Msg("mutation replay failed")
	drainFailedTotal.WithLabelValues(string(rec.Kind)).Inc()
	c.bus.EmitMutationFailed(rec.ID, err)
	if onError != nil {
		onError(rec.ID, err)
	}
}

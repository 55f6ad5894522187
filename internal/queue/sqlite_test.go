package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/satlas/satlas-sync/internal/model"
)

func newTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pending.db")
	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func sampleMutation(id string, ts time.Time) *model.PendingMutation {
	loc := &model.LatLng{Latitude: 37.77, Longitude: -122.42}
	return &model.PendingMutation{
		ID:        id,
		Kind:      model.KindNewSit,
		Timestamp: ts,
		UserID:    "user-1",
		Payload: model.MutationPayload{
			PhotoData:    []byte{0xff, 0xd8, 0x01, 0x02},
			Location:     loc,
			DisplayName:  "Alice",
			CollectionID: "1700000000000_user-1",
			TempSitID:    "temp_1700000000000",
			TempImageID:  "temp_1700000000001",
		},
	}
}

func TestAppendGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := sampleMutation("m1", ts)
	require.NoError(t, s.Append(ctx, m))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, m.Kind, got.Kind)
	require.Equal(t, ts, got.Timestamp)
	require.Equal(t, m.UserID, got.UserID)
	require.Equal(t, m.Payload.PhotoData, got.Payload.PhotoData)
	require.NotNil(t, got.Payload.Location)
	require.Equal(t, *m.Payload.Location, *got.Payload.Location)
	require.Equal(t, m.Payload.TempSitID, got.Payload.TempSitID)
}

func TestListReturnsInsertionOrderWithoutPayloads(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Append out of timestamp order; List reflects insertion order only.
	require.NoError(t, s.Append(ctx, sampleMutation("m2", base.Add(2*time.Minute))))
	require.NoError(t, s.Append(ctx, sampleMutation("m1", base.Add(1*time.Minute))))
	require.NoError(t, s.Append(ctx, sampleMutation("m3", base.Add(3*time.Minute))))

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "m2", recs[0].ID)
	require.Equal(t, "m1", recs[1].ID)
	require.Equal(t, "m3", recs[2].ID)
}

func TestQueueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, sampleMutation("m1", time.Now().UTC())))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	recs, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got, err := reopened.Get(ctx, "m1")
	require.NoError(t, err)
	require.NotEmpty(t, got.Payload.PhotoData)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sampleMutation("m1", time.Now().UTC())))
	require.NoError(t, s.Remove(ctx, "m1"))
	require.NoError(t, s.Remove(ctx, "m1"))
	require.NoError(t, s.Remove(ctx, "never-existed"))

	_, err := s.Get(ctx, "m1")
	require.ErrorIs(t, err, model.ErrNotFound)

	recs, err := s.List(ctx)
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestRemoveCascadesPayloadRow(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sampleMutation("m1", time.Now().UTC())))
	require.NoError(t, s.Remove(ctx, "m1"))

	db, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM MutationPayloads`).Scan(&n))
	require.Zero(t, n, "payload row must be deleted with its metadata row")
}

func TestGetCorruptPayloadIsValidationError(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, sampleMutation("m1", time.Now().UTC())))

	db, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	_, err = db.Exec(`UPDATE MutationPayloads SET Payload = ? WHERE MutationId = ?`, []byte("{not json"), "m1")
	require.NoError(t, err)

	_, err = s.Get(ctx, "m1")
	require.Error(t, err)
	require.True(t, errors.Is(err, model.ErrValidation), "corrupt payload must classify as malformed: %v", err)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDBPathHonorsStateHomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SATLAS_STATE_HOME", dir)

	path, err := DBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "pending.db"), path)
}

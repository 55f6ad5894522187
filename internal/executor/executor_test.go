package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/satlas/satlas-sync/internal/events"
	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/remote"
	"github.com/satlas/satlas-sync/internal/remote/remotetest"
)

var (
	locPark   = model.LatLng{Latitude: 37.7700, Longitude: -122.4200}
	locNearby = model.LatLng{Latitude: 37.77015, Longitude: -122.4200} // ~55 ft north
	locFar    = model.LatLng{Latitude: 37.7800, Longitude: -122.4200}  // ~3600 ft north
)

func newTestExecutor(t *testing.T) (*Executor, *remotetest.Fake, *events.Bus) {
	t.Helper()
	fake := remotetest.New()
	bus := events.NewBus()
	exec := New(fake, Config{ProximityThresholdFeet: 100, SuperuserID: "admin"}, bus, zerolog.Nop())
	return exec, fake, bus
}

// seedSit creates a sit with one image for userID at loc, bypassing
// enqueue-style validation.
func seedSit(t *testing.T, exec *Executor, userID, collectionID string, loc model.LatLng) *CreateSitResult {
	t.Helper()
	res, err := exec.CreateSitWithImage(context.Background(), model.MutationPayload{
		PhotoData:    []byte{0xff, 0xd8},
		Location:     &loc,
		DisplayName:  userID,
		CollectionID: collectionID,
	}, userID, false)
	require.NoError(t, err)
	return res
}

func TestCreateSitWithImage(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	res, err := exec.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData:   []byte{0xff, 0xd8},
		Location:    &locPark,
		DisplayName: "Alice",
	}, "user-a", true)
	require.NoError(t, err)
	require.NotEmpty(t, res.Sit.ID)
	require.NotEmpty(t, res.Image.ID)
	require.Equal(t, res.Sit.CollectionID, res.Image.CollectionID)
	require.Equal(t, "user-a", res.Sit.UploadedBy)
	require.NotEmpty(t, res.Image.PhotoURL)

	require.Equal(t, 1, fake.CountDocuments(CollectionSits))
	require.Equal(t, 1, fake.CountDocuments(CollectionImages))
}

func TestCreateSitWithImage_RejectsNearbySit(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	existing := seedSit(t, exec, "user-a", "col-1", locPark)

	_, err := exec.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData: []byte{0xff},
		Location:  &locNearby,
	}, "user-b", true)

	var dup *DuplicateSitError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, existing.Sit.ID, dup.SitID)
	require.True(t, IsPrecondition(err))
}

func TestCreateSitWithImage_AllowsDistantSit(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	seedSit(t, exec, "user-a", "col-1", locPark)

	_, err := exec.CreateSitWithImage(context.Background(), model.MutationPayload{
		PhotoData: []byte{0xff},
		Location:  &locFar,
	}, "user-b", true)
	require.NoError(t, err)
	require.Equal(t, 2, fake.CountDocuments(CollectionSits))
}

func TestCreateSitWithImage_RequiresAuthAndLocation(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	ctx := context.Background()

	_, err := exec.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData: []byte{0xff},
		Location:  &locPark,
	}, "", true)
	require.ErrorIs(t, err, model.ErrNotAuthenticated)

	bad := model.LatLng{Latitude: 99, Longitude: 0}
	_, err = exec.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData: []byte{0xff},
		Location:  &bad,
	}, "user-a", true)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestAddImageToSit_OneContributionPerUser(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	seedSit(t, exec, "user-a", "col-1", locPark)

	// A different user may contribute.
	img, err := exec.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locNearby,
		CollectionID: "col-1",
	}, "user-b", true)
	require.NoError(t, err)
	require.Equal(t, "col-1", img.CollectionID)

	// The seeding user already has an image in the collection.
	_, err = exec.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfd},
		Location:     &locNearby,
		CollectionID: "col-1",
	}, "user-a", true)
	require.ErrorIs(t, err, ErrAlreadyContributed)
	require.Equal(t, 2, fake.CountDocuments(CollectionImages))
}

func TestAddImageToSit_TooFar(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	seedSit(t, exec, "user-a", "col-1", locPark)

	_, err := exec.AddImageToSit(context.Background(), model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locFar,
		CollectionID: "col-1",
	}, "user-b", true)
	require.ErrorIs(t, err, ErrTooFarFromSit)
}

func TestAddImageToSit_MissingSit(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	_, err := exec.AddImageToSit(context.Background(), model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locPark,
		CollectionID: "no-such-collection",
	}, "user-a", true)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteImage_OwnershipEnforced(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	res := seedSit(t, exec, "user-a", "col-1", locPark)

	err := exec.DeleteImage(ctx, res.Image.ID, "user-b")
	require.ErrorIs(t, err, model.ErrNotAuthorized)
	require.Equal(t, 1, fake.CountDocuments(CollectionImages))
}

func TestDeleteImage_SuperuserMayDeleteAny(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	res := seedSit(t, exec, "user-a", "col-1", locPark)

	require.NoError(t, exec.DeleteImage(context.Background(), res.Image.ID, "admin"))
	require.Zero(t, fake.CountDocuments(CollectionImages))
}

func TestDeleteImage_CascadeDeletesEmptySit(t *testing.T) {
	exec, fake, bus := newTestExecutor(t)
	ctx := context.Background()

	res := seedSit(t, exec, "user-a", "col-1", locPark)

	var deletedSits []string
	bus.OnSitDeleted(func(sitID string) { deletedSits = append(deletedSits, sitID) })

	require.NoError(t, exec.DeleteImage(ctx, res.Image.ID, "user-a"))

	// A sit with no images cannot exist.
	require.Zero(t, fake.CountDocuments(CollectionImages))
	require.Zero(t, fake.CountDocuments(CollectionSits))
	require.Equal(t, []string{res.Sit.ID}, deletedSits)
}

func TestDeleteImage_KeepsSitWhileImagesRemain(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	seedSit(t, exec, "user-a", "col-1", locPark)
	img, err := exec.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locNearby,
		CollectionID: "col-1",
	}, "user-b", true)
	require.NoError(t, err)

	require.NoError(t, exec.DeleteImage(ctx, img.ID, "user-b"))
	require.Equal(t, 1, fake.CountDocuments(CollectionImages))
	require.Equal(t, 1, fake.CountDocuments(CollectionSits))
}

func TestReplaceImage_SwapsOwnImage(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	seedSit(t, exec, "user-a", "col-1", locPark)
	old, err := exec.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locNearby,
		CollectionID: "col-1",
	}, "user-b", true)
	require.NoError(t, err)

	replacement, err := exec.ReplaceImage(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfc},
		Location:     &locNearby,
		CollectionID: "col-1",
		ImageID:      old.ID,
	}, "user-b", true)
	require.NoError(t, err)
	require.NotEqual(t, old.ID, replacement.ID)
	require.Equal(t, 2, fake.CountDocuments(CollectionImages))
}

func TestReplaceImage_InterruptionLosesImage(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	seedSit(t, exec, "user-a", "col-1", locPark)
	old, err := exec.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfe},
		Location:     &locNearby,
		CollectionID: "col-1",
	}, "user-b", true)
	require.NoError(t, err)

	// Delete succeeds, the subsequent create fails: the user's image is gone
	// and no replacement exists. This window is inherent to the
	// delete-then-add sequencing.
	fake.CreateDocumentHook = func(collection string, _ map[string]any) error {
		return fmt.Errorf("simulated write failure on %s", collection)
	}

	_, err = exec.ReplaceImage(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfc},
		Location:     &locNearby,
		CollectionID: "col-1",
		ImageID:      old.ID,
	}, "user-b", true)
	require.Error(t, err)
	require.Equal(t, 1, fake.CountDocuments(CollectionImages), "old image deleted, replacement never created")
	require.Equal(t, 1, fake.CountDocuments(CollectionSits))
}

func TestReplaceImage_LastImageCascadesSitAway(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	ctx := context.Background()

	res := seedSit(t, exec, "user-a", "col-1", locPark)
	fake.CreateDocumentHook = func(string, map[string]any) error {
		return errors.New("simulated write failure")
	}

	// Deleting the only image empties the collection, which removes the sit
	// before the replacement can be added.
	_, err := exec.ReplaceImage(ctx, model.MutationPayload{
		PhotoData:    []byte{0xfc},
		Location:     &locPark,
		CollectionID: "col-1",
		ImageID:      res.Image.ID,
	}, "user-a", true)
	require.Error(t, err)
	require.Zero(t, fake.CountDocuments(CollectionSits))
	require.Zero(t, fake.CountDocuments(CollectionImages))
}

// flakySitQueries fails every query against the sits collection once armed,
// simulating connectivity dropping mid-operation.
type flakySitQueries struct {
	*remotetest.Fake
	armed bool
}

func (f *flakySitQueries) QueryDocuments(ctx context.Context, collection string, filter remote.Filter) ([]remote.Document, error) {
	if f.armed && collection == CollectionSits {
		return nil, remote.NewNetworkError("query documents", errors.New("connection reset"))
	}
	return f.Fake.QueryDocuments(ctx, collection, filter)
}

func TestDeleteImage_CascadeQueryFailureSurfaces(t *testing.T) {
	fake := remotetest.New()
	store := &flakySitQueries{Fake: fake}
	exec := New(store, Config{ProximityThresholdFeet: 100}, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	res, err := exec.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData:    []byte{0xff, 0xd8},
		Location:     &locPark,
		CollectionID: "col-1",
	}, "user-a", false)
	require.NoError(t, err)

	store.armed = true
	err = exec.DeleteImage(ctx, res.Image.ID, "user-a")

	// The collection emptied but the sit lookup failed: the caller must see
	// the error so the operation can be retried, not a false success that
	// strands a zero-image sit.
	require.Error(t, err)
	require.False(t, errors.Is(err, model.ErrNotFound))
	require.Zero(t, fake.CountDocuments(CollectionImages))
	require.Equal(t, 1, fake.CountDocuments(CollectionSits))
}

func TestDeleteImage_RemovesBlob(t *testing.T) {
	exec, fake, _ := newTestExecutor(t)
	res := seedSit(t, exec, "user-a", "col-1", locPark)

	require.NoError(t, exec.DeleteImage(context.Background(), res.Image.ID, "user-a"))
	for _, call := range fake.Calls {
		if call == "DeleteBlob" {
			return
		}
	}
	t.Fatal("expected a blob deletion alongside the document deletion")
}

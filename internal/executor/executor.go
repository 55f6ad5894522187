// Package executor performs the concrete remote mutations of the sync core,
// re-validating business preconditions at execution time. Enqueue-time
// checks are not enough: by the time a queued mutation replays, another
// device may have created a conflicting sit or deleted the target.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satlas/satlas-sync/internal/events"
	"github.com/satlas/satlas-sync/internal/geo"
	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/remote"
)

// Config carries the business-rule knobs.
type Config struct {
	// ProximityThresholdFeet bounds both "too close to an existing sit"
	// and "too far from the target sit".
	ProximityThresholdFeet float64
	// SuperuserID may delete any image regardless of ownership.
	SuperuserID string
}

// Executor executes one mutation at a time against the remote store.
type Executor struct {
	remote remote.Store
	cfg    Config
	bus    *events.Bus
	log    zerolog.Logger
}

// CreateSitResult bundles the sit and its first image.
type CreateSitResult struct {
	Sit   *model.Sit
	Image *model.Image
}

// New constructs an Executor. A nil bus disables event emission.
func New(store remote.Store, cfg Config, bus *events.Bus, log zerolog.Logger) *Executor {
	if cfg.ProximityThresholdFeet <= 0 {
		cfg.ProximityThresholdFeet = 100
	}
	return &Executor{remote: store, cfg: cfg, bus: bus, log: log}
}

// CreateSitWithImage creates a sit and its first image. When validate is
// set it re-checks that no sit already occupies this location; a conflict
// raises DuplicateSitError so the caller can redirect to add-image instead.
func (e *Executor) CreateSitWithImage(ctx context.Context, p model.MutationPayload, userID string, validate bool) (*CreateSitResult, error) {
	if validate {
		if err := e.checkAuth(userID); err != nil {
			return nil, err
		}
		if err := checkLocation(p.Location); err != nil {
			return nil, err
		}
		if err := e.checkNoNearbySit(ctx, *p.Location); err != nil {
			return nil, err
		}
	}
	if p.Location == nil {
		return nil, fmt.Errorf("%w: missing location", model.ErrValidation)
	}

	now := time.Now().UTC()
	collectionID := p.CollectionID
	if collectionID == "" {
		collectionID = model.NewTempCollectionID(now, userID)
	}

	img, err := e.uploadImage(ctx, p, userID, collectionID, now)
	if err != nil {
		return nil, err
	}

	sit := &model.Sit{
		Location:     *p.Location,
		CollectionID: collectionID,
		UploadedBy:   userID,
		UploadedName: p.DisplayName,
		CreatedAt:    now,
	}
	sitID, err := e.remote.CreateDocument(ctx, CollectionSits, sitToDoc(sit))
	if err != nil {
		return nil, err
	}
	sit.ID = sitID

	e.log.Info().Str("sit", sitID).Str("user", userID).Msg("sit created")
	e.bus.EmitSitCreated(*sit)
	return &CreateSitResult{Sit: sit, Image: img}, nil
}

// AddImageToSit adds one image to an existing sit's collection. When
// validate is set it confirms authentication, coordinate sanity, the
// one-contribution-per-user rule, and proximity to the sit.
func (e *Executor) AddImageToSit(ctx context.Context, p model.MutationPayload, userID string, validate bool) (*model.Image, error) {
	if validate {
		if err := e.checkAuth(userID); err != nil {
			return nil, err
		}
		if err := checkLocation(p.Location); err != nil {
			return nil, err
		}
		sit, err := e.findSitByCollection(ctx, p.CollectionID)
		if err != nil {
			return nil, err
		}
		contributed, err := e.remote.QueryDocuments(ctx, CollectionImages, remote.Filter{
			"collectionId": p.CollectionID,
			"uploadedBy":   userID,
		})
		if err != nil {
			return nil, err
		}
		if len(contributed) > 0 {
			return nil, ErrAlreadyContributed
		}
		if d := geo.DistanceFeet(*p.Location, sit.Location); d > e.cfg.ProximityThresholdFeet {
			return nil, fmt.Errorf("%w: %.0f ft away (limit %.0f)", ErrTooFarFromSit, d, e.cfg.ProximityThresholdFeet)
		}
	}

	img, err := e.uploadImage(ctx, p, userID, p.CollectionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("image", img.ID).Str("collection", p.CollectionID).Msg("image added")
	return img, nil
}

// ReplaceImage swaps the user's image in a collection: delete old, then add
// new. The two steps are not atomic; an interruption in between leaves the
// collection one image short, and if that was the last image the cascade in
// DeleteImage has already removed the sit.
func (e *Executor) ReplaceImage(ctx context.Context, p model.MutationPayload, userID string, validate bool) (*model.Image, error) {
	if err := e.DeleteImage(ctx, p.ImageID, userID); err != nil {
		return nil, err
	}
	return e.AddImageToSit(ctx, p, userID, validate)
}

// DeleteImage removes an image after an ownership check. If the collection
// is left empty the owning sit is deleted as well: a sit with no images
// cannot exist.
func (e *Executor) DeleteImage(ctx context.Context, imageID, userID string) error {
	data, err := e.remote.GetDocument(ctx, CollectionImages, imageID)
	if err != nil {
		return err
	}
	img := imageFromDoc(remote.Document{ID: imageID, Data: data})

	if img.UploadedBy != userID && (e.cfg.SuperuserID == "" || userID != e.cfg.SuperuserID) {
		return fmt.Errorf("%w: image %s belongs to %s", model.ErrNotAuthorized, imageID, img.UploadedBy)
	}

	if path := stringField(data, "blobPath"); path != "" {
		if err := e.remote.DeleteBlob(ctx, path); err != nil {
			e.log.Warn().Err(err).Str("image", imageID).Msg("blob delete failed; continuing")
		}
	}
	if err := e.remote.DeleteDocument(ctx, CollectionImages, imageID); err != nil {
		return err
	}

	remaining, err := e.remote.QueryDocuments(ctx, CollectionImages, remote.Filter{"collectionId": img.CollectionID})
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}

	sit, err := e.findSitByCollection(ctx, img.CollectionID)
	if errors.Is(err, model.ErrNotFound) {
		// Collection already has no sit; nothing to cascade.
		return nil
	}
	if err != nil {
		return err
	}
	if err := e.remote.DeleteDocument(ctx, CollectionSits, sit.ID); err != nil {
		return err
	}
	e.log.Info().Str("sit", sit.ID).Msg("sit deleted: collection empty")
	e.bus.EmitSitDeleted(sit.ID)
	return nil
}

// ------------------------- internals -------------------------

func (e *Executor) uploadImage(ctx context.Context, p model.MutationPayload, userID, collectionID string, now time.Time) (*model.Image, error) {
	blobPath := imageBlobPath(uuid.New().String())
	url, err := e.remote.UploadBlob(ctx, blobPath, p.PhotoData, "image/jpeg")
	if err != nil {
		return nil, err
	}

	img := &model.Image{
		CollectionID: collectionID,
		PhotoURL:     url,
		UploadedBy:   userID,
		UploadedName: p.DisplayName,
		CreatedAt:    now,
	}
	doc := imageToDoc(img)
	doc["blobPath"] = blobPath
	id, err := e.remote.CreateDocument(ctx, CollectionImages, doc)
	if err != nil {
		return nil, err
	}
	img.ID = id
	return img, nil
}

func (e *Executor) checkAuth(userID string) error {
	if userID == "" {
		return model.ErrNotAuthenticated
	}
	return nil
}

func checkLocation(l *model.LatLng) error {
	if l == nil || !l.Valid() {
		return fmt.Errorf("%w: invalid coordinates", model.ErrValidation)
	}
	return nil
}

// checkNoNearbySit enforces the minimum-separation rule for new sits.
func (e *Executor) checkNoNearbySit(ctx context.Context, loc model.LatLng) error {
	docs, err := e.remote.QueryDocuments(ctx, CollectionSits, nil)
	if err != nil {
		return err
	}
	for _, d := range docs {
		sit := sitFromDoc(d)
		if geo.DistanceFeet(loc, sit.Location) <= e.cfg.ProximityThresholdFeet {
			return &DuplicateSitError{SitID: sit.ID}
		}
	}
	return nil
}

func (e *Executor) findSitByCollection(ctx context.Context, collectionID string) (*model.Sit, error) {
	docs, err := e.remote.QueryDocuments(ctx, CollectionSits, remote.Filter{"imageCollectionId": collectionID})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("sit for collection %s: %w", collectionID, model.ErrNotFound)
	}
	return sitFromDoc(docs[0]), nil
}

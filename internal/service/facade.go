// Package service is the single entry point application code calls for
// mutating actions. It hides the online/offline branch: online calls
// delegate straight to the executor, offline calls persist a pending
// mutation and signal the caller with ErrQueuedOffline.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satlas/satlas-sync/internal/cache"
	"github.com/satlas/satlas-sync/internal/connectivity"
	"github.com/satlas/satlas-sync/internal/events"
	"github.com/satlas/satlas-sync/internal/executor"
	"github.com/satlas/satlas-sync/internal/idmap"
	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/queue"
)

// ErrQueuedOffline is the distinguished non-error success signal: the
// action was saved durably and will complete when connectivity returns.
// It travels through the error channel so callers must handle it
// explicitly, but it must never be shown to the user as a failure.
var ErrQueuedOffline = errors.New("saved locally; will upload when back online")

// IsQueuedOffline reports whether err is the deferred-success signal.
func IsQueuedOffline(err error) bool { return errors.Is(err, ErrQueuedOffline) }

// Deps bundles the collaborators injected into the Service.
type Deps struct {
	Monitor  *connectivity.Monitor
	Queue    queue.Store
	Executor *executor.Executor
	IDs      *idmap.Mapper
	Cache    *cache.Cache
	Bus      *events.Bus
	Log      zerolog.Logger

	// Now and NewID are injectable for tests; defaults are time.Now and
	// random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Service is the offline-aware facade over the mutation executor.
type Service struct {
	deps Deps
}

// New constructs a Service, filling in defaulted dependencies.
func New(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCache()
	}
	return &Service{deps: deps}
}

// Cache exposes the local read-through view for UI collaborators.
func (s *Service) Cache() *cache.Cache { return s.deps.Cache }

// ResolveSit reports what became of a temporary sit id after replay.
func (s *Service) ResolveSit(tempID string) (string, idmap.Resolution) {
	return s.deps.IDs.ResolveSit(tempID)
}

// ResolveImage reports what became of a temporary image id after replay.
func (s *Service) ResolveImage(tempID string) (string, idmap.Resolution) {
	return s.deps.IDs.ResolveImage(tempID)
}

// ------------------------------
// Requests
// ------------------------------

// CreateSitRequest creates a new sit with its first photo.
type CreateSitRequest struct {
	UserID      string
	DisplayName string
	Location    model.LatLng
	Photo       []byte
}

// AddImageRequest adds a photo to an existing sit's collection.
type AddImageRequest struct {
	UserID       string
	DisplayName  string
	CollectionID string
	Location     model.LatLng
	Photo        []byte
}

// ReplaceImageRequest swaps the user's photo in a collection.
type ReplaceImageRequest struct {
	UserID       string
	DisplayName  string
	CollectionID string
	ImageID      string
	Location     model.LatLng
	Photo        []byte
}

// ------------------------------
// Operations
// ------------------------------

// CreateSit creates a sit immediately when online. When offline it returns
// temporary entities for optimistic rendering plus ErrQueuedOffline.
func (s *Service) CreateSit(ctx context.Context, req CreateSitRequest) (*model.Sit, *model.Image, error) {
	if !s.deps.Monitor.IsOnline() {
		return s.queueCreateSit(ctx, req)
	}

	res, err := s.deps.Executor.CreateSitWithImage(ctx, model.MutationPayload{
		PhotoData:   req.Photo,
		Location:    &req.Location,
		DisplayName: req.DisplayName,
	}, req.UserID, true)
	if err != nil {
		return nil, nil, err
	}
	s.deps.Cache.PutSit(*res.Sit)
	s.deps.Cache.PutImage(*res.Image)
	return res.Sit, res.Image, nil
}

// AddImage adds a photo to an existing sit.
func (s *Service) AddImage(ctx context.Context, req AddImageRequest) (*model.Image, error) {
	if !s.deps.Monitor.IsOnline() {
		return s.queueAddImage(ctx, req)
	}

	img, err := s.deps.Executor.AddImageToSit(ctx, model.MutationPayload{
		PhotoData:    req.Photo,
		Location:     &req.Location,
		DisplayName:  req.DisplayName,
		CollectionID: req.CollectionID,
	}, req.UserID, true)
	if err != nil {
		return nil, err
	}
	s.deps.Cache.PutImage(*img)
	return img, nil
}

// ReplaceImage swaps the user's photo in a collection.
func (s *Service) ReplaceImage(ctx context.Context, req ReplaceImageRequest) (*model.Image, error) {
	if !s.deps.Monitor.IsOnline() {
		return s.queueReplaceImage(ctx, req)
	}

	img, err := s.deps.Executor.ReplaceImage(ctx, model.MutationPayload{
		PhotoData:    req.Photo,
		Location:     &req.Location,
		DisplayName:  req.DisplayName,
		CollectionID: req.CollectionID,
		ImageID:      req.ImageID,
	}, req.UserID, true)
	if err != nil {
		return nil, err
	}
	s.deps.Cache.RemoveImage(req.CollectionID, req.ImageID)
	s.deps.Cache.PutImage(*img)
	return img, nil
}

// DeleteImage removes the user's photo; the owning sit is deleted when its
// collection becomes empty.
func (s *Service) DeleteImage(ctx context.Context, imageID, userID string) error {
	if !s.deps.Monitor.IsOnline() {
		return s.queueDeleteImage(ctx, imageID, userID)
	}
	return s.deps.Executor.DeleteImage(ctx, imageID, userID)
}

// ------------------------------
// Offline paths
// ------------------------------

func (s *Service) queueCreateSit(ctx context.Context, req CreateSitRequest) (*model.Sit, *model.Image, error) {
	now := s.deps.Now()
	tempSitID := model.NewTempID(now)
	tempImageID := model.NewTempID(now)
	collectionID := model.NewTempCollectionID(now, req.UserID)

	m := &model.PendingMutation{
		ID:        s.deps.NewID(),
		Kind:      model.KindNewSit,
		Timestamp: now,
		UserID:    req.UserID,
		Payload: model.MutationPayload{
			PhotoData:    req.Photo,
			Location:     &req.Location,
			DisplayName:  req.DisplayName,
			CollectionID: collectionID,
			TempSitID:    tempSitID,
			TempImageID:  tempImageID,
		},
	}
	if err := s.append(ctx, m); err != nil {
		return nil, nil, err
	}

	sit := &model.Sit{
		ID:           tempSitID,
		Location:     req.Location,
		CollectionID: collectionID,
		UploadedBy:   req.UserID,
		UploadedName: req.DisplayName,
		CreatedAt:    now,
	}
	img := &model.Image{
		ID:           tempImageID,
		CollectionID: collectionID,
		UploadedBy:   req.UserID,
		UploadedName: req.DisplayName,
		CreatedAt:    now,
		PhotoData:    req.Photo,
	}
	s.deps.Cache.PutSit(*sit)
	s.deps.Cache.PutImage(*img)
	return sit, img, fmt.Errorf("create sit: %w", ErrQueuedOffline)
}

func (s *Service) queueAddImage(ctx context.Context, req AddImageRequest) (*model.Image, error) {
	now := s.deps.Now()
	tempImageID := model.NewTempID(now)

	m := &model.PendingMutation{
		ID:        s.deps.NewID(),
		Kind:      model.KindAddImage,
		Timestamp: now,
		UserID:    req.UserID,
		Payload: model.MutationPayload{
			PhotoData:    req.Photo,
			Location:     &req.Location,
			DisplayName:  req.DisplayName,
			CollectionID: req.CollectionID,
			TempImageID:  tempImageID,
		},
	}
	if err := s.append(ctx, m); err != nil {
		return nil, err
	}

	img := &model.Image{
		ID:           tempImageID,
		CollectionID: req.CollectionID,
		UploadedBy:   req.UserID,
		UploadedName: req.DisplayName,
		CreatedAt:    now,
		PhotoData:    req.Photo,
	}
	s.deps.Cache.PutImage(*img)
	return img, fmt.Errorf("add image: %w", ErrQueuedOffline)
}

func (s *Service) queueReplaceImage(ctx context.Context, req ReplaceImageRequest) (*model.Image, error) {
	now := s.deps.Now()
	tempImageID := model.NewTempID(now)

	m := &model.PendingMutation{
		ID:        s.deps.NewID(),
		Kind:      model.KindReplaceImage,
		Timestamp: now,
		UserID:    req.UserID,
		Payload: model.MutationPayload{
			PhotoData:    req.Photo,
			Location:     &req.Location,
			DisplayName:  req.DisplayName,
			CollectionID: req.CollectionID,
			ImageID:      req.ImageID,
			TempImageID:  tempImageID,
		},
	}
	if err := s.append(ctx, m); err != nil {
		return nil, err
	}

	img := &model.Image{
		ID:           tempImageID,
		CollectionID: req.CollectionID,
		UploadedBy:   req.UserID,
		UploadedName: req.DisplayName,
		CreatedAt:    now,
		PhotoData:    req.Photo,
	}
	s.deps.Cache.RemoveImage(req.CollectionID, req.ImageID)
	s.deps.Cache.PutImage(*img)
	return img, fmt.Errorf("replace image: %w", ErrQueuedOffline)
}

func (s *Service) queueDeleteImage(ctx context.Context, imageID, userID string) error {
	m := &model.PendingMutation{
		ID:        s.deps.NewID(),
		Kind:      model.KindDeleteImage,
		Timestamp: s.deps.Now(),
		UserID:    userID,
		Payload:   model.MutationPayload{ImageID: imageID},
	}
	if err := s.append(ctx, m); err != nil {
		return err
	}
	return fmt.Errorf("delete image: %w", ErrQueuedOffline)
}

// append persists the mutation and announces it.
func (s *Service) append(ctx context.Context, m *model.PendingMutation) error {
	if err := s.deps.Queue.Append(ctx, m); err != nil {
		return fmt.Errorf("queue append: %w", err)
	}
	s.deps.Log.Info().Str("id", m.ID).Str("kind", string(m.Kind)).Msg("mutation queued offline")
	s.deps.Bus.EmitMutationQueued(m.Record())
	return nil
}

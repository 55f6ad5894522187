package model

import "time"

// ------------------------------
// Core Domain Entities
// ------------------------------

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are inside the WGS84 envelope.
func (l LatLng) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180
}

// Sit is a user-created point of interest anchored to a geolocation.
// It owns a collection of photos keyed by CollectionID.
type Sit struct {
	ID           string    `json:"sitId"`
	Location     LatLng    `json:"location"`
	CollectionID string    `json:"imageCollectionId"`
	UploadedBy   string    `json:"uploadedBy"`
	UploadedName string    `json:"uploadedByDisplayName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Image is one photo within a sit's collection. PhotoURL stays empty until
// the upload completes; PhotoData carries inline bytes only for temporary
// entities rendered optimistically before upload.
type Image struct {
	ID           string    `json:"imageId"`
	CollectionID string    `json:"collectionId"`
	PhotoURL     string    `json:"photoUrl,omitempty"`
	UploadedBy   string    `json:"uploadedBy"`
	UploadedName string    `json:"uploadedByDisplayName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	PhotoData    []byte    `json:"photoData,omitempty"`
}

// ------------------------------
// Pending mutations
// ------------------------------

// MutationKind names the deferred write a PendingMutation describes.
type MutationKind string

const (
	KindNewSit       MutationKind = "new_sit"
	KindAddImage     MutationKind = "add_image"
	KindReplaceImage MutationKind = "replace_image"
	KindDeleteImage  MutationKind = "delete_image"
)

// Known reports whether k is one of the mutation kinds this core replays.
func (k MutationKind) Known() bool {
	switch k {
	case KindNewSit, KindAddImage, KindReplaceImage, KindDeleteImage:
		return true
	}
	return false
}

// MutationRecord is the lightweight metadata view of a queued mutation,
// returned by queue enumeration. Payload bodies are fetched separately.
type MutationRecord struct {
	ID        string       `json:"id"`
	Kind      MutationKind `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	UserID    string       `json:"userId"`
}

// MutationPayload carries the kind-specific data of a PendingMutation.
// Fields not used by a given kind stay zero.
type MutationPayload struct {
	PhotoData    []byte  `json:"photoData,omitempty"`
	Location     *LatLng `json:"location,omitempty"`
	DisplayName  string  `json:"displayName,omitempty"`
	CollectionID string  `json:"collectionId,omitempty"`
	ImageID      string  `json:"imageId,omitempty"`

	// Temp ids fabricated at enqueue time so the replayed result can be
	// reconciled back onto the optimistic entities the UI is showing.
	TempSitID   string `json:"tempSitId,omitempty"`
	TempImageID string `json:"tempImageId,omitempty"`
}

// PendingMutation is one durable deferred write. Kind and Payload are
// immutable once appended; only the record's existence changes.
type PendingMutation struct {
	ID        string          `json:"id"`
	Kind      MutationKind    `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	UserID    string          `json:"userId"`
	Payload   MutationPayload `json:"payload"`
}

// Record returns the metadata view of the mutation.
func (m *PendingMutation) Record() MutationRecord {
	return MutationRecord{ID: m.ID, Kind: m.Kind, Timestamp: m.Timestamp, UserID: m.UserID}
}

// Validate checks the fields each kind requires before replay. A mutation
// that fails here is malformed and must be dropped, not retried.
func (m *PendingMutation) Validate() error {
	if m.ID == "" {
		return fieldError("id")
	}
	if m.UserID == "" {
		return fieldError("userId")
	}
	if !m.Kind.Known() {
		return fieldErrorf("unknown kind %q", string(m.Kind))
	}
	p := m.Payload
	switch m.Kind {
	case KindNewSit:
		if len(p.PhotoData) == 0 {
			return fieldError("photoData")
		}
		if p.Location == nil {
			return fieldError("location")
		}
	case KindAddImage:
		if len(p.PhotoData) == 0 {
			return fieldError("photoData")
		}
		if p.Location == nil {
			return fieldError("location")
		}
		if p.CollectionID == "" {
			return fieldError("collectionId")
		}
	case KindReplaceImage:
		if len(p.PhotoData) == 0 {
			return fieldError("photoData")
		}
		if p.Location == nil {
			return fieldError("location")
		}
		if p.CollectionID == "" {
			return fieldError("collectionId")
		}
		if p.ImageID == "" {
			return fieldError("imageId")
		}
	case KindDeleteImage:
		if p.ImageID == "" {
			return fieldError("imageId")
		}
	}
	return nil
}

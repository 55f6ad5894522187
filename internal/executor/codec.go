package executor

import (
	"fmt"
	"time"

	"github.com/satlas/satlas-sync/internal/model"
	"github.com/satlas/satlas-sync/internal/remote"
)

// Remote collections and blob layout.
const (
	CollectionSits   = "sits"
	CollectionImages = "images"
)

func imageBlobPath(imageID string) string {
	return fmt.Sprintf("images/%s.jpg", imageID)
}

func sitToDoc(s *model.Sit) map[string]any {
	return map[string]any{
		"latitude":              s.Location.Latitude,
		"longitude":             s.Location.Longitude,
		"imageCollectionId":     s.CollectionID,
		"uploadedBy":            s.UploadedBy,
		"uploadedByDisplayName": s.UploadedName,
		"createdAt":             s.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func sitFromDoc(d remote.Document) *model.Sit {
	return &model.Sit{
		ID: d.ID,
		Location: model.LatLng{
			Latitude:  floatField(d.Data, "latitude"),
			Longitude: floatField(d.Data, "longitude"),
		},
		CollectionID: stringField(d.Data, "imageCollectionId"),
		UploadedBy:   stringField(d.Data, "uploadedBy"),
		UploadedName: stringField(d.Data, "uploadedByDisplayName"),
		CreatedAt:    timeField(d.Data, "createdAt"),
	}
}

func imageToDoc(img *model.Image) map[string]any {
	return map[string]any{
		"collectionId":          img.CollectionID,
		"photoUrl":              img.PhotoURL,
		"uploadedBy":            img.UploadedBy,
		"uploadedByDisplayName": img.UploadedName,
		"createdAt":             img.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func imageFromDoc(d remote.Document) *model.Image {
	return &model.Image{
		ID:           d.ID,
		CollectionID: stringField(d.Data, "collectionId"),
		PhotoURL:     stringField(d.Data, "photoUrl"),
		UploadedBy:   stringField(d.Data, "uploadedBy"),
		UploadedName: stringField(d.Data, "uploadedByDisplayName"),
		CreatedAt:    timeField(d.Data, "createdAt"),
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func timeField(m map[string]any, key string) time.Time {
	if s, ok := m[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

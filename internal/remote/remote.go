// Package remote defines the narrow interface to the opaque remote
// persistence service: a document store plus a blob store. The core assumes
// nothing about the wire protocol behind it.
package remote

import "context"

// Filter selects documents whose fields equal the given values.
type Filter map[string]any

// Document is one stored record with its server-assigned id.
type Document struct {
	ID   string
	Data map[string]any
}

// Store exposes the create/read/delete/query contract of the remote
// document store and the upload/delete contract of the blob store.
type Store interface {
	CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error)
	GetDocument(ctx context.Context, collection, id string) (map[string]any, error)
	QueryDocuments(ctx context.Context, collection string, filter Filter) ([]Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error

	UploadBlob(ctx context.Context, path string, data []byte, contentType string) (string, error)
	DeleteBlob(ctx context.Context, path string) error
}

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/satlas/satlas-sync/internal/model"
)

// HTTPStore implements Store against the backend's REST surface. Transient
// failures retry with bounded exponential backoff; irrecoverable responses
// fail immediately. All operations are idempotent targets, so best-effort
// retries cannot duplicate side effects beyond what the backend tolerates.
type HTTPStore struct {
	rc          *resty.Client
	maxAttempts int
	log         zerolog.Logger
}

// NewHTTPStore constructs an HTTPStore for the given base URL.
func NewHTTPStore(baseURL string, timeout time.Duration, maxAttempts int, log zerolog.Logger) *HTTPStore {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)
	return &HTTPStore{rc: rc, maxAttempts: maxAttempts, log: log}
}

type idResponse struct {
	ID string `json:"id"`
}

type documentResponse struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

type queryResponse struct {
	Documents []documentResponse `json:"documents"`
}

type blobResponse struct {
	URL string `json:"url"`
}

// CreateDocument creates a document and returns its server-assigned id.
func (s *HTTPStore) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	var out idResponse
	err := s.do(ctx, "create document", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			SetBody(data).
			SetResult(&out).
			Post(fmt.Sprintf("/v1/documents/%s", url.PathEscape(collection)))
	}, http.StatusCreated, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetDocument fetches a document's data; model.ErrNotFound when absent.
func (s *HTTPStore) GetDocument(ctx context.Context, collection, id string) (map[string]any, error) {
	var out documentResponse
	err := s.do(ctx, "get document", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			SetResult(&out).
			Get(fmt.Sprintf("/v1/documents/%s/%s", url.PathEscape(collection), url.PathEscape(id)))
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// QueryDocuments returns all documents matching the equality filter.
func (s *HTTPStore) QueryDocuments(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	var out queryResponse
	err := s.do(ctx, "query documents", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			SetBody(map[string]any{"filter": filter}).
			SetResult(&out).
			Post(fmt.Sprintf("/v1/documents/%s/query", url.PathEscape(collection)))
	}, http.StatusOK)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(out.Documents))
	for _, d := range out.Documents {
		docs = append(docs, Document{ID: d.ID, Data: d.Data})
	}
	return docs, nil
}

// DeleteDocument deletes a document. Deleting an absent id is not an error.
func (s *HTTPStore) DeleteDocument(ctx context.Context, collection, id string) error {
	return s.do(ctx, "delete document", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			Delete(fmt.Sprintf("/v1/documents/%s/%s", url.PathEscape(collection), url.PathEscape(id)))
	}, http.StatusNoContent, http.StatusOK, http.StatusNotFound)
}

// UploadBlob stores bytes at path and returns the public URL.
func (s *HTTPStore) UploadBlob(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	var out blobResponse
	err := s.do(ctx, "upload blob", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			SetHeader("Content-Type", contentType).
			SetBody(data).
			SetResult(&out).
			Put(fmt.Sprintf("/v1/blobs/%s", path))
	}, http.StatusCreated, http.StatusOK)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// DeleteBlob removes the blob at path. Absent blobs are not an error.
func (s *HTTPStore) DeleteBlob(ctx context.Context, path string) error {
	return s.do(ctx, "delete blob", func() (*resty.Response, error) {
		return s.rc.R().
			SetContext(ctx).
			Delete(fmt.Sprintf("/v1/blobs/%s", path))
	}, http.StatusNoContent, http.StatusOK, http.StatusNotFound)
}

// do runs one request with bounded exponential backoff on transient
// failures. A 404 on a fetch maps to model.ErrNotFound so callers can use
// errors.Is without knowing the transport.
func (s *HTTPStore) do(ctx context.Context, op string, send func() (*resty.Response, error), okStatuses ...int) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 5 * time.Second

	attempt := func() error {
		resp, err := send()
		if err != nil {
			return NewNetworkError(op, err)
		}
		code := resp.StatusCode()
		for _, ok := range okStatuses {
			if code == ok {
				return nil
			}
		}
		if code == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%s: %w", op, model.ErrNotFound))
		}
		cerr := ClassifyHTTPError(code, resp.String(), fmt.Errorf("%s failed", op))
		if cerr.Category == Irrecoverable {
			return backoff.Permanent(cerr)
		}
		return cerr
	}

	err := backoff.Retry(attempt, backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(s.maxAttempts-1)), ctx))
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Msg("remote call failed")
		return err
	}
	return nil
}

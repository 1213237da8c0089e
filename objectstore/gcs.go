package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSClient implements Client on a Google Cloud Storage bucket.
type GCSClient struct {
	client *storage.Client
	bucket string
}

var _ Client = (*GCSClient)(nil)

// NewGCS creates a GCSClient for bucket. opts are passed through to the
// underlying GCS client, allowing credential injection.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSClient, error) {
	if bucket == "" {
		return nil, fmt.Errorf("objectstore: gcs bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: failed to create GCS client: %w", err)
	}
	return &GCSClient{client: client, bucket: bucket}, nil
}

// Get implements Client.
func (c *GCSClient) Get(ctx context.Context, key string) (*Object, error) {
	r, err := c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("get", key, err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("objectstore: gcs get %q: read body: %w", key, err)
	}
	return &Object{
		Body:        body,
		ContentType: r.Attrs.ContentType,
		ETag:        generationTag(r.Attrs.Generation),
	}, nil
}

// Put implements Client.
func (c *GCSClient) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", mapGCSError("put", key, err)
	}
	if err := w.Close(); err != nil {
		return "", mapGCSError("put", key, err)
	}
	return generationTag(w.Attrs().Generation), nil
}

// Stat implements Client.
func (c *GCSClient) Stat(ctx context.Context, key string) (string, error) {
	attrs, err := c.client.Bucket(c.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return "", mapGCSError("attrs", key, err)
	}
	return generationTag(attrs.Generation), nil
}

// URL implements Client.
func (c *GCSClient) URL(key string) string {
	return "https://storage.googleapis.com/" + c.bucket + "/" + escapeKey(key)
}

// Close releases the underlying GCS client.
func (c *GCSClient) Close() error {
	return c.client.Close()
}

// generationTag uses the object generation as revision tag: it changes on
// every overwrite and is reported by readers, writers and attrs alike.
func generationTag(gen int64) string {
	return strconv.FormatInt(gen, 10)
}

func mapGCSError(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("objectstore: gcs %s %q: %w: %w", op, key, ErrNotFound, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("objectstore: gcs %s %q: %w: %w", op, key, ErrNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("objectstore: gcs %s %q: %w: %w", op, key, ErrAccessDenied, err)
		}
	}
	return fmt.Errorf("objectstore: gcs %s %q: %w", op, key, err)
}

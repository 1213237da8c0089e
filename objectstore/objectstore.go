// Package objectstore is the thin client blogadmin uses to read and write
// objects in a single bucket. Implementations exist for Amazon S3 (and S3
// compatible servers) and Google Cloud Storage.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("objectstore: object not found")

// ErrAccessDenied is returned when the provider rejects the configured
// credentials or the credentials lack permission on the bucket.
var ErrAccessDenied = errors.New("objectstore: access denied")

// Object is the content of a stored object together with its metadata.
type Object struct {
	Body        []byte
	ContentType string
	// ETag identifies the stored revision. Its format is provider specific
	// and must only be compared for equality.
	ETag string
}

// Client issues GET/PUT/HEAD requests against one bucket.
type Client interface {
	// Get fetches key. It returns ErrNotFound when the object is absent.
	Get(ctx context.Context, key string) (*Object, error)
	// Put overwrites key with body and returns the new revision's ETag.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	// Stat returns the ETag of key without fetching it.
	Stat(ctx context.Context, key string) (string, error)
	// URL returns the public URL of key.
	URL(key string) string
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied reports whether err is a credential or permission failure.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

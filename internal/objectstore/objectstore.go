// Package objectstore abstracts the durable object store behind a
// small interface so the DEM store, chunk writer, and tests share one
// access path. The production implementation is S3.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound reports a key with no object behind it.
var ErrNotFound = errors.New("objectstore: object not found")

// ObjectInfo describes a stored object without its body.
type ObjectInfo struct {
	Key  string
	ETag string
	Size int64
}

// PutOptions carry optional headers for an upload.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// Client is the object-store surface the pipeline needs.
type Client interface {
	// Put uploads body under key, overwriting any existing object,
	// and returns the store's integrity tag.
	Put(ctx context.Context, key string, body []byte, opts PutOptions) (etag string, err error)
	// Get returns the full object body, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Head returns object metadata, or ErrNotFound.
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	// List returns the keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

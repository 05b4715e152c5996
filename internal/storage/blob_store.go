package storage

import (
	"context"
	"io"
)

// BlobStore is the subset of an object store the temporary uploader needs.
// An implementation is bound to a single container.
type BlobStore interface {
	// EnsureContainer creates the container with public blob access if it
	// does not exist yet.
	EnsureContainer(ctx context.Context) error
	Put(ctx context.Context, name string, body io.Reader, contentType string) error
	Properties(ctx context.Context, name string) (*BlobProperties, error)
	SetMetadata(ctx context.Context, name string, metadata map[string]string) error
	SetHTTPHeaders(ctx context.Context, name string, headers BlobHTTPHeaders) error
	Delete(ctx context.Context, name string) error
	// URL returns the address the vision service can read the blob from.
	URL(name string) string
}

// BlobProperties is what the uploader reads back after a write
type BlobProperties struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// BlobHTTPHeaders are the standard headers served with a blob
type BlobHTTPHeaders struct {
	ContentType  string
	CacheControl string
}

// Package objstore abstracts the blob store used for media attachments.
// The production implementation targets any S3-compatible backend (MinIO in
// development).
package objstore

import (
	"context"
	"io"
)

// Store is the minimal blob-store surface the upload workflow needs.
type Store interface {
	// Put writes the blob at key. The write is create-only: a key that
	// already exists is an error, never an overwrite.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// Remove deletes the given keys. Missing keys are not an error.
	Remove(ctx context.Context, keys []string) error

	// PublicURL derives the public retrieval URL for a key. Pure, no I/O.
	PublicURL(key string) string
}

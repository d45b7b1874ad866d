// Package storage defines the blob store abstraction that holds unit content
// payloads. It keeps the content renderer independent of the backing
// implementation (in-memory, local filesystem, or Google Cloud Storage).
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject when no object exists at a path.
var ErrObjectNotFound = errors.New("object not found")

// Object is a stored payload together with its media type.
type Object struct {
	ContentType string
	Data        []byte
}

// BlobStore saves and loads opaque objects by path.
type BlobStore interface {
	// PutObject stores data under path and returns a backend-specific URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// GetObject loads the object at path or returns ErrObjectNotFound.
	GetObject(ctx context.Context, path string) (Object, error)
}

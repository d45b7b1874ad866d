// Package memory stores blob content and the progress ledger in-memory for
// development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/concept-modules/internal/storage"
)

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]storage.Object
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		objects: make(map[string]storage.Object),
	}
}

// PutObject persists a copy of the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = storage.Object{
		ContentType: contentType,
		Data:        append([]byte(nil), byteData...),
	}
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns a copy of the stored object.
func (s *BlobStore) GetObject(_ context.Context, path string) (storage.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	if !ok {
		return storage.Object{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
	}
	return storage.Object{
		ContentType: obj.ContentType,
		Data:        append([]byte(nil), obj.Data...),
	}, nil
}

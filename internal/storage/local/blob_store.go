// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/concept-modules/internal/storage"
)

// contentTypeSuffix names the sidecar file that records an object's media type.
const contentTypeSuffix = ".content-type"

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore reads and writes objects under a base directory.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &BlobStore{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// PutObject writes data to a file and returns a file:// URI. The content type
// is kept in a sidecar file next to the object.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.WriteFile(fullPath+contentTypeSuffix, []byte(contentType), 0o600); err != nil {
		return "", fmt.Errorf("failed to write content type: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// GetObject reads an object written by PutObject.
func (s *BlobStore) GetObject(_ context.Context, path string) (storage.Object, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return storage.Object{}, err
	}
	data, err := os.ReadFile(fullPath) //nolint:gosec // path confined to baseDir by resolve
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Object{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
		}
		return storage.Object{}, fmt.Errorf("failed to read file: %w", err)
	}
	obj := storage.Object{Data: data}
	ct, err := os.ReadFile(fullPath + contentTypeSuffix) //nolint:gosec // same as above
	if err == nil {
		obj.ContentType = string(ct)
	}
	return obj, nil
}

func (s *BlobStore) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, path))
	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}

// Package content resolves unit content by (module id, unit id). Unit bodies
// are opaque payloads stored in a storage.BlobStore; the lesson controller
// never sees them.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
	"github.com/JakeFAU/concept-modules/internal/hash/sha256"
	"github.com/JakeFAU/concept-modules/internal/storage"
)

// SingleUnitID is the unit id used for single-content modules.
const SingleUnitID = curriculum.SingleUnitID

// DefaultPrefix is the object path prefix used when none is configured.
const DefaultPrefix = "units"

// ErrNotFound is returned when a unit has no content or is not in the catalog.
var ErrNotFound = errors.New("content not found")

// Payload is a rendered unit body.
type Payload struct {
	ModuleID    string
	UnitID      string
	ContentType string
	Body        []byte
	// ETag is a strong validator derived from Body.
	ETag string
}

// Hasher digests payload bodies into ETags.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Renderer loads unit payloads from a BlobStore.
type Renderer struct {
	store   storage.BlobStore
	catalog *curriculum.Catalog
	prefix  string
	hasher  Hasher
	logger  *zap.Logger
}

// NewRenderer builds a Renderer. When catalog is non-nil, lookups for
// modules or units it does not declare fail with ErrNotFound before touching
// the store.
func NewRenderer(store storage.BlobStore, catalog *curriculum.Catalog, prefix string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Renderer{
		store:   store,
		catalog: catalog,
		prefix:  prefix,
		hasher:  sha256.New(),
		logger:  logger.Named("content"),
	}
}

// ObjectPath returns the store path for a unit.
func ObjectPath(prefix, moduleID, unitID string) string {
	return path.Join(prefix, moduleID, unitID)
}

// Render loads the payload for one unit.
func (r *Renderer) Render(ctx context.Context, moduleID, unitID string) (Payload, error) {
	if err := r.known(moduleID, unitID); err != nil {
		return Payload{}, err
	}
	obj, err := r.store.GetObject(ctx, ObjectPath(r.prefix, moduleID, unitID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Payload{}, fmt.Errorf("%w: %s/%s", ErrNotFound, moduleID, unitID)
		}
		return Payload{}, fmt.Errorf("load content %s/%s: %w", moduleID, unitID, err)
	}
	p := Payload{
		ModuleID:    moduleID,
		UnitID:      unitID,
		ContentType: obj.ContentType,
		Body:        obj.Data,
	}
	if sum, err := r.hasher.Hash(obj.Data); err == nil {
		p.ETag = `"` + sum + `"`
	} else {
		r.logger.Warn("hash content failed", zap.String("module_id", moduleID), zap.Error(err))
	}
	return p, nil
}

func (r *Renderer) known(moduleID, unitID string) error {
	if moduleID == "" || unitID == "" {
		return fmt.Errorf("%w: module and unit ids are required", ErrNotFound)
	}
	if r.catalog == nil {
		return nil
	}
	m, err := r.catalog.Module(moduleID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if m.SingleContent() {
		if unitID != SingleUnitID {
			return fmt.Errorf("%w: module %q has single content", ErrNotFound, moduleID)
		}
		return nil
	}
	if !m.Units.Contains(unitID) {
		return fmt.Errorf("%w: module %q has no unit %q", ErrNotFound, moduleID, unitID)
	}
	return nil
}

// Seed writes catalog-inline bodies into the store and returns how many
// objects were written.
func Seed(
	ctx context.Context,
	store storage.BlobStore,
	prefix string,
	items []curriculum.InlineContent,
	logger *zap.Logger,
) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	written := 0
	for _, item := range items {
		p := ObjectPath(prefix, item.ModuleID, item.UnitID)
		uri, err := store.PutObject(ctx, p, item.ContentType, bytes.NewReader(item.Body))
		if err != nil {
			return written, fmt.Errorf("seed %s: %w", p, err)
		}
		logger.Debug("seeded unit content",
			zap.String("module_id", item.ModuleID),
			zap.String("unit_id", item.UnitID),
			zap.String("uri", uri),
		)
		written++
	}
	return written, nil
}

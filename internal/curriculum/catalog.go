package curriculum

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SingleUnitID names the implicit unit of a single-content module.
const SingleUnitID = "content"

const defaultContentType = "text/markdown; charset=utf-8"

var (
	// ErrUnknownModule is returned when a module id is not in the catalog.
	ErrUnknownModule = errors.New("unknown module")
	// ErrInvalidCatalog wraps structural catalog problems.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Module is an ordered collection of units presented as one learning flow.
// Units is nil for single-content modules, which render one opaque blob
// without a tabbed flow.
type Module struct {
	ID          string
	Title       string
	Description string
	// Next is the id of the module offered once this one is finished. Empty
	// for the last module in the reading order.
	Next  string
	Units *Registry
}

// SingleContent reports whether the module is rendered without a registry.
func (m Module) SingleContent() bool {
	return m.Units == nil
}

// InlineContent is a content body declared directly in a catalog file.
type InlineContent struct {
	ModuleID    string
	UnitID      string
	ContentType string
	Body        []byte
}

// Catalog is the validated set of modules, kept in file order.
type Catalog struct {
	modules []Module
	byID    map[string]int
	inline  []InlineContent
}

type catalogFile struct {
	Modules []moduleFile `yaml:"modules"`
}

type moduleFile struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Next        string     `yaml:"next"`
	ContentType string     `yaml:"content_type"`
	Content     string     `yaml:"content"`
	Units       []unitFile `yaml:"units"`
}

type unitFile struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	ContentType string `yaml:"content_type"`
	Content     string `yaml:"content"`
}

// LoadFile reads and validates a YAML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle
	return Load(f)
}

// Load decodes and validates a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	var raw catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return build(raw)
}

// NewCatalog validates modules built in code. Inline content is not
// available through this constructor.
func NewCatalog(modules ...Module) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(modules))}
	for _, m := range modules {
		if err := c.add(m); err != nil {
			return nil, err
		}
	}
	if err := c.checkLinks(); err != nil {
		return nil, err
	}
	return c, nil
}

func build(raw catalogFile) (*Catalog, error) {
	if len(raw.Modules) == 0 {
		return nil, fmt.Errorf("%w: no modules declared", ErrInvalidCatalog)
	}
	c := &Catalog{byID: make(map[string]int, len(raw.Modules))}
	for _, mf := range raw.Modules {
		m, inline, err := mf.toModule()
		if err != nil {
			return nil, err
		}
		if err := c.add(m); err != nil {
			return nil, err
		}
		c.inline = append(c.inline, inline...)
	}
	if err := c.checkLinks(); err != nil {
		return nil, err
	}
	return c, nil
}

func (mf moduleFile) toModule() (Module, []InlineContent, error) {
	m := Module{
		ID:          strings.TrimSpace(mf.ID),
		Title:       mf.Title,
		Description: mf.Description,
		Next:        strings.TrimSpace(mf.Next),
	}
	hasUnits := len(mf.Units) > 0
	hasContent := strings.TrimSpace(mf.Content) != ""
	switch {
	case hasUnits && hasContent:
		return Module{}, nil, fmt.Errorf("%w: module %q declares both units and content", ErrInvalidCatalog, m.ID)
	case !hasUnits && !hasContent:
		return Module{}, nil, fmt.Errorf("%w: module %q declares neither units nor content", ErrInvalidCatalog, m.ID)
	case hasContent:
		inline := []InlineContent{{
			ModuleID:    m.ID,
			UnitID:      SingleUnitID,
			ContentType: contentTypeOrDefault(mf.ContentType),
			Body:        []byte(mf.Content),
		}}
		return m, inline, nil
	}

	units := make([]Unit, 0, len(mf.Units))
	var inline []InlineContent
	for _, uf := range mf.Units {
		cat, err := ParseCategory(uf.Category)
		if err != nil {
			return Module{}, nil, fmt.Errorf("module %q unit %q: %w", m.ID, uf.ID, err)
		}
		u := Unit{
			ID:          strings.TrimSpace(uf.ID),
			Title:       uf.Title,
			Description: uf.Description,
			Category:    cat,
		}
		units = append(units, u)
		if uf.Content != "" {
			inline = append(inline, InlineContent{
				ModuleID:    m.ID,
				UnitID:      u.ID,
				ContentType: contentTypeOrDefault(uf.ContentType),
				Body:        []byte(uf.Content),
			})
		}
	}
	reg, err := NewRegistry(units...)
	if err != nil {
		return Module{}, nil, fmt.Errorf("module %q: %w", m.ID, err)
	}
	m.Units = reg
	return m, inline, nil
}

func (c *Catalog) add(m Module) error {
	if m.ID == "" {
		return fmt.Errorf("%w: module id is required", ErrInvalidCatalog)
	}
	if _, dup := c.byID[m.ID]; dup {
		return fmt.Errorf("%w: duplicate module id %q", ErrInvalidCatalog, m.ID)
	}
	c.byID[m.ID] = len(c.modules)
	c.modules = append(c.modules, m)
	return nil
}

func (c *Catalog) checkLinks() error {
	for _, m := range c.modules {
		if m.Next == "" {
			continue
		}
		if m.Next == m.ID {
			return fmt.Errorf("%w: module %q links to itself", ErrInvalidCatalog, m.ID)
		}
		if _, ok := c.byID[m.Next]; !ok {
			return fmt.Errorf("%w: module %q links to unknown module %q", ErrInvalidCatalog, m.ID, m.Next)
		}
	}
	return nil
}

// Module returns the module with the given id.
func (c *Catalog) Module(id string) (Module, error) {
	i, ok := c.byID[id]
	if !ok {
		return Module{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
	}
	return c.modules[i], nil
}

// Modules returns all modules in file order.
func (c *Catalog) Modules() []Module {
	return append([]Module(nil), c.modules...)
}

// Len returns the number of modules.
func (c *Catalog) Len() int {
	return len(c.modules)
}

// InlineContent returns the content bodies declared in the catalog file.
func (c *Catalog) InlineContent() []InlineContent {
	return append([]InlineContent(nil), c.inline...)
}

func contentTypeOrDefault(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return defaultContentType
	}
	return ct
}

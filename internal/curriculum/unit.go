package curriculum

import (
	"errors"
	"fmt"
	"strings"
)

// Category groups units for display styling only. Control flow never branches
// on it.
type Category string

// Supported unit categories.
const (
	CategoryFundamentals   Category = "fundamentals"
	CategoryArchitecture   Category = "architecture"
	CategoryImplementation Category = "implementation"
	CategoryAdvanced       Category = "advanced"
)

// ErrInvalidCategory is returned when a category string is not one of the
// supported values.
var ErrInvalidCategory = errors.New("invalid unit category")

// Valid reports whether c is one of the supported categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFundamentals, CategoryArchitecture, CategoryImplementation, CategoryAdvanced:
		return true
	default:
		return false
	}
}

// ParseCategory normalizes s and converts it to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Unit is one addressable piece of content within a module (a "tab" in the
// UI). The unit's payload is not carried here: renderers resolve it by module
// and unit id so controllers never depend on what the content is.
type Unit struct {
	// ID is unique within a single Registry.
	ID string `json:"id"`
	// Title is display text.
	Title string `json:"title"`
	// Description is display text.
	Description string `json:"description,omitempty"`
	// Category selects display styling.
	Category Category `json:"category"`
}

// Validate checks the unit carries an id and a supported category.
func (u Unit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrEmptyUnitID
	}
	if !u.Category.Valid() {
		return fmt.Errorf("unit %q: %w: %q", u.ID, ErrInvalidCategory, u.Category)
	}
	return nil
}

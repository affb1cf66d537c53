package domain

import (
	"fmt"
	"time"
)

// TeaType classifies a tea by processing style. The set of values is
// fixed and mirrored by a CHECK constraint on the remote store.
type TeaType string

const (
	TypeGreen  TeaType = "green"
	TypeBlack  TeaType = "black"
	TypeOolong TeaType = "oolong"
	TypeWhite  TeaType = "white"
	TypePuerh  TeaType = "puerh"
	TypeYellow TeaType = "yellow"
)

// Valid reports whether t is one of the known tea types.
func (t TeaType) Valid() bool {
	switch t {
	case TypeGreen, TypeBlack, TypeOolong, TypeWhite, TypePuerh, TypeYellow:
		return true
	}
	return false
}

// Tea is a user-owned catalogue record. Starter records come from the
// built-in catalogue and share an id namespace with user records; an
// edited starter is persisted as the user's own copy with Starter and
// Edited both set.
type Tea struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ChineseName string   `json:"chineseName"`
	Type        TeaType  `json:"type"`
	Province    string   `json:"province"`
	Region      string   `json:"region"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Elevation   *float64 `json:"elevation,omitempty"`

	Flavor      string `json:"flavor"`
	Description string `json:"description"`
	Notes       string `json:"notes"`

	Starter bool `json:"starter"`
	Edited  bool `json:"edited"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields that must hold before a tea is persisted.
// Violations are reported as ErrValidation so callers can map them to a
// user-facing failure without inspecting message text.
func (t Tea) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown tea type %q", ErrValidation, t.Type)
	}
	if t.Lat < -90 || t.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrValidation, t.Lat)
	}
	if t.Lng < -180 || t.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrValidation, t.Lng)
	}
	return nil
}

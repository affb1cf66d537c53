// Package catalog holds the built-in starter catalogue: an immutable,
// ordered set of tea records that every user starts with. Starters are
// never persisted per-user unless the user edits them; hiding one is
// recorded as a deletion marker, not a delete.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/avogel/teamap/internal/domain"
)

//go:embed starters.json
var startersJSON []byte

type Catalog struct {
	starters []domain.Tea
	ids      map[string]bool
}

// Load parses the embedded starter catalogue. Catalogue order is
// preserved; ids must be unique.
func Load() (*Catalog, error) {
	var starters []domain.Tea
	if err := json.Unmarshal(startersJSON, &starters); err != nil {
		return nil, fmt.Errorf("failed to parse starter catalogue: %w", err)
	}

	ids := make(map[string]bool, len(starters))
	for i := range starters {
		s := &starters[i]
		if s.ID == "" {
			return nil, fmt.Errorf("starter %d has no id", i)
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("duplicate starter id %q", s.ID)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("starter %q: %w", s.ID, err)
		}
		s.Starter = true
		ids[s.ID] = true
	}

	return &Catalog{starters: starters, ids: ids}, nil
}

// Starters returns the catalogue in order. The returned slice is a copy;
// callers may not mutate the catalogue.
func (c *Catalog) Starters() []domain.Tea {
	out := make([]domain.Tea, len(c.starters))
	copy(out, c.starters)
	return out
}

// IsStarter reports whether id belongs to the built-in catalogue.
// Used at creation time to keep user-created ids out of the starter
// namespace, and by the coordinator to route deletes to hide.
func (c *Catalog) IsStarter(id string) bool {
	return c.ids[id]
}

// Len returns the number of starters in the catalogue.
func (c *Catalog) Len() int {
	return len(c.starters)
}

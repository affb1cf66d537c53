// Package suggest generates tasting-note suggestions for a tea using
// the Anthropic Messages API. It is an optional convenience: the
// feature is enabled only when an API key is configured, and nothing
// in the save or sync path depends on it.
package suggest

import (
	"context"

	"github.com/avogel/teamap/internal/domain"
)

type Suggester interface {
	// TastingNotes returns a short free-text description of the flavor
	// profile a drinker can expect from the given tea.
	TastingNotes(ctx context.Context, tea domain.Tea) (string, error)
}

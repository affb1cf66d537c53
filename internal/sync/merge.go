// Package sync computes the user's effective tea list from three
// sources (built-in starters, saved records, starter deletion markers)
// and keeps the local cache and remote store convergent in the face of
// partial failures.
package sync

import "github.com/avogel/teamap/internal/domain"

// Merge computes the effective tea list. Pure and deterministic: the
// same inputs always produce the same output, in the same order.
//
// Rules:
//   - a starter shadowed by a saved record with the same id is dropped
//     in favour of the saved record (starter edits win outright)
//   - a starter with a deletion marker is dropped, unless a saved
//     record carries its id: the marker suppresses the built-in
//     default, not a record the user explicitly kept
//   - saved records always appear, after the surviving starters
//
// Ordering: surviving starters in catalogue order, then saved records
// in their storage order.
func Merge(starters, saved []domain.Tea, deleted map[string]bool) []domain.Tea {
	savedIDs := make(map[string]bool, len(saved))
	for _, t := range saved {
		savedIDs[t.ID] = true
	}

	out := make([]domain.Tea, 0, len(starters)+len(saved))
	for _, s := range starters {
		if deleted[s.ID] || savedIDs[s.ID] {
			continue
		}
		out = append(out, s)
	}
	return append(out, saved...)
}

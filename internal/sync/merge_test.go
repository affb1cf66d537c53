package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avogel/teamap/internal/domain"
)

func tea(id string, typ domain.TeaType) domain.Tea {
	return domain.Tea{ID: id, Name: "Tea " + id, Type: typ, Lat: 30, Lng: 120}
}

func ids(teas []domain.Tea) []string {
	out := make([]string, len(teas))
	for i, t := range teas {
		out[i] = t.ID
	}
	return out
}

func TestMergeStartersOnly(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen), tea("s2", domain.TypeBlack)}

	got := Merge(starters, nil, nil)
	assert.Equal(t, []string{"s1", "s2"}, ids(got))
}

func TestMergeDeletionHidesStarter(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen)}

	got := Merge(starters, nil, map[string]bool{"s1": true})
	assert.Empty(t, got)
}

func TestMergeSavedOverridesStarter(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen), tea("s2", domain.TypeBlack)}
	override := tea("s1", domain.TypeGreen)
	override.Name = "My Edited Longjing"
	override.Starter = true
	override.Edited = true

	got := Merge(starters, []domain.Tea{override}, nil)
	require.Equal(t, []string{"s2", "s1"}, ids(got))
	assert.Equal(t, "My Edited Longjing", got[1].Name)
	assert.True(t, got[1].Edited)
}

func TestMergeSavedWinsOverDeletion(t *testing.T) {
	// Hiding a starter suppresses the catalogue entry only; a saved
	// record with the same id still appears.
	starters := []domain.Tea{tea("s1", domain.TypeGreen)}
	saved := []domain.Tea{tea("s1", domain.TypeGreen)}

	got := Merge(starters, saved, map[string]bool{"s1": true})
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestMergeUserRecordsAlwaysAppear(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen)}
	saved := []domain.Tea{tea("u1", domain.TypeOolong), tea("u2", domain.TypeWhite)}

	got := Merge(starters, saved, map[string]bool{"s1": true})
	assert.Equal(t, []string{"u1", "u2"}, ids(got))
}

func TestMergeOrdering(t *testing.T) {
	starters := []domain.Tea{
		tea("s1", domain.TypeGreen), tea("s2", domain.TypeBlack), tea("s3", domain.TypeWhite),
	}
	saved := []domain.Tea{tea("u2", domain.TypeOolong), tea("u1", domain.TypePuerh)}

	got := Merge(starters, saved, nil)
	// Catalogue order first, then storage order - not alphabetical.
	assert.Equal(t, []string{"s1", "s2", "s3", "u2", "u1"}, ids(got))
}

func TestMergeSizeProperty(t *testing.T) {
	// |merge(S,V,D)| = |S \ D \ ids(V)| + |V|
	starters := []domain.Tea{
		tea("s1", domain.TypeGreen), tea("s2", domain.TypeBlack),
		tea("s3", domain.TypeWhite), tea("s4", domain.TypeYellow),
	}
	saved := []domain.Tea{tea("s2", domain.TypeBlack), tea("u1", domain.TypeOolong)}
	deleted := map[string]bool{"s1": true, "s3": true}

	got := Merge(starters, saved, deleted)
	// surviving starters: s4; saved: s2, u1
	assert.Len(t, got, 1+len(saved))
	assert.Equal(t, []string{"s4", "s2", "u1"}, ids(got))
}

func TestMergeDeterministic(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen), tea("s2", domain.TypeBlack)}
	saved := []domain.Tea{tea("u1", domain.TypeOolong), tea("s2", domain.TypeBlack)}
	deleted := map[string]bool{"s1": true}

	first := Merge(starters, saved, deleted)
	second := Merge(starters, saved, deleted)
	assert.Equal(t, first, second)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen)}
	saved := []domain.Tea{tea("u1", domain.TypeOolong)}

	_ = Merge(starters, saved, nil)
	assert.Equal(t, "s1", starters[0].ID)
	assert.Equal(t, "u1", saved[0].ID)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil, nil))
	got := Merge(nil, []domain.Tea{tea("u1", domain.TypeOolong)}, nil)
	assert.Equal(t, []string{"u1"}, ids(got))
}

// Walkthrough from the product notes: hide the only starter, then
// create a fresh record.
func TestMergeHideThenCreate(t *testing.T) {
	starters := []domain.Tea{tea("s1", domain.TypeGreen)}

	step1 := Merge(starters, nil, nil)
	assert.Equal(t, []string{"s1"}, ids(step1))

	step2 := Merge(starters, nil, map[string]bool{"s1": true})
	assert.Empty(t, step2)

	step3 := Merge(starters, []domain.Tea{tea("u1", domain.TypeOolong)}, map[string]bool{"s1": true})
	assert.Equal(t, []string{"u1"}, ids(step3))
}

package sync

import (
	"context"

	"github.com/avogel/teamap/internal/domain"
	"github.com/avogel/teamap/internal/remote"
)

// fakeRemote is an in-memory stand-in for the remote store with
// switchable failure modes. Not safe for concurrent use; the
// coordinator serializes access anyway.
type fakeRemote struct {
	teas      map[string]domain.Tea
	order     []string
	deletions map[string]bool

	// failTransient makes every call fail as if the network were down.
	failTransient bool
	// rejectIDs makes upserts of these ids fail as rejected;
	// rejectHides does the same for deletion markers.
	rejectIDs   map[string]bool
	rejectHides map[string]bool

	calls map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		teas:        map[string]domain.Tea{},
		deletions:   map[string]bool{},
		rejectIDs:   map[string]bool{},
		rejectHides: map[string]bool{},
		calls:       map[string]int{},
	}
}

func (f *fakeRemote) transientErr(op string) error {
	return &remote.Error{Kind: remote.Transient, Op: op, Detail: "connection refused"}
}

func (f *fakeRemote) ListTeas(context.Context) ([]domain.Tea, error) {
	f.calls["ListTeas"]++
	if f.failTransient {
		return nil, f.transientErr("list teas")
	}
	out := make([]domain.Tea, 0, len(f.teas))
	for _, id := range f.order {
		if tea, ok := f.teas[id]; ok {
			out = append(out, tea)
		}
	}
	return out, nil
}

func (f *fakeRemote) ListDeletions(context.Context) (map[string]bool, error) {
	f.calls["ListDeletions"]++
	if f.failTransient {
		return nil, f.transientErr("list deletions")
	}
	out := make(map[string]bool, len(f.deletions))
	for id := range f.deletions {
		out[id] = true
	}
	return out, nil
}

func (f *fakeRemote) UpsertTea(_ context.Context, tea domain.Tea) error {
	f.calls["UpsertTea"]++
	if f.failTransient {
		return f.transientErr("upsert tea")
	}
	if f.rejectIDs[tea.ID] {
		return &remote.Error{Kind: remote.Rejected, Status: 400, Op: "upsert tea", Detail: "constraint violation"}
	}
	if _, exists := f.teas[tea.ID]; !exists {
		f.order = append(f.order, tea.ID)
	}
	f.teas[tea.ID] = tea
	return nil
}

func (f *fakeRemote) DeleteTea(_ context.Context, id string) error {
	f.calls["DeleteTea"]++
	if f.failTransient {
		return f.transientErr("delete tea")
	}
	delete(f.teas, id)
	return nil
}

func (f *fakeRemote) MarkDeleted(_ context.Context, starterID string) error {
	f.calls["MarkDeleted"]++
	if f.failTransient {
		return f.transientErr("mark deleted")
	}
	if f.rejectHides[starterID] {
		return &remote.Error{Kind: remote.Rejected, Status: 409, Op: "mark deleted", Detail: "constraint violation"}
	}
	f.deletions[starterID] = true
	return nil
}

func (f *fakeRemote) UnmarkDeleted(_ context.Context, starterID string) error {
	f.calls["UnmarkDeleted"]++
	if f.failTransient {
		return f.transientErr("unmark deleted")
	}
	delete(f.deletions, starterID)
	return nil
}

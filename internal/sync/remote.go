package sync

import (
	"context"

	"github.com/avogel/teamap/internal/domain"
)

// RemoteClient is the subset of remote.Client the sync layer requires.
// Defined on the consumer side so tests can inject a fake store.
// Implementations must classify every failure as transient or rejected
// (see the remote package); upserts and deletes must be idempotent.
type RemoteClient interface {
	ListTeas(ctx context.Context) ([]domain.Tea, error)
	ListDeletions(ctx context.Context) (map[string]bool, error)
	UpsertTea(ctx context.Context, tea domain.Tea) error
	DeleteTea(ctx context.Context, id string) error
	MarkDeleted(ctx context.Context, starterID string) error
	UnmarkDeleted(ctx context.Context, starterID string) error
}

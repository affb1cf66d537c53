package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avogel/teamap/internal/cache"
	"github.com/avogel/teamap/internal/remote"
)

// MigrationRunner uploads data collected on this device before the
// user first authenticated into the remote store. It runs once per
// device: completion is recorded as the migrated flag in the cache, so
// a second device will run its own migration once.
//
// The run is safe to repeat. Remote upserts are idempotent, so a run
// interrupted by a transient failure simply leaves the flag unset and
// redoes its work on the next session start.
type MigrationRunner struct {
	cache  *cache.Store
	remote RemoteClient
	logger *slog.Logger
}

func NewMigrationRunner(cacheStore *cache.Store, remoteClient RemoteClient, logger *slog.Logger) *MigrationRunner {
	return &MigrationRunner{cache: cacheStore, remote: remoteClient, logger: logger}
}

// Run performs the migration if it has not completed yet.
//
// A transient remote failure aborts the run with an error and leaves
// the flag unset for retry. A rejected failure on an individual record
// skips that record: retrying cannot fix it, and one bad record must
// not hold the whole device hostage.
func (m *MigrationRunner) Run(ctx context.Context) error {
	migrated, err := m.cache.Migrated(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration state: %w", err)
	}
	if migrated {
		return nil
	}

	state, err := m.cache.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local data for migration: %w", err)
	}

	if len(state.Teas) == 0 && len(state.Deletions) == 0 {
		// Nothing collected before authentication; mark done so the
		// check is skipped on future session starts.
		if err := m.cache.SetMigrated(ctx, true); err != nil {
			return fmt.Errorf("failed to record migration state: %w", err)
		}
		m.logger.Info("migration complete", "teas", 0, "deletions", 0)
		return nil
	}

	var uploaded, skipped int
	for _, tea := range state.Teas {
		if err := m.remote.UpsertTea(ctx, tea); err != nil {
			if remote.IsRejected(err) {
				m.logger.Warn("migration skipping rejected tea", "id", tea.ID, "error", err)
				skipped++
				continue
			}
			return fmt.Errorf("migration interrupted uploading tea %s: %w", tea.ID, err)
		}
		uploaded++
	}

	for id := range state.Deletions {
		if err := m.remote.MarkDeleted(ctx, id); err != nil {
			if remote.IsRejected(err) {
				m.logger.Warn("migration skipping rejected deletion marker", "starter_id", id, "error", err)
				skipped++
				continue
			}
			return fmt.Errorf("migration interrupted uploading deletion marker %s: %w", id, err)
		}
		uploaded++
	}

	if err := m.cache.SetMigrated(ctx, true); err != nil {
		return fmt.Errorf("failed to record migration state: %w", err)
	}

	m.logger.Info("migration complete",
		"teas", len(state.Teas), "deletions", len(state.Deletions),
		"uploaded", uploaded, "skipped", skipped)
	return nil
}

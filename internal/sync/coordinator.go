package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avogel/teamap/internal/cache"
	"github.com/avogel/teamap/internal/catalog"
	"github.com/avogel/teamap/internal/domain"
	"github.com/avogel/teamap/internal/remote"
)

// ErrNotLoaded is returned by mutations issued before the first
// LoadAll has completed. Merges must always run against a consistent
// snapshot, so the session loads before it writes.
var ErrNotLoaded = errors.New("session not loaded")

// Snapshot is the result of a load: the merged effective tea list and
// whether it came from the local cache because the remote store was
// unreachable.
type Snapshot struct {
	Teas     []domain.Tea `json:"teas"`
	Degraded bool         `json:"degraded"`
}

// Coordinator is the single point of truth for "remote-first, cache as
// fallback". Every read and mutation goes through it: writes go to the
// remote store first and are mirrored into the cache on success; on
// transient remote failure the write lands in the cache marked pending
// and is replayed after the next successful remote contact.
//
// A Coordinator is session-scoped. Mutations serialize behind one
// mutex so a second mutation queues behind the first rather than
// interleaving partial writes.
type Coordinator struct {
	cache    *cache.Store
	remote   RemoteClient
	catalog  *catalog.Catalog
	migrator *MigrationRunner
	logger   *slog.Logger

	mu       sync.Mutex
	loaded   bool
	degraded bool

	now func() time.Time
}

func NewCoordinator(
	cacheStore *cache.Store,
	remoteClient RemoteClient,
	cat *catalog.Catalog,
	migrator *MigrationRunner,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		cache:    cacheStore,
		remote:   remoteClient,
		catalog:  cat,
		migrator: migrator,
		logger:   logger,
		now:      time.Now,
	}
}

// Degraded reports whether the session is currently working offline
// against the cache.
func (c *Coordinator) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// LoadAll runs the one-time migration if needed, flushes any pending
// writes, and loads the user's data from the remote store. On
// transient remote failure it falls back to the last cached snapshot
// and flags the session degraded; the call itself still succeeds.
func (c *Coordinator) LoadAll(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	starters := c.catalog.Starters()

	if err := c.migrator.Run(ctx); err != nil {
		if remote.IsTransient(err) {
			c.logger.Warn("migration deferred, remote unavailable", "error", err)
			return c.degradedSnapshotLocked(ctx, starters), nil
		}
		// Local cache trouble; the session can still run remote-only.
		c.logger.Error("migration failed", "error", err)
	}

	if err := c.flushPendingLocked(ctx); err != nil {
		c.logger.Warn("pending flush failed, falling back to cache", "error", err)
		return c.degradedSnapshotLocked(ctx, starters), nil
	}

	teas, err := c.remote.ListTeas(ctx)
	if err == nil {
		var deletions map[string]bool
		deletions, err = c.remote.ListDeletions(ctx)
		if err == nil {
			if cerr := c.cache.ReplaceAll(ctx, teas, deletions); cerr != nil {
				c.logger.Error("failed to mirror remote snapshot to cache", "error", cerr)
			}
			c.loaded = true
			c.degraded = false
			return &Snapshot{Teas: Merge(starters, teas, deletions)}, nil
		}
	}

	if remote.IsTransient(err) {
		c.logger.Warn("remote unavailable, serving cached snapshot", "error", err)
		return c.degradedSnapshotLocked(ctx, starters), nil
	}
	return nil, err
}

func (c *Coordinator) degradedSnapshotLocked(ctx context.Context, starters []domain.Tea) *Snapshot {
	c.loaded = true
	c.degraded = true

	state, err := c.cache.Snapshot(ctx)
	if err != nil {
		c.logger.Error("cache read failed in degraded mode, serving starters only", "error", err)
		state = &cache.State{}
	}
	return &Snapshot{Teas: Merge(starters, state.Teas, state.Deletions), Degraded: true}
}

// SaveTea creates or updates a tea. A tea without an id is a new
// user record and gets a generated one, which keeps user ids out of
// the starter namespace. Saving under a starter id records the user's
// edited copy of that starter.
func (c *Coordinator) SaveTea(ctx context.Context, tea domain.Tea) (*domain.Tea, error) {
	if err := tea.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil, ErrNotLoaded
	}

	now := c.now().UTC()
	switch {
	case tea.ID == "":
		tea.ID = uuid.NewString()
		tea.Starter = false
		tea.Edited = false
		tea.CreatedAt = now
	case c.catalog.IsStarter(tea.ID):
		tea.Starter = true
		tea.Edited = true
		if prev := c.cachedTea(ctx, tea.ID); prev != nil {
			tea.CreatedAt = prev.CreatedAt
		} else {
			tea.CreatedAt = now
		}
	default:
		tea.Starter = false
		tea.Edited = false
		if prev := c.cachedTea(ctx, tea.ID); prev != nil {
			tea.CreatedAt = prev.CreatedAt
		} else if tea.CreatedAt.IsZero() {
			tea.CreatedAt = now
		}
	}
	tea.UpdatedAt = now

	if err := c.remote.UpsertTea(ctx, tea); err != nil {
		if !remote.IsTransient(err) {
			return nil, err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing tea locally", "id", tea.ID, "error", err)
		if cerr := c.cache.UpsertTea(ctx, tea, true); cerr != nil {
			c.logger.Error("failed to cache pending tea", "id", tea.ID, "error", cerr)
		}
		return &tea, nil
	}

	if cerr := c.cache.UpsertTea(ctx, tea, false); cerr != nil {
		c.logger.Error("failed to mirror tea to cache", "id", tea.ID, "error", cerr)
	}
	c.recoveredLocked(ctx)
	return &tea, nil
}

// DeleteTea removes a tea from the effective list. For a user record
// that is a physical delete; for a starter it removes any saved
// override and records a deletion marker (starters are suppressed,
// never destroyed).
func (c *Coordinator) DeleteTea(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrNotLoaded
	}

	if c.catalog.IsStarter(id) {
		return c.deleteStarterLocked(ctx, id)
	}

	if err := c.remote.DeleteTea(ctx, id); err != nil {
		if !remote.IsTransient(err) {
			return err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing delete locally", "id", id, "error", err)
		c.cacheDeleteTeaLocked(ctx, id, true)
		return nil
	}

	c.cacheDeleteTeaLocked(ctx, id, false)
	c.recoveredLocked(ctx)
	return nil
}

func (c *Coordinator) deleteStarterLocked(ctx context.Context, id string) error {
	// Remove the saved override first so a replayed run converges on
	// the same end state, then suppress the catalogue entry.
	if err := c.remote.DeleteTea(ctx, id); err != nil {
		if !remote.IsTransient(err) {
			return err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing starter hide locally", "id", id, "error", err)
		c.cacheDeleteTeaLocked(ctx, id, true)
		c.cacheMarkDeletedLocked(ctx, id, true)
		return nil
	}

	// The override is gone remotely; mirror that before attempting the
	// marker so a failed marker write cannot leave the cache claiming a
	// record the remote no longer has.
	c.cacheDeleteTeaLocked(ctx, id, false)

	if err := c.remote.MarkDeleted(ctx, id); err != nil {
		if !remote.IsTransient(err) {
			return err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing starter hide locally", "id", id, "error", err)
		c.cacheMarkDeletedLocked(ctx, id, true)
		return nil
	}

	c.cacheMarkDeletedLocked(ctx, id, false)
	c.recoveredLocked(ctx)
	return nil
}

// HideStarter suppresses a built-in starter from the effective list.
func (c *Coordinator) HideStarter(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrNotLoaded
	}
	if !c.catalog.IsStarter(id) {
		return fmt.Errorf("%w: %q is not a starter", domain.ErrNotFound, id)
	}

	if err := c.remote.MarkDeleted(ctx, id); err != nil {
		if !remote.IsTransient(err) {
			return err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing starter hide locally", "id", id, "error", err)
		c.cacheMarkDeletedLocked(ctx, id, true)
		return nil
	}

	c.cacheMarkDeletedLocked(ctx, id, false)
	c.recoveredLocked(ctx)
	return nil
}

// UnhideStarter removes the deletion marker for a starter, restoring
// the built-in record to the effective list.
func (c *Coordinator) UnhideStarter(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return ErrNotLoaded
	}
	if !c.catalog.IsStarter(id) {
		return fmt.Errorf("%w: %q is not a starter", domain.ErrNotFound, id)
	}

	if err := c.remote.UnmarkDeleted(ctx, id); err != nil {
		if !remote.IsTransient(err) {
			return err
		}
		c.degraded = true
		c.logger.Warn("remote unavailable, queuing starter unhide locally", "id", id, "error", err)
		if cerr := c.cache.UnmarkStarterDeleted(ctx, id); cerr != nil {
			c.logger.Error("failed to unmark cached deletion", "id", id, "error", cerr)
		}
		if cerr := c.cache.AddPendingUnhide(ctx, id); cerr != nil {
			c.logger.Error("failed to record pending unhide", "id", id, "error", cerr)
		}
		return nil
	}

	if cerr := c.cache.UnmarkStarterDeleted(ctx, id); cerr != nil {
		c.logger.Error("failed to unmark cached deletion", "id", id, "error", cerr)
	}
	c.recoveredLocked(ctx)
	return nil
}

// recoveredLocked runs after a successful remote call. If the session
// was degraded, it replays pending writes; only a fully flushed queue
// clears the degraded flag. This is the "flush on next heartbeat"
// policy: no timers, retries ride on whatever call succeeds next.
func (c *Coordinator) recoveredLocked(ctx context.Context) {
	if !c.degraded {
		return
	}
	if err := c.flushPendingLocked(ctx); err != nil {
		c.logger.Warn("pending flush failed, staying degraded", "error", err)
		return
	}
	c.degraded = false
	c.logger.Info("remote contact restored, pending writes flushed")
}

// flushPendingLocked replays unconfirmed writes against the remote
// store. The cache keeps queued writes mutually exclusive per id (a
// queued upsert supersedes a queued delete for the same record and
// vice versa, likewise hide and unhide markers), so replaying by
// category cannot reorder two writes to one record. Transient failures
// abort the flush (to be retried later); rejected failures discard the
// write, cache copy included, since replaying them can never succeed.
func (c *Coordinator) flushPendingLocked(ctx context.Context) error {
	teas, err := c.cache.PendingTeas(ctx)
	if err != nil {
		c.logger.Error("failed to read pending teas", "error", err)
		return nil
	}
	deletes, err := c.cache.PendingDeletes(ctx)
	if err != nil {
		c.logger.Error("failed to read pending deletes", "error", err)
		return nil
	}
	deletions, err := c.cache.PendingDeletions(ctx)
	if err != nil {
		c.logger.Error("failed to read pending deletion markers", "error", err)
		return nil
	}
	unhides, err := c.cache.PendingUnhides(ctx)
	if err != nil {
		c.logger.Error("failed to read pending unhides", "error", err)
		return nil
	}

	total := len(teas) + len(deletes) + len(deletions) + len(unhides)
	if total == 0 {
		return nil
	}

	for _, tea := range teas {
		err := c.remote.UpsertTea(ctx, tea)
		if remote.IsRejected(err) {
			c.logger.Warn("dropping rejected pending tea", "id", tea.ID, "error", err)
			if cerr := c.cache.DeleteTea(ctx, tea.ID); cerr != nil {
				c.logger.Error("failed to drop rejected tea from cache", "id", tea.ID, "error", cerr)
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	for _, id := range deletes {
		if err := c.flushOne(c.remote.DeleteTea(ctx, id), "tea delete", id); err != nil {
			return err
		}
	}
	for _, id := range deletions {
		err := c.remote.MarkDeleted(ctx, id)
		if remote.IsRejected(err) {
			c.logger.Warn("dropping rejected pending hide", "starter_id", id, "error", err)
			if cerr := c.cache.UnmarkStarterDeleted(ctx, id); cerr != nil {
				c.logger.Error("failed to drop rejected hide from cache", "starter_id", id, "error", cerr)
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	for _, id := range unhides {
		if err := c.flushOne(c.remote.UnmarkDeleted(ctx, id), "starter unhide", id); err != nil {
			return err
		}
	}

	if err := c.cache.ClearPending(ctx); err != nil {
		c.logger.Error("failed to clear pending markers", "error", err)
	}
	c.logger.Info("flushed pending writes", "count", total)
	return nil
}

// flushOne decides the fate of one replayed write.
func (c *Coordinator) flushOne(err error, op, id string) error {
	if err == nil {
		return nil
	}
	if remote.IsRejected(err) {
		c.logger.Warn("dropping rejected pending write", "op", op, "id", id, "error", err)
		return nil
	}
	return err
}

func (c *Coordinator) cachedTea(ctx context.Context, id string) *domain.Tea {
	prev, err := c.cache.GetTea(ctx, id)
	if err != nil {
		c.logger.Error("failed to read cached tea", "id", id, "error", err)
		return nil
	}
	return prev
}

func (c *Coordinator) cacheDeleteTeaLocked(ctx context.Context, id string, pending bool) {
	if err := c.cache.DeleteTea(ctx, id); err != nil {
		c.logger.Error("failed to delete cached tea", "id", id, "error", err)
	}
	if pending {
		if err := c.cache.AddPendingDelete(ctx, id); err != nil {
			c.logger.Error("failed to record pending delete", "id", id, "error", err)
		}
	}
}

func (c *Coordinator) cacheMarkDeletedLocked(ctx context.Context, id string, pending bool) {
	if err := c.cache.MarkStarterDeleted(ctx, id, pending); err != nil {
		c.logger.Error("failed to cache deletion marker", "id", id, "error", err)
	}
}

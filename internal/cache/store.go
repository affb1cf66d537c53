package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/avogel/teamap/internal/domain"
)

// State is the last-known view of the user's data held on this device:
// saved teas, starter deletion markers, and whether the one-time
// migration to the remote store has completed.
type State struct {
	Teas      []domain.Tea
	Deletions map[string]bool
	Migrated  bool
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const teaColumns = `id, name, chinese_name, type, province, region, lat, lng, elevation,
	flavor, description, notes, starter, edited, created_at, updated_at`

// Snapshot reads the full cached state. Teas come back in storage
// order (created_at, then id) so merges against the cache are as
// reproducible as merges against the remote store.
func (s *Store) Snapshot(ctx context.Context) (*State, error) {
	teas, err := s.queryTeas(ctx, `
		SELECT `+teaColumns+` FROM teas ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}

	deletions, err := s.queryDeletions(ctx, `SELECT starter_id FROM starter_deletions`)
	if err != nil {
		return nil, err
	}

	migrated, err := s.Migrated(ctx)
	if err != nil {
		return nil, err
	}

	return &State{Teas: teas, Deletions: deletions, Migrated: migrated}, nil
}

// ReplaceAll mirrors a successful remote read into the cache, replacing
// the previous snapshot. Pending markers are wiped too: callers flush
// pending writes before listing the remote, so anything still marked
// pending at this point is already reflected in the new snapshot.
func (s *Store) ReplaceAll(ctx context.Context, teas []domain.Tea, deletions map[string]bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		`DELETE FROM teas`,
		`DELETE FROM starter_deletions`,
		`DELETE FROM pending_deletes`,
		`DELETE FROM pending_unhides`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}

	for _, tea := range teas {
		if err := upsertTeaTx(ctx, tx, tea, false); err != nil {
			return err
		}
	}
	for id := range deletions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO starter_deletions (starter_id, pending) VALUES (?, 0)
			ON CONFLICT(starter_id) DO UPDATE SET pending = 0
		`, id); err != nil {
			return fmt.Errorf("failed to cache deletion marker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache snapshot: %w", err)
	}
	return nil
}

// UpsertTea writes one tea into the cache. pending marks a write that
// has not been confirmed by the remote store yet.
func (s *Store) UpsertTea(ctx context.Context, tea domain.Tea, pending bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := upsertTeaTx(ctx, tx, tea, pending); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tea upsert: %w", err)
	}
	return nil
}

func upsertTeaTx(ctx context.Context, tx *sql.Tx, tea domain.Tea, pending bool) error {
	var elevation sql.NullFloat64
	if tea.Elevation != nil {
		elevation = sql.NullFloat64{Float64: *tea.Elevation, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO teas (`+teaColumns+`, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			chinese_name = excluded.chinese_name,
			type = excluded.type,
			province = excluded.province,
			region = excluded.region,
			lat = excluded.lat,
			lng = excluded.lng,
			elevation = excluded.elevation,
			flavor = excluded.flavor,
			description = excluded.description,
			notes = excluded.notes,
			starter = excluded.starter,
			edited = excluded.edited,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			pending = excluded.pending
	`, tea.ID, tea.Name, tea.ChineseName, string(tea.Type), tea.Province, tea.Region,
		tea.Lat, tea.Lng, elevation, tea.Flavor, tea.Description, tea.Notes,
		tea.Starter, tea.Edited, tea.CreatedAt, tea.UpdatedAt, pending)
	if err != nil {
		return fmt.Errorf("failed to cache tea %s: %w", tea.ID, err)
	}

	// A live row contradicts a queued delete for the same id; the later
	// write supersedes it. Keeps the pending queue one-write-per-id so
	// replay order cannot resurrect or lose the record.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_deletes WHERE id = ?`, tea.ID); err != nil {
		return fmt.Errorf("failed to clear superseded pending delete: %w", err)
	}
	return nil
}

// GetTea returns the cached tea with the given id, or nil if absent.
func (s *Store) GetTea(ctx context.Context, id string) (*domain.Tea, error) {
	teas, err := s.queryTeas(ctx, `
		SELECT `+teaColumns+` FROM teas WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(teas) == 0 {
		return nil, nil
	}
	return &teas[0], nil
}

// DeleteTea removes a tea row and any pending-delete marker for it.
func (s *Store) DeleteTea(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM teas WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cached tea: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_deletes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear pending delete: %w", err)
	}
	return nil
}

// AddPendingDelete records that a remote delete for id has not been
// confirmed yet and must be replayed on the next successful contact.
func (s *Store) AddPendingDelete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_deletes (id) VALUES (?) ON CONFLICT(id) DO NOTHING
	`, id)
	if err != nil {
		return fmt.Errorf("failed to record pending delete: %w", err)
	}
	return nil
}

// AddPendingUnhide records that a remote deletion-marker removal has
// not been confirmed yet and must be replayed on the next successful
// contact.
func (s *Store) AddPendingUnhide(ctx context.Context, starterID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_unhides (starter_id) VALUES (?) ON CONFLICT(starter_id) DO NOTHING
	`, starterID)
	if err != nil {
		return fmt.Errorf("failed to record pending unhide: %w", err)
	}
	return nil
}

// PendingUnhides returns starter ids whose marker removal is unconfirmed.
func (s *Store) PendingUnhides(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT starter_id FROM pending_unhides ORDER BY starter_id`)
}

// MarkStarterDeleted records a deletion marker hiding a built-in
// starter for this user.
func (s *Store) MarkStarterDeleted(ctx context.Context, starterID string, pending bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO starter_deletions (starter_id, pending) VALUES (?, ?)
		ON CONFLICT(starter_id) DO UPDATE SET pending = excluded.pending
	`, starterID, pending)
	if err != nil {
		return fmt.Errorf("failed to mark starter deleted: %w", err)
	}

	// A hide marker supersedes a queued unhide for the same starter,
	// mirroring UnmarkStarterDeleted clearing the marker row.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_unhides WHERE starter_id = ?`, starterID); err != nil {
		return fmt.Errorf("failed to clear superseded pending unhide: %w", err)
	}
	return nil
}

func (s *Store) UnmarkStarterDeleted(ctx context.Context, starterID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM starter_deletions WHERE starter_id = ?`, starterID)
	if err != nil {
		return fmt.Errorf("failed to unmark starter deleted: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_unhides WHERE starter_id = ?`, starterID); err != nil {
		return fmt.Errorf("failed to clear pending unhide: %w", err)
	}
	return nil
}

// PendingTeas returns cached teas whose remote write is unconfirmed.
func (s *Store) PendingTeas(ctx context.Context) ([]domain.Tea, error) {
	return s.queryTeas(ctx, `
		SELECT `+teaColumns+` FROM teas WHERE pending = 1 ORDER BY created_at ASC, id ASC
	`)
}

// PendingDeletions returns starter ids whose deletion marker is unconfirmed.
func (s *Store) PendingDeletions(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT starter_id FROM starter_deletions WHERE pending = 1 ORDER BY starter_id`)
}

// PendingDeletes returns tea ids whose remote delete is unconfirmed.
func (s *Store) PendingDeletes(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `SELECT id FROM pending_deletes ORDER BY id`)
}

// ClearPending marks every pending write as confirmed. Called after a
// successful flush to the remote store.
func (s *Store) ClearPending(ctx context.Context) error {
	for _, stmt := range []string{
		`UPDATE teas SET pending = 0 WHERE pending = 1`,
		`UPDATE starter_deletions SET pending = 0 WHERE pending = 1`,
		`DELETE FROM pending_deletes`,
		`DELETE FROM pending_unhides`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear pending markers: %w", err)
		}
	}
	return nil
}

// HasLocalData reports whether the cache holds any teas or deletion
// markers. Used to decide whether the one-time migration has anything
// to upload.
func (s *Store) HasLocalData(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM teas) + (SELECT COUNT(*) FROM starter_deletions)
	`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count cached records: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Migrated(ctx context.Context) (bool, error) {
	v, err := s.getMeta(ctx, "migrated")
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *Store) SetMigrated(ctx context.Context, migrated bool) error {
	v := "false"
	if migrated {
		v = "true"
	}
	return s.setMeta(ctx, "migrated", v)
}

// Owner returns the identity this cache last belonged to, or "" if the
// cache has never seen an authenticated session.
func (s *Store) Owner(ctx context.Context) (string, error) {
	return s.getMeta(ctx, "owner")
}

func (s *Store) SetOwner(ctx context.Context, owner string) error {
	return s.setMeta(ctx, "owner", owner)
}

// Reset wipes the cache completely, including the migration flag and
// owner. Used when a different account signs in on this device.
func (s *Store) Reset(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM teas`,
		`DELETE FROM starter_deletions`,
		`DELETE FROM pending_deletes`,
		`DELETE FROM pending_unhides`,
		`DELETE FROM meta`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset cache: %w", err)
		}
	}
	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) queryTeas(ctx context.Context, query string, args ...any) ([]domain.Tea, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query teas: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var teas []domain.Tea
	for rows.Next() {
		var tea domain.Tea
		var typ string
		var elevation sql.NullFloat64
		if err := rows.Scan(&tea.ID, &tea.Name, &tea.ChineseName, &typ, &tea.Province,
			&tea.Region, &tea.Lat, &tea.Lng, &elevation, &tea.Flavor, &tea.Description,
			&tea.Notes, &tea.Starter, &tea.Edited, &tea.CreatedAt, &tea.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tea: %w", err)
		}
		tea.Type = domain.TeaType(typ)
		if elevation.Valid {
			v := elevation.Float64
			tea.Elevation = &v
		}
		teas = append(teas, tea)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teas: %w", err)
	}
	return teas, nil
}

func (s *Store) queryDeletions(ctx context.Context, query string) (map[string]bool, error) {
	ids, err := s.queryIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	deletions := make(map[string]bool, len(ids))
	for _, id := range ids {
		deletions[id] = true
	}
	return deletions, nil
}

func (s *Store) queryIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}

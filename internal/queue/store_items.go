package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the requested queue item does not exist.
var ErrNotFound = errors.New("queue item not found")

// ErrTerminal indicates a mutation was refused because the item already
// reached a terminal status.
var ErrTerminal = errors.New("queue item is terminal")

// Enqueue inserts a new queue item for a grabbed release. The operation is
// idempotent per (client_id, download_id): when an active row already tracks
// the same download the existing row is returned unchanged. Terminal and
// failed rows do not dedup; re-grabbing a dead release inserts a fresh row
// so the download actually restarts.
func (s *Store) Enqueue(ctx context.Context, item *Item) (*Item, error) {
	ctx = ensureContext(ctx)
	if item.ClientID == "" || item.DownloadID == "" {
		return nil, errors.New("enqueue requires client id and download id")
	}

	existing, err := s.FindByClientDownload(ctx, item.ClientID, item.DownloadID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil && !existing.IsTerminal() && existing.Status != StatusFailed {
		return existing, nil
	}

	now := time.Now().UTC()
	if item.Status == "" {
		item.Status = StatusQueued
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	item.Progress = ClampProgress(item.Progress)
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := s.execWithRetry(ctx, `
		INSERT INTO queue_items (
			client_id, download_id, content_hash, magnet_uri, title, protocol,
			movie_id, series_id, season_number, episode_ids,
			status, progress, size_bytes, download_rate, upload_rate, eta_seconds, ratio,
			client_path, output_path, output_path_exact, imported_path,
			quality, release_group, error_message, import_attempts,
			automatic_grab, is_upgrade,
			added_at, started_at, completed_at, imported_at, last_attempt_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ClientID,
		item.DownloadID,
		nullableString(item.ContentHash),
		nullableString(item.MagnetURI),
		item.Title,
		string(item.Protocol),
		item.Media.MovieID,
		item.Media.SeriesID,
		item.Media.SeasonNumber,
		encodeEpisodeIDs(item.Media.EpisodeIDs),
		string(item.Status),
		item.Progress,
		item.SizeBytes,
		item.DownloadRate,
		item.UploadRate,
		item.ETASeconds,
		item.Ratio,
		nullableString(item.ClientPath),
		nullableString(item.OutputPath),
		boolToInt(item.OutputPathExact),
		nullableString(item.ImportedPath),
		nullableString(item.Quality),
		nullableString(item.ReleaseGroup),
		nullableString(item.ErrorMessage),
		item.ImportAttempts,
		boolToInt(item.AutomaticGrab),
		boolToInt(item.IsUpgrade),
		item.AddedAt.Format(time.RFC3339Nano),
		nullableTime(item.StartedAt),
		nullableTime(item.CompletedAt),
		nullableTime(item.ImportedAt),
		nullableTime(item.LastAttemptAt),
		item.CreatedAt.Format(time.RFC3339Nano),
		item.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("resolve inserted id: %w", err)
	}
	item.ID = id
	return item, nil
}

// GetByID returns the queue item with the given id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load queue item %d: %w", id, err)
	}
	return item, nil
}

// FindByClientDownload returns the newest item tracking the given back-end
// download, preferring active rows over dead ones.
func (s *Store) FindByClientDownload(ctx context.Context, clientID, downloadID string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+` FROM queue_items
		WHERE client_id = ? AND download_id = ? COLLATE NOCASE
		ORDER BY CASE WHEN status IN ('imported', 'removed', 'failed') THEN 1 ELSE 0 END, id DESC
		LIMIT 1`,
		clientID, downloadID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find queue item by download id: %w", err)
	}
	return item, nil
}

// FindByContentHash returns the newest non-terminal item for a client whose
// stored content hash matches.
func (s *Store) FindByContentHash(ctx context.Context, clientID, hash string) (*Item, error) {
	ctx = ensureContext(ctx)
	if hash == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+` FROM queue_items
		WHERE client_id = ? AND content_hash = ? COLLATE NOCASE
		  AND status NOT IN ('imported', 'removed')
		ORDER BY id DESC
		LIMIT 1`,
		clientID, hash)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find queue item by content hash: %w", err)
	}
	return item, nil
}

// FindByTitle returns the newest non-terminal item for a client whose title
// matches exactly, case-insensitively.
func (s *Store) FindByTitle(ctx context.Context, clientID, title string) (*Item, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(title) == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+` FROM queue_items
		WHERE client_id = ? AND title = ? COLLATE NOCASE
		  AND status NOT IN ('imported', 'removed')
		ORDER BY id DESC
		LIMIT 1`,
		clientID, title)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find queue item by title: %w", err)
	}
	return item, nil
}

// List returns items in the given statuses ordered oldest-first. With no
// statuses it returns everything.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + itemColumns + " FROM queue_items"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan queue item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Active returns every non-terminal item ordered oldest-first.
func (s *Store) Active(ctx context.Context) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+` FROM queue_items
		WHERE status NOT IN ('imported', 'removed')
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list active queue items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan queue item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ActiveForClient returns non-terminal items tracked against one back-end.
func (s *Store) ActiveForClient(ctx context.Context, clientID string) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+` FROM queue_items
		WHERE client_id = ? AND status NOT IN ('imported', 'removed')
		ORDER BY id ASC`,
		clientID)
	if err != nil {
		return nil, fmt.Errorf("list active items for client %s: %w", clientID, err)
	}
	defer func() { _ = rows.Close() }()

	var items []*Item
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan queue item: %w", scanErr)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update persists the item's mutable fields. Rows that already reached a
// terminal status in the database are never overwritten; the guard lives in
// the WHERE clause so concurrent transitions cannot race past it.
func (s *Store) Update(ctx context.Context, item *Item) error {
	ctx = ensureContext(ctx)
	if item.ID == 0 {
		return errors.New("update requires a persisted item")
	}
	item.Progress = ClampProgress(item.Progress)
	item.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET
			content_hash = ?, magnet_uri = ?, title = ?, download_id = ?,
			movie_id = ?, series_id = ?, season_number = ?, episode_ids = ?,
			status = ?, progress = ?, size_bytes = ?, download_rate = ?,
			upload_rate = ?, eta_seconds = ?, ratio = ?,
			client_path = ?, output_path = ?, output_path_exact = ?, imported_path = ?,
			quality = ?, release_group = ?, error_message = ?, import_attempts = ?,
			automatic_grab = ?, is_upgrade = ?,
			started_at = ?, completed_at = ?, imported_at = ?, last_attempt_at = ?,
			updated_at = ?
		WHERE id = ? AND status NOT IN ('imported', 'removed')`,
		nullableString(item.ContentHash),
		nullableString(item.MagnetURI),
		item.Title,
		item.DownloadID,
		item.Media.MovieID,
		item.Media.SeriesID,
		item.Media.SeasonNumber,
		encodeEpisodeIDs(item.Media.EpisodeIDs),
		string(item.Status),
		item.Progress,
		item.SizeBytes,
		item.DownloadRate,
		item.UploadRate,
		item.ETASeconds,
		item.Ratio,
		nullableString(item.ClientPath),
		nullableString(item.OutputPath),
		boolToInt(item.OutputPathExact),
		nullableString(item.ImportedPath),
		nullableString(item.Quality),
		nullableString(item.ReleaseGroup),
		nullableString(item.ErrorMessage),
		item.ImportAttempts,
		boolToInt(item.AutomaticGrab),
		boolToInt(item.IsUpgrade),
		nullableTime(item.StartedAt),
		nullableTime(item.CompletedAt),
		nullableTime(item.ImportedAt),
		nullableTime(item.LastAttemptAt),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check update of queue item %d: %w", item.ID, err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, item.ID)
		if getErr != nil {
			return getErr
		}
		if current.IsTerminal() {
			return fmt.Errorf("queue item %d: %w", item.ID, ErrTerminal)
		}
		return fmt.Errorf("queue item %d not updated", item.ID)
	}
	return nil
}

// Delete removes the item row entirely. Used once a seeding_imported item's
// back-end entry is gone and nothing remains to track.
func (s *Store) Delete(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, "DELETE FROM queue_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete queue item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete of queue item %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats summarizes queue composition by status.
type Stats struct {
	Total    int64
	ByStatus map[Status]int64
}

// QueueStats returns row counts grouped by status.
func (s *Store) QueueStats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM queue_items GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("load queue stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := Stats{ByStatus: make(map[Status]int64)}
	for rows.Next() {
		var statusStr string
		var count int64
		if scanErr := rows.Scan(&statusStr, &count); scanErr != nil {
			return Stats{}, fmt.Errorf("scan queue stats: %w", scanErr)
		}
		stats.ByStatus[Status(statusStr)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

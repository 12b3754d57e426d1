package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEventType names the recorded lifecycle events.
type HistoryEventType string

const (
	HistoryGrabbed        HistoryEventType = "grabbed"
	HistoryImported       HistoryEventType = "imported"
	HistoryImportFailed   HistoryEventType = "import_failed"
	HistoryDownloadFailed HistoryEventType = "download_failed"
	HistoryRemoved        HistoryEventType = "removed"
)

// HistoryRecord is one durable audit entry for a queue item.
type HistoryRecord struct {
	ID           int64
	EventID      string
	ItemID       int64
	ClientID     string
	DownloadID   string
	EventType    HistoryEventType
	Title        string
	Quality      string
	ReleaseGroup string
	SourcePath   string
	ImportedPath string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const historyColumns = "id, event_id, item_id, client_id, download_id, event_type, title, quality, release_group, source_path, imported_path, error_message, created_at, updated_at"

// RecordHistory appends an audit entry for the item.
func (s *Store) RecordHistory(ctx context.Context, record *HistoryRecord) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	if record.EventID == "" {
		record.EventID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	res, err := s.execWithRetry(ctx, `
		INSERT INTO history_records (
			event_id, item_id, client_id, download_id, event_type,
			title, quality, release_group, source_path, imported_path,
			error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.EventID,
		record.ItemID,
		nullableString(record.ClientID),
		nullableString(record.DownloadID),
		string(record.EventType),
		nullableString(record.Title),
		nullableString(record.Quality),
		nullableString(record.ReleaseGroup),
		nullableString(record.SourcePath),
		nullableString(record.ImportedPath),
		nullableString(record.ErrorMessage),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("resolve history record id: %w", err)
	}
	record.ID = id
	return nil
}

// RecordGrab writes the grabbed entry for a newly enqueued item.
func (s *Store) RecordGrab(ctx context.Context, item *Item) error {
	return s.RecordHistory(ctx, &HistoryRecord{
		ItemID:       item.ID,
		ClientID:     item.ClientID,
		DownloadID:   item.DownloadID,
		EventType:    HistoryGrabbed,
		Title:        item.Title,
		Quality:      item.Quality,
		ReleaseGroup: item.ReleaseGroup,
	})
}

// RecordImport writes the imported entry for a finished import. When a
// previous import_failed record exists for the same item, it is converted in
// place instead of leaving a stale failure next to the success.
func (s *Store) RecordImport(ctx context.Context, item *Item, sourcePath, importedPath string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE history_records SET
			event_type = ?, source_path = ?, imported_path = ?,
			error_message = NULL, updated_at = ?
		WHERE item_id = ? AND event_type = ?`,
		string(HistoryImported), nullableString(sourcePath), nullableString(importedPath), now,
		item.ID, string(HistoryImportFailed))
	if err != nil {
		return fmt.Errorf("convert failed history record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check history conversion: %w", err)
	}
	if affected > 0 {
		return nil
	}

	return s.RecordHistory(ctx, &HistoryRecord{
		ItemID:       item.ID,
		ClientID:     item.ClientID,
		DownloadID:   item.DownloadID,
		EventType:    HistoryImported,
		Title:        item.Title,
		Quality:      item.Quality,
		ReleaseGroup: item.ReleaseGroup,
		SourcePath:   sourcePath,
		ImportedPath: importedPath,
	})
}

// RecordFailure writes a failure entry, reusing an existing failure record
// of the same type for the item so repeated attempts do not pile up rows.
func (s *Store) RecordFailure(ctx context.Context, item *Item, eventType HistoryEventType, message string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE history_records SET error_message = ?, updated_at = ?
		WHERE item_id = ? AND event_type = ?`,
		nullableString(message), now, item.ID, string(eventType))
	if err != nil {
		return fmt.Errorf("update failure history record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check failure history update: %w", err)
	}
	if affected > 0 {
		return nil
	}

	return s.RecordHistory(ctx, &HistoryRecord{
		ItemID:       item.ID,
		ClientID:     item.ClientID,
		DownloadID:   item.DownloadID,
		EventType:    eventType,
		Title:        item.Title,
		Quality:      item.Quality,
		ReleaseGroup: item.ReleaseGroup,
		ErrorMessage: message,
	})
}

// HistoryList returns the newest records first, capped at limit. A
// non-positive limit returns everything.
func (s *Store) HistoryList(ctx context.Context, limit int) ([]*HistoryRecord, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + historyColumns + " FROM history_records ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*HistoryRecord
	for rows.Next() {
		record, scanErr := scanHistoryRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan history record: %w", scanErr)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// HistoryForItem returns every record for one queue item, newest first.
func (s *Store) HistoryForItem(ctx context.Context, itemID int64) ([]*HistoryRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM history_records WHERE item_id = ? ORDER BY id DESC",
		itemID)
	if err != nil {
		return nil, fmt.Errorf("list history for item %d: %w", itemID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*HistoryRecord
	for rows.Next() {
		record, scanErr := scanHistoryRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan history record: %w", scanErr)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanHistoryRecord(scanner interface{ Scan(dest ...any) error }) (*HistoryRecord, error) {
	var (
		id           int64
		eventID      string
		itemID       int64
		clientID     sql.NullString
		downloadID   sql.NullString
		eventType    string
		title        sql.NullString
		quality      sql.NullString
		releaseGroup sql.NullString
		sourcePath   sql.NullString
		importedPath sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id, &eventID, &itemID, &clientID, &downloadID, &eventType,
		&title, &quality, &releaseGroup, &sourcePath, &importedPath,
		&errorMessage, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &HistoryRecord{
		ID:           id,
		EventID:      eventID,
		ItemID:       itemID,
		ClientID:     clientID.String,
		DownloadID:   downloadID.String,
		EventType:    HistoryEventType(eventType),
		Title:        title.String,
		Quality:      quality.String,
		ReleaseGroup: releaseGroup.String,
		SourcePath:   sourcePath.String,
		ImportedPath: importedPath.String,
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

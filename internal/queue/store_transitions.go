package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ClaimOutcome classifies the result of an import claim attempt.
type ClaimOutcome int

const (
	// Claimed means this caller won the completed → importing transition.
	Claimed ClaimOutcome = iota
	// AlreadyImporting means another worker holds the claim.
	AlreadyImporting
	// AlreadyImported means the item finished importing previously.
	AlreadyImported
	// NotClaimable means the item is in some other status or missing.
	NotClaimable
)

func (o ClaimOutcome) String() string {
	switch o {
	case Claimed:
		return "claimed"
	case AlreadyImporting:
		return "already_importing"
	case AlreadyImported:
		return "already_imported"
	default:
		return "not_claimable"
	}
}

// ClaimForImport atomically transitions an item from completed to importing
// and increments its attempt counter. The conditional UPDATE guarantees at
// most one caller wins for a given completion; losers learn why from the
// returned outcome.
func (s *Store) ClaimForImport(ctx context.Context, id int64) (ClaimOutcome, *Item, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET
			status = ?, import_attempts = import_attempts + 1,
			last_attempt_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusImporting), now, now, id, string(StatusCompleted))
	if err != nil {
		return NotClaimable, nil, fmt.Errorf("claim queue item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return NotClaimable, nil, fmt.Errorf("check claim of queue item %d: %w", id, err)
	}

	item, getErr := s.GetByID(ctx, id)
	if getErr != nil {
		if errors.Is(getErr, ErrNotFound) {
			return NotClaimable, nil, nil
		}
		return NotClaimable, nil, getErr
	}

	if affected > 0 {
		return Claimed, item, nil
	}
	switch item.Status {
	case StatusImporting:
		return AlreadyImporting, item, nil
	case StatusImported, StatusSeedingImported:
		return AlreadyImported, item, nil
	default:
		return NotClaimable, item, nil
	}
}

// MarkImported finishes an import. Torrent items that must keep seeding land
// in seeding_imported; everything else goes straight to the terminal imported
// status. The transition only applies while the row still holds the
// importing claim.
func (s *Store) MarkImported(ctx context.Context, id int64, importedPath string, stillSeeding bool) error {
	ctx = ensureContext(ctx)
	target := StatusImported
	if stillSeeding {
		target = StatusSeedingImported
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET
			status = ?, imported_path = ?, imported_at = ?, error_message = NULL,
			updated_at = ?
		WHERE id = ? AND status = ?`,
		string(target), nullableString(importedPath), now, now,
		id, string(StatusImporting))
	if err != nil {
		return fmt.Errorf("mark queue item %d imported: %w", id, err)
	}
	return requireTransition(res, id, "imported")
}

// MarkFailed moves an item to failed with an operator-facing message. Items
// already terminal are left alone.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('imported', 'removed')`,
		string(StatusFailed), nullableString(message), now, id)
	if err != nil {
		return fmt.Errorf("mark queue item %d failed: %w", id, err)
	}
	return requireTransition(res, id, "failed")
}

// ReleaseClaim returns an item that could not be imported yet back to
// completed so a later pass can retry. Only an importing row is eligible.
func (s *Store) ReleaseClaim(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusCompleted), now, id, string(StatusImporting))
	if err != nil {
		return fmt.Errorf("release claim on queue item %d: %w", id, err)
	}
	return requireTransition(res, id, "released")
}

// MarkRemoved records that the tracked download vanished from its back-end
// before completing. Terminal rows are left alone.
func (s *Store) MarkRemoved(ctx context.Context, id int64, message string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN ('imported', 'removed')`,
		string(StatusRemoved), nullableString(message), now, id)
	if err != nil {
		return fmt.Errorf("mark queue item %d removed: %w", id, err)
	}
	return requireTransition(res, id, "removed")
}

// PromoteSeedingImported finalizes a seeding_imported item whose back-end
// entry is done seeding, moving it to the terminal imported status.
func (s *Store) PromoteSeedingImported(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusImported), now, id, string(StatusSeedingImported))
	if err != nil {
		return fmt.Errorf("promote queue item %d: %w", id, err)
	}
	return requireTransition(res, id, "promoted")
}

// ResetStuckImporting returns every row stranded in importing back to
// completed. Run once at startup: an importing row with no live worker is a
// crashed import whose claim must not block retries forever.
func (s *Store) ResetStuckImporting(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx, `
		UPDATE queue_items SET status = ?, updated_at = ?
		WHERE status = ?`,
		string(StatusCompleted), now, string(StatusImporting))
	if err != nil {
		return 0, fmt.Errorf("reset stuck importing items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count reset items: %w", err)
	}
	return affected, nil
}

// ClearFailed deletes failed items last updated before the cutoff. With
// dryRun set it only reports how many rows would go.
func (s *Store) ClearFailed(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	if dryRun {
		var count int64
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM queue_items WHERE status = ? AND updated_at < ?",
			string(StatusFailed), cutoff).Scan(&count)
		if err != nil {
			return 0, fmt.Errorf("count failed items: %w", err)
		}
		return count, nil
	}

	res, err := s.execWithRetry(ctx,
		"DELETE FROM queue_items WHERE status = ? AND updated_at < ?",
		string(StatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear failed items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleared items: %w", err)
	}
	return affected, nil
}

func requireTransition(res interface{ RowsAffected() (int64, error) }, id int64, action string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition of queue item %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("queue item %d not %s: status changed concurrently", id, action)
	}
	return nil
}

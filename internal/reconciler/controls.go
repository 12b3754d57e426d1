package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"berth/internal/downloads"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/logging"
	"berth/internal/queue"
)

// PauseItem pauses the back-end download for a queue item.
func (r *Reconciler) PauseItem(ctx context.Context, itemID int64) error {
	item, client, err := r.resolve(ctx, itemID)
	if err != nil {
		return err
	}
	if err := client.PauseDownload(ctx, item.DownloadID); err != nil {
		return fmt.Errorf("pause download: %w", err)
	}
	r.ForcePoll()
	return nil
}

// ResumeItem resumes the back-end download for a queue item.
func (r *Reconciler) ResumeItem(ctx context.Context, itemID int64) error {
	item, client, err := r.resolve(ctx, itemID)
	if err != nil {
		return err
	}
	if err := client.ResumeDownload(ctx, item.DownloadID); err != nil {
		return fmt.Errorf("resume download: %w", err)
	}
	r.ForcePoll()
	return nil
}

// RemoveItem takes an item out of the queue, optionally deleting the
// download and its files from the back-end.
func (r *Reconciler) RemoveItem(ctx context.Context, itemID int64, removeFromClient, deleteFiles bool) error {
	item, err := r.store.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	if removeFromClient && !item.IsTerminal() {
		client, clientErr := r.clients.Get(item.ClientID)
		if clientErr == nil {
			if err := client.RemoveDownload(ctx, item.DownloadID, deleteFiles); err != nil && !errors.Is(err, downloads.ErrNotFound) {
				return fmt.Errorf("remove download: %w", err)
			}
		}
	}

	if item.IsTerminal() {
		return r.store.Delete(ctx, item.ID)
	}
	previous := item.Status
	if err := r.store.MarkRemoved(ctx, item.ID, "removed by operator"); err != nil {
		return err
	}
	item.Status = queue.StatusRemoved
	r.publish(ctx, events.TypeRemoved, item, previous, "removed by operator")
	return nil
}

// ClearFailed clears failed items older than the cutoff. With dryRun it only
// reports the count.
func (r *Reconciler) ClearFailed(ctx context.Context, olderThan time.Duration, dryRun bool) (int64, error) {
	return r.store.ClearFailed(ctx, olderThan, dryRun)
}

// HealthReport exposes per-client connectivity health.
func (r *Reconciler) HealthReport() map[string]directory.Health {
	return r.clients.HealthReport()
}

func (r *Reconciler) resolve(ctx context.Context, itemID int64) (*queue.Item, *directory.Managed, error) {
	item, err := r.store.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item.IsTerminal() {
		return nil, nil, fmt.Errorf("queue item %d: %w", itemID, queue.ErrTerminal)
	}
	client, err := r.clients.Get(item.ClientID)
	if err != nil {
		return nil, nil, err
	}
	return item, client, nil
}

// Orphan is a completed back-end download no queue item tracks.
type Orphan struct {
	ClientID   string
	DownloadID string
	Title      string
}

// CleanupOrphans finds completed downloads in each client's category that no
// queue item references and, unless dryRun is set, removes their back-end
// entries. Files are left on disk. Downloads still under retention
// obligations (CanBeRemoved false) are left alone entirely; deleting a
// seeding torrent's entry would break its seeding commitment.
func (r *Reconciler) CleanupOrphans(ctx context.Context, dryRun bool) ([]Orphan, error) {
	var orphans []Orphan
	for _, client := range r.clients.Enabled() {
		clientCfg := client.Config()
		snapshots, err := client.GetDownloads(ctx, clientCfg.Category)
		if err != nil {
			r.logger.Warn("orphan sweep fetch",
				logging.String(logging.FieldClientID, client.ID()),
				logging.Error(err))
			continue
		}
		for _, info := range snapshots {
			if !info.IsComplete() || !info.CanBeRemoved {
				continue
			}
			_, lookupErr := r.store.FindByClientDownload(ctx, client.ID(), info.ID)
			if lookupErr == nil {
				continue
			}
			if !errors.Is(lookupErr, queue.ErrNotFound) {
				return nil, lookupErr
			}
			orphan := Orphan{ClientID: client.ID(), DownloadID: info.ID, Title: info.Title}
			orphans = append(orphans, orphan)
			if dryRun {
				continue
			}
			if err := client.RemoveDownload(ctx, info.ID, false); err != nil && !errors.Is(err, downloads.ErrNotFound) {
				r.logger.Warn("remove orphaned download",
					logging.String(logging.FieldClientID, client.ID()),
					logging.String(logging.FieldDownloadID, info.ID),
					logging.Error(err))
			} else {
				r.logger.Info("removed orphaned download",
					logging.String(logging.FieldClientID, client.ID()),
					logging.String(logging.FieldDownloadID, info.ID),
					logging.String("title", info.Title))
			}
		}
	}
	return orphans, nil
}

// maybeSweepOrphans runs the orphan sweep on its configured cadence.
func (r *Reconciler) maybeSweepOrphans(ctx context.Context, managed []*directory.Managed) {
	if len(managed) == 0 {
		return
	}
	interval := time.Duration(r.cfg.Reconciler.OrphanSweepMinutes) * time.Minute
	if interval <= 0 {
		return
	}

	r.orphanMu.Lock()
	due := r.now().Sub(r.lastOrphanSweep) >= interval
	if due {
		r.lastOrphanSweep = r.now()
	}
	r.orphanMu.Unlock()
	if !due {
		return
	}

	if _, err := r.CleanupOrphans(ctx, false); err != nil {
		r.logger.Error("orphan sweep", logging.Error(err))
	}
}

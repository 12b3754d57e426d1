package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"berth/internal/downloads"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/logging"
	"berth/internal/pathmap"
	"berth/internal/queue"
)

// sweepClient reconciles every active item tracked against one back-end and
// returns the import handoffs the sweep produced. Errors isolate to the
// client: a failed fetch degrades its health and ends the sweep.
func (r *Reconciler) sweepClient(ctx context.Context, client *directory.Managed) []importer.Request {
	clientCfg := client.Config()
	log := r.logger.With(logging.String(logging.FieldClientID, client.ID()))

	snapshots, err := client.GetDownloads(ctx, clientCfg.Category)
	if err != nil {
		log.Warn("fetch downloads", logging.Error(err))
		return nil
	}
	items, err := r.store.ActiveForClient(ctx, client.ID())
	if err != nil {
		log.Error("load active items", logging.Error(err))
		return nil
	}

	byID := make(map[string]downloads.DownloadInfo, len(snapshots))
	for _, info := range snapshots {
		byID[strings.ToLower(info.ID)] = info
	}

	var requests []importer.Request
	for _, item := range items {
		info, found := byID[strings.ToLower(item.DownloadID)]
		if !found {
			info, found = matchFallback(item, snapshots)
			if found {
				log.Info("rewriting native download id",
					logging.Int64(logging.FieldItemID, item.ID),
					logging.String(logging.FieldDownloadID, info.ID))
				item.DownloadID = info.ID
			}
		}
		if !found {
			r.handleMissing(ctx, item, log)
			continue
		}
		if request, wantImport := r.applySnapshot(ctx, client, item, info, log); wantImport {
			requests = append(requests, request)
		}
	}
	return requests
}

var infoHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{40}$|^[0-9a-fA-F]{64}$`)

// matchFallback resolves an item whose native id no longer appears in the
// snapshot set. Content hash is tried first, then the hash embedded in the
// original magnet link, then an exact title match. Callers rewrite the
// native id on success so the next poll matches directly.
func matchFallback(item *queue.Item, snapshots []downloads.DownloadInfo) (downloads.DownloadInfo, bool) {
	if item.ContentHash != "" {
		for _, info := range snapshots {
			if strings.EqualFold(info.ID, item.ContentHash) {
				return info, true
			}
		}
	}
	if hash, ok := downloads.ParseMagnetHash(item.MagnetURI); ok {
		for _, info := range snapshots {
			if strings.EqualFold(info.ID, hash) {
				return info, true
			}
		}
	}
	for _, info := range snapshots {
		if info.Title != "" && strings.EqualFold(info.Title, item.Title) {
			return info, true
		}
	}
	return downloads.DownloadInfo{}, false
}

// applySnapshot folds one back-end snapshot into the queue item. The second
// return is true when the item just became eligible for import.
func (r *Reconciler) applySnapshot(ctx context.Context, client *directory.Managed, item *queue.Item, info downloads.DownloadInfo, log *slog.Logger) (importer.Request, bool) {
	if item.Status == queue.StatusSeedingImported {
		r.finishSeeding(ctx, client, item, info, log)
		return importer.Request{}, false
	}
	if !acceptsSnapshotStatus(item.Status) {
		return importer.Request{}, false
	}

	previous := item.Status
	newStatus := normalizeStatus(info)

	item.SetProgress(info.Progress)
	item.SizeBytes = info.SizeBytes
	item.DownloadRate = info.DownloadRate
	item.UploadRate = info.UploadRate
	item.ETASeconds = int64(info.ETA / time.Second)
	item.Ratio = info.Ratio
	item.ErrorMessage = info.ErrorMessage

	if item.ContentHash == "" && infoHashPattern.MatchString(info.ID) {
		item.ContentHash = strings.ToLower(info.ID)
	}

	clientPath := info.ContentPath
	if clientPath == "" {
		clientPath = info.SavePath
	}
	if clientPath != "" {
		item.ClientPath = clientPath
		if translator := r.translatorFor(client.ID(), info); translator != nil {
			translated := translator.Translate(clientPath)
			item.OutputPath = translated.Path
			item.OutputPathExact = translated.Exact()
		} else {
			item.OutputPath = clientPath
			item.OutputPathExact = false
		}
	}

	now := r.now()
	if previous == queue.StatusQueued && newStatus != queue.StatusQueued && item.StartedAt == nil {
		item.StartedAt = &now
	}
	if newStatus == queue.StatusCompleted && item.CompletedAt == nil {
		item.CompletedAt = &now
	}
	item.Status = newStatus

	if err := r.store.Update(ctx, item); err != nil {
		log.Error("persist snapshot", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
		return importer.Request{}, false
	}

	if newStatus != previous {
		switch newStatus {
		case queue.StatusCompleted:
			log.Info("download complete",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("title", item.Title))
			r.publish(ctx, events.TypeCompleted, item, previous, "")
		case queue.StatusFailed:
			log.Warn("download failed",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("error_message", info.ErrorMessage))
			if err := r.store.RecordFailure(ctx, item, queue.HistoryDownloadFailed, info.ErrorMessage); err != nil {
				log.Error("record download failure", logging.Error(err))
			}
			r.publish(ctx, events.TypeFailed, item, previous, info.ErrorMessage)
		default:
			r.publish(ctx, events.TypeUpdated, item, previous, "")
		}
	}

	if newStatus == queue.StatusCompleted {
		return importer.Request{
			ItemID:       item.ID,
			Info:         info,
			RemoteMount:  client.Config().RemoteMount,
			DownloadRoot: r.downloadRoot(ctx, client),
		}, true
	}
	return importer.Request{}, false
}

// translatorFor picks the area-appropriate translator for a snapshot:
// completed once the payload has fully arrived, staging before that.
func (r *Reconciler) translatorFor(clientID string, info downloads.DownloadInfo) *pathmap.Translator {
	set, ok := r.translators[clientID]
	if !ok {
		return nil
	}
	if info.IsComplete() {
		return set.completed
	}
	return set.incomplete
}

// downloadRoot resolves the client's base download directory in local terms
// so the importer can refuse to scan the whole download tree.
func (r *Reconciler) downloadRoot(ctx context.Context, client *directory.Managed) string {
	remote, err := client.GetDefaultSavePath(ctx)
	if err != nil || remote == "" {
		return ""
	}
	if set, ok := r.translators[client.ID()]; ok {
		return set.completed.Translate(remote).Path
	}
	return remote
}

// finishSeeding closes out an already-imported torrent once its seeding
// obligations are met: the back-end entry and payload go, the item becomes
// terminal.
func (r *Reconciler) finishSeeding(ctx context.Context, client *directory.Managed, item *queue.Item, info downloads.DownloadInfo, log *slog.Logger) {
	if !info.CanBeRemoved {
		return
	}
	if err := client.RemoveDownload(ctx, item.DownloadID, true); err != nil {
		if !errors.Is(err, downloads.ErrNotFound) {
			log.Warn("remove seeded download", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
			return
		}
	}
	if err := r.store.PromoteSeedingImported(ctx, item.ID); err != nil {
		log.Error("promote seeded item", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
		return
	}
	// The import history record keeps the audit trail; the queue row has
	// nothing left to track.
	if err := r.store.Delete(ctx, item.ID); err != nil {
		log.Warn("delete finalized item", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
	}
	log.Info("seeding complete, item finalized", logging.Int64(logging.FieldItemID, item.ID))
}

// handleMissing deals with an item whose download no longer shows up in the
// back-end snapshot. Inside the grace window nothing happens. After it, an
// item whose payload had finished arriving closes out as removed; one that
// vanished mid-download is an unexplained loss and fails.
func (r *Reconciler) handleMissing(ctx context.Context, item *queue.Item, log *slog.Logger) {
	now := r.now()
	if !missingGraceExpired(item, now) {
		return
	}

	if item.Status == queue.StatusSeedingImported {
		// Entry gone: someone removed it after import. Finalize quietly.
		if err := r.store.PromoteSeedingImported(ctx, item.ID); err != nil {
			log.Error("promote vanished seeded item", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
			return
		}
		if err := r.store.Delete(ctx, item.ID); err != nil {
			log.Warn("delete finalized item", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
		}
		return
	}

	previous := item.Status
	if arrivedBeforeVanishing(previous) {
		message := "download removed from client before import"
		log.Warn("marking item removed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("title", item.Title),
			logging.String("status", string(previous)))
		if err := r.store.MarkRemoved(ctx, item.ID, message); err != nil {
			log.Error("mark item removed", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
			return
		}
		if err := r.store.RecordFailure(ctx, item, queue.HistoryRemoved, message); err != nil {
			log.Error("record removal", logging.Error(err))
		}
		item.Status = queue.StatusRemoved
		r.publish(ctx, events.TypeRemoved, item, previous, message)
		return
	}

	message := "download disappeared from client"
	log.Warn("marking vanished item failed",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("title", item.Title),
		logging.String("status", string(previous)))
	if err := r.store.MarkFailed(ctx, item.ID, message); err != nil {
		log.Error("mark vanished item failed", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
		return
	}
	if err := r.store.RecordFailure(ctx, item, queue.HistoryDownloadFailed, message); err != nil {
		log.Error("record download failure", logging.Error(err))
	}
	item.SetFailed(message)
	r.publish(ctx, events.TypeFailed, item, previous, message)
}

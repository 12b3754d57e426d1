package reconciler

import (
	"berth/internal/downloads"
	"berth/internal/queue"
)

// normalizeStatus maps an adapter snapshot onto the queue status vocabulary.
// A payload that has fully arrived is completed regardless of whether the
// back-end calls it "seeding"; import eligibility hinges on the data being
// present, not on seeding obligations. A back-end seeding report without
// full progress surfaces as the intermediate seeding status.
func normalizeStatus(info downloads.DownloadInfo) queue.Status {
	if info.IsComplete() {
		return queue.StatusCompleted
	}
	switch info.Status {
	case downloads.StatusQueued:
		return queue.StatusQueued
	case downloads.StatusStalled:
		return queue.StatusStalled
	case downloads.StatusPaused:
		return queue.StatusPaused
	case downloads.StatusError:
		return queue.StatusFailed
	case downloads.StatusSeeding:
		// The back-end considers the torrent complete but our completion
		// signal (progress at 1) has not been observed yet, typically
		// during a recheck or while final blocks settle.
		return queue.StatusSeeding
	default:
		// downloading, postprocessing, anything new an adapter grows.
		return queue.StatusDownloading
	}
}

// importable statuses may transition into the snapshot-derived status. The
// import pipeline owns everything from importing onward; snapshots must not
// drag an item backwards out of it.
func acceptsSnapshotStatus(current queue.Status) bool {
	switch current {
	case queue.StatusQueued, queue.StatusDownloading, queue.StatusStalled,
		queue.StatusPaused, queue.StatusSeeding, queue.StatusCompleted:
		return true
	default:
		return false
	}
}

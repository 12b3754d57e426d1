package reconciler

import (
	"time"

	"berth/internal/downloads"
	"berth/internal/queue"
)

// Grace windows before a download missing from its back-end is acted on.
// Back-ends briefly drop entries while fetching magnet metadata or
// relocating files, so a missing snapshot is not immediately trusted.
const (
	// graceGeneric covers usenet and anything else that registers fast.
	graceGeneric = time.Minute
	// graceTorrent allows for slow torrent registration after a grab.
	graceTorrent = 5 * time.Minute
	// graceMagnet allows for magnet metadata resolution, during which some
	// clients do not list the download at all.
	graceMagnet = 10 * time.Minute
	// gracePostCompletion is how long a download that already finished
	// arriving may be missing before the item is closed out as removed.
	// Covers back-end-side post-processing that hides the entry.
	gracePostCompletion = 3 * time.Minute
)

// missingDeadline returns how long after the grab a missing download is
// tolerated for this item.
func missingDeadline(item *queue.Item) time.Duration {
	if item.MagnetURI != "" && item.ContentHash == "" {
		return graceMagnet
	}
	if item.Protocol == downloads.ProtocolTorrent {
		return graceTorrent
	}
	return graceGeneric
}

// missingGraceExpired decides whether a missing download has outlived its
// grace window at the given instant.
func missingGraceExpired(item *queue.Item, now time.Time) bool {
	if arrivedBeforeVanishing(item.Status) {
		reference := item.UpdatedAt
		if item.CompletedAt != nil {
			reference = *item.CompletedAt
		}
		return now.Sub(reference) >= gracePostCompletion
	}
	return now.Sub(item.AddedAt) >= missingDeadline(item)
}

// arrivedBeforeVanishing reports whether the back-end had already declared
// the payload complete by the time its entry disappeared. Such items close
// out as removed; anything still mid-download that vanishes is a failure.
func arrivedBeforeVanishing(status queue.Status) bool {
	switch status {
	case queue.StatusSeeding, queue.StatusCompleted, queue.StatusSeedingImported:
		return true
	default:
		return false
	}
}

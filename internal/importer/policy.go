package importer

import (
	"berth/internal/downloads"
	"berth/internal/queue"
)

// transferPlan is the resolved per-item transfer policy.
type transferPlan struct {
	allowHardlink bool
	deleteSource  bool
}

// resolveTransferPlan maps the configured transfer mode onto per-item
// mechanics. Source deletion is only ever allowed when the protocol permits
// it: usenet downloads are ours to consume, torrent payloads may be deleted
// only when the back-end says seeding obligations are met.
func resolveTransferPlan(mode string, item *queue.Item, info downloads.DownloadInfo) transferPlan {
	mayDelete := item.Protocol == downloads.ProtocolUsenet ||
		(item.Protocol == downloads.ProtocolTorrent && info.CanMoveFiles)

	switch mode {
	case "copy":
		return transferPlan{}
	case "hardlink":
		return transferPlan{allowHardlink: true}
	case "move":
		if mayDelete {
			return transferPlan{deleteSource: true}
		}
		// Still seeding: degrade to hardlink so the payload survives.
		return transferPlan{allowHardlink: true}
	default: // auto
		// Hardlink-or-copy first, then reclaim the source when allowed.
		// A hardlinked source shares its inode with the target, so the
		// delete cannot disturb the imported file.
		return transferPlan{allowHardlink: true, deleteSource: mayDelete}
	}
}

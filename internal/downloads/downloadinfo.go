package downloads

import (
	"strings"
	"time"
)

// Status is the canonical vocabulary adapter snapshots are normalized into.
type Status string

const (
	StatusDownloading    Status = "downloading"
	StatusStalled        Status = "stalled"
	StatusPaused         Status = "paused"
	StatusSeeding        Status = "seeding"
	StatusCompleted      Status = "completed"
	StatusPostprocessing Status = "postprocessing"
	StatusQueued         Status = "queued"
	StatusError          Status = "error"
)

var statusSet = map[Status]struct{}{
	StatusDownloading:    {},
	StatusStalled:        {},
	StatusPaused:         {},
	StatusSeeding:        {},
	StatusCompleted:      {},
	StatusPostprocessing: {},
	StatusQueued:         {},
	StatusError:          {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// DownloadInfo is the ephemeral snapshot an adapter returns for one download.
// It is never persisted; every poll cycle re-fetches it.
type DownloadInfo struct {
	ID       string
	Title    string
	Category string
	Status   Status
	// Progress is in [0,1]. Adapters may report raw values outside the
	// range; consumers clamp.
	Progress      float64
	SizeBytes     int64
	DownloadRate  int64
	UploadRate    int64
	ETA           time.Duration
	Ratio         float64
	SavePath      string
	ContentPath   string
	ErrorMessage  string
	AddedAt       time.Time
	CompletedAt   time.Time
	// CanMoveFiles is false while a torrent must keep seeding and its files
	// must not be relocated.
	CanMoveFiles bool
	// CanBeRemoved is true once retention/seeding requirements are satisfied
	// and the entry may be deleted from the back-end.
	CanBeRemoved bool
}

// IsComplete reports whether the snapshot indicates a finished payload.
func (d DownloadInfo) IsComplete() bool {
	switch d.Status {
	case StatusCompleted, StatusSeeding:
		return d.Progress >= 1
	default:
		return false
	}
}

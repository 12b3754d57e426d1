package queue

import (
	"strings"
	"time"

	"berth/internal/downloads"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusDownloading     Status = "downloading"
	StatusStalled         Status = "stalled"
	StatusPaused          Status = "paused"
	StatusSeeding         Status = "seeding"
	StatusCompleted       Status = "completed"
	StatusImporting       Status = "importing"
	StatusSeedingImported Status = "seeding_imported"
	StatusImported        Status = "imported"
	StatusFailed          Status = "failed"
	StatusRemoved         Status = "removed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusStalled,
	StatusPaused,
	StatusSeeding,
	StatusCompleted,
	StatusImporting,
	StatusSeedingImported,
	StatusImported,
	StatusFailed,
	StatusRemoved,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// terminalStatuses are never mutated once reached.
var terminalStatuses = map[Status]struct{}{
	StatusImported: {},
	StatusRemoved:  {},
}

// transferringStatuses drive the short poll interval when present.
var transferringStatuses = map[Status]struct{}{
	StatusQueued:      {},
	StatusDownloading: {},
	StatusSeeding:     {},
	StatusImporting:   {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further mutation.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// IsTransferring reports whether a status represents active data movement.
func IsTransferring(status Status) bool {
	_, ok := transferringStatuses[status]
	return ok
}

// MediaRef links a queue item to the catalog entity it was grabbed for.
// Either MovieID is set, or SeriesID with season/episode identifiers.
type MediaRef struct {
	MovieID      int64
	SeriesID     int64
	SeasonNumber int
	EpisodeIDs   []int64
}

// IsMovie reports whether the reference points at a movie.
func (m MediaRef) IsMovie() bool { return m.MovieID != 0 }

// Item represents one acquisition attempt persisted in SQLite.
type Item struct {
	ID         int64
	ClientID   string
	DownloadID string
	// ContentHash is the stable torrent info-hash when known.
	ContentHash string
	// MagnetURI is the grab's magnet reference, kept for hash fallback
	// matching against back-ends with unstable native ids.
	MagnetURI string
	Title     string
	Protocol  downloads.Protocol
	Media     MediaRef
	Status    Status
	// Progress is clamped to [0,1] on every write.
	Progress     float64
	SizeBytes    int64
	DownloadRate int64
	UploadRate   int64
	ETASeconds   int64
	Ratio        float64
	// ClientPath is the path as the back-end reports it.
	ClientPath string
	// OutputPath is the locally-resolved view of ClientPath.
	OutputPath string
	// OutputPathExact records whether OutputPath came from a configured
	// mapping rather than a heuristic guess.
	OutputPathExact bool
	ImportedPath    string
	Quality         string
	ReleaseGroup    string
	ErrorMessage    string
	ImportAttempts  int
	AutomaticGrab   bool
	IsUpgrade       bool
	AddedAt         time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ImportedAt      *time.Time
	LastAttemptAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsTerminal reports whether the item permits no further mutation.
func (i *Item) IsTerminal() bool { return IsTerminal(i.Status) }

// SetProgress stores a snapshot progress value clamped to [0,1].
func (i *Item) SetProgress(value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	i.Progress = value
}

// SetFailed marks the item failed with the given message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// ClampProgress returns value forced into [0,1].
func ClampProgress(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

package downloads

import "context"

// Protocol identifies the wire protocol family a back-end speaks.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// SourceKind describes how a download is handed to a back-end.
type SourceKind string

const (
	SourceMagnet SourceKind = "magnet"
	SourceFile   SourceKind = "file"
	SourceURL    SourceKind = "url"
)

// Source is the payload for AddDownload: a magnet link, raw torrent/NZB
// bytes, or a URL the back-end fetches itself.
type Source struct {
	Kind   SourceKind
	Magnet string
	Bytes  []byte
	URL    string
	// Filename hints the name for byte payloads (e.g. "release.nzb").
	Filename string
}

// AddOptions carries optional placement parameters for AddDownload.
type AddOptions struct {
	Category string
	SavePath string
	Paused   bool
	Priority int
}

// Client is the normalized capability contract one back-end adapter
// implements over its wire protocol. All calls are synchronous and honor
// context cancellation.
type Client interface {
	// Test verifies connectivity and authentication.
	Test(ctx context.Context) error
	// AddDownload submits a new download and returns the client-native id.
	AddDownload(ctx context.Context, source Source, opts AddOptions) (string, error)
	// GetDownloads returns snapshots for every download, optionally limited
	// to a category.
	GetDownloads(ctx context.Context, category string) ([]DownloadInfo, error)
	// GetDownload returns the snapshot for one download, or ErrNotFound.
	GetDownload(ctx context.Context, id string) (DownloadInfo, error)
	// RemoveDownload deletes a download, optionally with its files.
	RemoveDownload(ctx context.Context, id string, deleteFiles bool) error
	PauseDownload(ctx context.Context, id string) error
	ResumeDownload(ctx context.Context, id string) error
	GetDefaultSavePath(ctx context.Context) (string, error)
	GetCategories(ctx context.Context) ([]string, error)
	// EnsureCategory creates the category when the back-end supports them.
	EnsureCategory(ctx context.Context, name, path string) error
}

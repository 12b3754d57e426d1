package library

import (
	"context"
	"errors"
	"path/filepath"
	"time"
)

// ErrNotFound indicates the requested catalog entity does not exist.
var ErrNotFound = errors.New("catalog entity not found")

// Movie is the catalog view of a single film.
type Movie struct {
	ID         int64
	Title      string
	Year       int
	FolderName string
	RootFolder string
	HasFile    bool
	FileID     int64
}

// Path returns the movie's destination directory.
func (m Movie) Path() string {
	if m.RootFolder == "" || m.FolderName == "" {
		return ""
	}
	return filepath.Join(m.RootFolder, m.FolderName)
}

// Series is the catalog view of a show.
type Series struct {
	ID           int64
	Title        string
	FolderName   string
	RootFolder   string
	SeasonFolder bool
}

// Path returns the series' destination directory.
func (s Series) Path() string {
	if s.RootFolder == "" || s.FolderName == "" {
		return ""
	}
	return filepath.Join(s.RootFolder, s.FolderName)
}

// Episode is one catalog episode within a series.
type Episode struct {
	ID            int64
	SeriesID      int64
	SeasonNumber  int
	EpisodeNumber int
	Title         string
	HasFile       bool
	FileID        int64
}

// FileRecord registers an imported file against its catalog entity.
type FileRecord struct {
	ID           int64
	MovieID      int64
	SeriesID     int64
	EpisodeIDs   []int64
	Path         string
	SizeBytes    int64
	Quality      string
	ReleaseGroup string
	AddedAt      time.Time
}

// Catalog is the media library surface the import pipeline depends on.
type Catalog interface {
	// GetMovie returns the movie for the given id.
	GetMovie(ctx context.Context, id int64) (*Movie, error)
	// GetSeries returns the series for the given id.
	GetSeries(ctx context.Context, id int64) (*Series, error)
	// GetEpisode returns the episode for the given id.
	GetEpisode(ctx context.Context, id int64) (*Episode, error)
	// FindEpisode resolves a series episode by season and episode number.
	FindEpisode(ctx context.Context, seriesID int64, season, episode int) (*Episode, error)
	// GetFile returns a registered file record.
	GetFile(ctx context.Context, id int64) (*FileRecord, error)
	// ListFiles returns every file registered for a movie or series.
	ListFiles(ctx context.Context, movieID, seriesID int64) ([]*FileRecord, error)
	// CreateFile registers a newly imported file and returns its record.
	CreateFile(ctx context.Context, record *FileRecord) (*FileRecord, error)
	// RemoveFile deletes a file record, typically after an upgrade
	// replaced the file on disk.
	RemoveFile(ctx context.Context, id int64) error
	// SetHasFile updates the has-file flag and current file id on the
	// owning movie or episodes.
	SetHasFile(ctx context.Context, record *FileRecord) error
}

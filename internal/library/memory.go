package library

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryCatalog is an in-process Catalog backed by maps. It serves tests and
// single-binary deployments where no external media manager owns the catalog.
type MemoryCatalog struct {
	mu       sync.RWMutex
	movies   map[int64]*Movie
	series   map[int64]*Series
	episodes map[int64]*Episode
	files    map[int64]*FileRecord
	nextFile int64
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		movies:   make(map[int64]*Movie),
		series:   make(map[int64]*Series),
		episodes: make(map[int64]*Episode),
		files:    make(map[int64]*FileRecord),
		nextFile: 1,
	}
}

// AddMovie seeds a movie entity.
func (c *MemoryCatalog) AddMovie(movie *Movie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *movie
	c.movies[movie.ID] = &cp
}

// AddSeries seeds a series entity.
func (c *MemoryCatalog) AddSeries(series *Series) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *series
	c.series[series.ID] = &cp
}

// AddEpisode seeds an episode entity.
func (c *MemoryCatalog) AddEpisode(episode *Episode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *episode
	c.episodes[episode.ID] = &cp
}

func (c *MemoryCatalog) GetMovie(_ context.Context, id int64) (*Movie, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	movie, ok := c.movies[id]
	if !ok {
		return nil, fmt.Errorf("movie %d: %w", id, ErrNotFound)
	}
	cp := *movie
	return &cp, nil
}

func (c *MemoryCatalog) GetSeries(_ context.Context, id int64) (*Series, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	series, ok := c.series[id]
	if !ok {
		return nil, fmt.Errorf("series %d: %w", id, ErrNotFound)
	}
	cp := *series
	return &cp, nil
}

func (c *MemoryCatalog) GetEpisode(_ context.Context, id int64) (*Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	episode, ok := c.episodes[id]
	if !ok {
		return nil, fmt.Errorf("episode %d: %w", id, ErrNotFound)
	}
	cp := *episode
	return &cp, nil
}

func (c *MemoryCatalog) FindEpisode(_ context.Context, seriesID int64, season, episode int) (*Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range c.episodes {
		if candidate.SeriesID == seriesID && candidate.SeasonNumber == season && candidate.EpisodeNumber == episode {
			cp := *candidate
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("series %d episode S%02dE%02d: %w", seriesID, season, episode, ErrNotFound)
}

func (c *MemoryCatalog) GetFile(_ context.Context, id int64) (*FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	file, ok := c.files[id]
	if !ok {
		return nil, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	cp := *file
	return &cp, nil
}

func (c *MemoryCatalog) ListFiles(_ context.Context, movieID, seriesID int64) ([]*FileRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var files []*FileRecord
	for _, file := range c.files {
		if (movieID != 0 && file.MovieID == movieID) || (seriesID != 0 && file.SeriesID == seriesID) {
			cp := *file
			files = append(files, &cp)
		}
	}
	return files, nil
}

func (c *MemoryCatalog) CreateFile(_ context.Context, record *FileRecord) (*FileRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *record
	cp.ID = c.nextFile
	c.nextFile++
	if cp.AddedAt.IsZero() {
		cp.AddedAt = time.Now().UTC()
	}
	stored := cp
	c.files[cp.ID] = &stored
	return &cp, nil
}

func (c *MemoryCatalog) RemoveFile(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.files[id]; !ok {
		return fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	delete(c.files, id)
	for _, movie := range c.movies {
		if movie.FileID == id {
			movie.FileID = 0
			movie.HasFile = false
		}
	}
	for _, episode := range c.episodes {
		if episode.FileID == id {
			episode.FileID = 0
			episode.HasFile = false
		}
	}
	return nil
}

func (c *MemoryCatalog) SetHasFile(_ context.Context, record *FileRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if record.MovieID != 0 {
		movie, ok := c.movies[record.MovieID]
		if !ok {
			return fmt.Errorf("movie %d: %w", record.MovieID, ErrNotFound)
		}
		movie.HasFile = true
		movie.FileID = record.ID
		return nil
	}
	for _, episodeID := range record.EpisodeIDs {
		episode, ok := c.episodes[episodeID]
		if !ok {
			return fmt.Errorf("episode %d: %w", episodeID, ErrNotFound)
		}
		episode.HasFile = true
		episode.FileID = record.ID
	}
	return nil
}

var _ Catalog = (*MemoryCatalog)(nil)

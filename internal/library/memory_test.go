package library

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryCatalogFileLifecycle(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	catalog.AddMovie(&Movie{ID: 7, Title: "Arrival", Year: 2016, RootFolder: "/library/movies", FolderName: "Arrival (2016)"})

	record, err := catalog.CreateFile(ctx, &FileRecord{MovieID: 7, Path: "/library/movies/Arrival (2016)/Arrival.mkv", SizeBytes: 4 << 30})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("expected an assigned file id")
	}
	if err := catalog.SetHasFile(ctx, record); err != nil {
		t.Fatalf("set has file: %v", err)
	}

	movie, err := catalog.GetMovie(ctx, 7)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if !movie.HasFile || movie.FileID != record.ID {
		t.Fatalf("movie not linked to file: %+v", movie)
	}
	if movie.Path() != "/library/movies/Arrival (2016)" {
		t.Fatalf("unexpected movie path %q", movie.Path())
	}

	if err := catalog.RemoveFile(ctx, record.ID); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	movie, err = catalog.GetMovie(ctx, 7)
	if err != nil {
		t.Fatalf("get movie after removal: %v", err)
	}
	if movie.HasFile {
		t.Fatal("expected has-file flag cleared after removal")
	}
	if _, err := catalog.GetFile(ctx, record.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCatalogFindEpisode(t *testing.T) {
	catalog := NewMemoryCatalog()
	ctx := context.Background()

	catalog.AddSeries(&Series{ID: 3, Title: "Severance", RootFolder: "/library/tv", FolderName: "Severance", SeasonFolder: true})
	catalog.AddEpisode(&Episode{ID: 31, SeriesID: 3, SeasonNumber: 2, EpisodeNumber: 4})

	episode, err := catalog.FindEpisode(ctx, 3, 2, 4)
	if err != nil {
		t.Fatalf("find episode: %v", err)
	}
	if episode.ID != 31 {
		t.Fatalf("expected episode 31, got %d", episode.ID)
	}
	if _, err := catalog.FindEpisode(ctx, 3, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

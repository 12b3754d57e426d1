package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"berth/internal/downloads"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/library"
	"berth/internal/queue"
	"berth/internal/testsupport"
	"berth/internal/transfer"
)

func writePayload(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
}

func newHarness(t *testing.T) (*queue.Store, *library.MemoryCatalog, *importer.Importer, *events.Bus, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Library.MinFileSizeMiB = 0
	store := testsupport.NewStore(t)
	catalog := library.NewMemoryCatalog()
	bus := events.NewBus(nil)
	return store, catalog, importer.New(cfg, store, catalog, bus, nil), bus, cfg.Paths.LibraryDir
}

func completedItem(t *testing.T, store *queue.Store, outputPath string, media queue.MediaRef) *queue.Item {
	t.Helper()
	item, err := store.Enqueue(context.Background(), &queue.Item{
		ClientID:   "qbit",
		DownloadID: "hash1",
		Title:      "Arrival.2016.1080p.BluRay",
		Protocol:   downloads.ProtocolTorrent,
		Media:      media,
		Quality:    "Bluray-1080p",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	item.Status = queue.StatusCompleted
	item.OutputPath = outputPath
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("complete: %v", err)
	}
	return item
}

func TestImportMoviePlacesLargestFile(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)
	writePayload(t, filepath.Join(downloadDir, "extras", "featurette.mkv"), 512)
	writePayload(t, filepath.Join(downloadDir, "info.nfo"), 64)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	result, err := imp.Run(ctx, importer.Request{ItemID: item.ID, Info: downloads.DownloadInfo{CanMoveFiles: false}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != queue.Claimed {
		t.Fatalf("expected Claimed, got %v", result.Outcome)
	}
	if len(result.Imported) != 1 {
		t.Fatalf("expected 1 imported file, got %d", len(result.Imported))
	}

	wantTarget := filepath.Join(libraryDir, "movies", "Arrival (2016)", "Arrival.2016.1080p.mkv")
	if result.Imported[0].Target != wantTarget {
		t.Fatalf("unexpected target %q", result.Imported[0].Target)
	}
	if _, err := os.Stat(wantTarget); err != nil {
		t.Fatalf("target missing: %v", err)
	}
	// Torrent payload must survive for seeding.
	if _, err := os.Stat(filepath.Join(downloadDir, "Arrival.2016.1080p.mkv")); err != nil {
		t.Fatalf("source should remain: %v", err)
	}

	loaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusSeedingImported {
		t.Fatalf("expected seeding_imported, got %s", loaded.Status)
	}
	movie, err := catalog.GetMovie(ctx, 42)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if !movie.HasFile {
		t.Fatal("movie should be linked to its file")
	}
}

func TestImportMovieUpgradeReplacesOldFile(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	movieDir := filepath.Join(libraryDir, "movies", "Arrival (2016)")
	oldPath := filepath.Join(movieDir, "Arrival.720p.mkv")
	writePayload(t, oldPath, 1024)

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})
	oldRecord, err := catalog.CreateFile(ctx, &library.FileRecord{MovieID: 42, Path: oldPath, SizeBytes: 1024})
	if err != nil {
		t.Fatalf("seed old file: %v", err)
	}
	if err := catalog.SetHasFile(ctx, oldRecord); err != nil {
		t.Fatalf("link old file: %v", err)
	}

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	item.IsUpgrade = true
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("flag upgrade: %v", err)
	}

	if _, err := imp.Run(ctx, importer.Request{ItemID: item.ID}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("old file should be gone, stat err: %v", err)
	}
	if _, err := catalog.GetFile(ctx, oldRecord.ID); !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("old record should be gone, got %v", err)
	}
	movie, err := catalog.GetMovie(ctx, 42)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if !movie.HasFile || movie.FileID == oldRecord.ID {
		t.Fatalf("movie should point at the new file: %+v", movie)
	}
}

func TestImportSeriesSkipsUnparsableFiles(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddSeries(&library.Series{ID: 3, Title: "Severance", RootFolder: filepath.Join(libraryDir, "tv"), FolderName: "Severance", SeasonFolder: true})
	catalog.AddEpisode(&library.Episode{ID: 31, SeriesID: 3, SeasonNumber: 2, EpisodeNumber: 1})
	catalog.AddEpisode(&library.Episode{ID: 32, SeriesID: 3, SeasonNumber: 2, EpisodeNumber: 2})

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Severance.S02E01.mkv"), 2048)
	writePayload(t, filepath.Join(downloadDir, "Severance.S02E02.mkv"), 2048)
	writePayload(t, filepath.Join(downloadDir, "Severance.Special.mkv"), 2048)

	item := completedItem(t, store, downloadDir, queue.MediaRef{SeriesID: 3, SeasonNumber: 2})
	result, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Imported) != 2 {
		t.Fatalf("expected 2 imported files, got %d", len(result.Imported))
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped file, got %d", result.Skipped)
	}

	seasonDir := filepath.Join(libraryDir, "tv", "Severance", "Season 02")
	for _, name := range []string{"Severance.S02E01.mkv", "Severance.S02E02.mkv"} {
		if _, err := os.Stat(filepath.Join(seasonDir, name)); err != nil {
			t.Fatalf("expected %s in season folder: %v", name, err)
		}
	}
}

func TestImportRejectsBlockedFileTypes(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)
	writePayload(t, filepath.Join(downloadDir, "codec-pack.exe"), 128)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	_, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if !errors.Is(err, importer.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}

	// Nothing may reach the library when the gate trips.
	entries, globErr := filepath.Glob(filepath.Join(libraryDir, "movies", "*", "*"))
	if globErr != nil {
		t.Fatalf("glob: %v", globErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty library, found %v", entries)
	}

	loaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", loaded.Status)
	}
}

func TestImportNotReadyReleasesClaim(t *testing.T) {
	store, catalog, imp, _, _ := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016})

	missing := filepath.Join(t.TempDir(), "not-here-yet")
	item := completedItem(t, store, missing, queue.MediaRef{MovieID: 42})

	_, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if !errors.Is(err, importer.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	loaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Fatalf("claim should be released back to completed, got %s", loaded.Status)
	}
	if loaded.ImportAttempts != 1 {
		t.Fatalf("attempt must still be counted, got %d", loaded.ImportAttempts)
	}
}

func TestImportSecondCallerLosesClaim(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	if _, err := imp.Run(ctx, importer.Request{ItemID: item.ID, Info: downloads.DownloadInfo{CanBeRemoved: true}}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	result, err := imp.Run(ctx, importer.Request{ItemID: item.ID, Info: downloads.DownloadInfo{CanBeRemoved: true}})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Outcome != queue.AlreadyImported {
		t.Fatalf("expected AlreadyImported, got %v", result.Outcome)
	}
	if len(result.Imported) != 0 {
		t.Fatal("losing caller must not import anything")
	}
}

func TestImportAttemptBudget(t *testing.T) {
	store := testsupport.NewStore(t)
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	cfg.Library.MinFileSizeMiB = 0
	imp := importer.New(cfg, store, library.NewMemoryCatalog(), events.NewBus(nil), nil)
	ctx := context.Background()

	missing := filepath.Join(t.TempDir(), "never-appears")
	item := completedItem(t, store, missing, queue.MediaRef{MovieID: 1})

	for i := 0; i < 2; i++ {
		if _, err := imp.Run(ctx, importer.Request{ItemID: item.ID}); !errors.Is(err, importer.ErrNotReady) {
			t.Fatalf("attempt %d: expected ErrNotReady, got %v", i+1, err)
		}
	}

	_, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if !errors.Is(err, importer.ErrAttemptsExhausted) {
		t.Fatalf("expected ErrAttemptsExhausted, got %v", err)
	}
	loaded, getErr := store.GetByID(ctx, item.ID)
	if getErr != nil {
		t.Fatalf("reload: %v", getErr)
	}
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("expected failed after exhausting attempts, got %s", loaded.Status)
	}
}

func TestDefaultModeHardlinksAndReclaimsUsenetSource(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})

	downloadDir := t.TempDir()
	source := filepath.Join(downloadDir, "Arrival.2016.1080p.mkv")
	writePayload(t, source, 4096)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	item.Protocol = downloads.ProtocolUsenet
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("set protocol: %v", err)
	}

	result, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Imported) != 1 {
		t.Fatalf("expected 1 imported file, got %d", len(result.Imported))
	}
	// Temp dirs share a device here, so the link path must win.
	if result.Imported[0].Mode != transfer.ModeHardlink {
		t.Fatalf("expected hardlink mode on same device, got %s", result.Imported[0].Mode)
	}
	if _, err := os.Stat(result.Imported[0].Target); err != nil {
		t.Fatalf("target missing: %v", err)
	}
	// Usenet sources are ours to consume.
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatalf("usenet source should be reclaimed, stat err: %v", err)
	}
}

func TestImportRejectsDownloadRoot(t *testing.T) {
	store, catalog, imp, _, _ := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016})

	root := t.TempDir()
	writePayload(t, filepath.Join(root, "Unrelated.Download.mkv"), 4096)

	item := completedItem(t, store, root, queue.MediaRef{MovieID: 42})
	_, err := imp.Run(ctx, importer.Request{ItemID: item.ID, DownloadRoot: root})
	if !errors.Is(err, importer.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for download root, got %v", err)
	}

	loaded, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Fatalf("claim should be released back to completed, got %s", loaded.Status)
	}
}

func TestImportIgnoresHiddenFiles(t *testing.T) {
	store, catalog, imp, _, libraryDir := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016, RootFolder: filepath.Join(libraryDir, "movies"), FolderName: "Arrival (2016)"})

	downloadDir := t.TempDir()
	// The hidden decoy is the largest file; candidate selection must never
	// see it.
	writePayload(t, filepath.Join(downloadDir, ".cache", "decoy.mkv"), 8192)
	writePayload(t, filepath.Join(downloadDir, ".hidden.mkv"), 8192)
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	result, err := imp.Run(ctx, importer.Request{ItemID: item.ID})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Imported) != 1 {
		t.Fatalf("expected 1 imported file, got %d", len(result.Imported))
	}
	if filepath.Base(result.Imported[0].Target) != "Arrival.2016.1080p.mkv" {
		t.Fatalf("hidden file imported: %s", result.Imported[0].Target)
	}
}

func TestHiddenFilesStillTripSecurityGate(t *testing.T) {
	store, catalog, imp, _, _ := newHarness(t)
	ctx := context.Background()

	catalog.AddMovie(&library.Movie{ID: 42, Title: "Arrival", Year: 2016})

	downloadDir := t.TempDir()
	writePayload(t, filepath.Join(downloadDir, "Arrival.2016.1080p.mkv"), 4096)
	writePayload(t, filepath.Join(downloadDir, ".payload", "installer.exe"), 128)

	item := completedItem(t, store, downloadDir, queue.MediaRef{MovieID: 42})
	if _, err := imp.Run(ctx, importer.Request{ItemID: item.ID}); !errors.Is(err, importer.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestParseEpisodeNumbers(t *testing.T) {
	cases := []struct {
		name     string
		season   int
		episodes []int
		ok       bool
	}{
		{"Show.S02E04.1080p.mkv", 2, []int{4}, true},
		{"Show.s01.e10.mkv", 1, []int{10}, true},
		{"Show.S01E01E02.mkv", 1, []int{1, 2}, true},
		{"Show.S03E05-E06.mkv", 3, []int{5, 6}, true},
		{"Show.1x07.mkv", 1, []int{7}, true},
		{"Movie.2016.1080p.mkv", 0, nil, false},
	}
	for _, tc := range cases {
		numbers, ok := importer.ParseEpisodeNumbers(tc.name)
		if ok != tc.ok {
			t.Errorf("%s: ok=%v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		if numbers.Season != tc.season {
			t.Errorf("%s: season=%d, want %d", tc.name, numbers.Season, tc.season)
		}
		if len(numbers.Episodes) != len(tc.episodes) {
			t.Errorf("%s: episodes=%v, want %v", tc.name, numbers.Episodes, tc.episodes)
			continue
		}
		for i, episode := range tc.episodes {
			if numbers.Episodes[i] != episode {
				t.Errorf("%s: episodes=%v, want %v", tc.name, numbers.Episodes, tc.episodes)
				break
			}
		}
	}
}

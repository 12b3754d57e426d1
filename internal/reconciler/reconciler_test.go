package reconciler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"berth/internal/config"
	"berth/internal/downloads"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/library"
	"berth/internal/queue"
	"berth/internal/reconciler"
	"berth/internal/testsupport"
)

const torrentHash = "aabbccddeeff00112233aabbccddeeff00112233"

type fixture struct {
	cfg     *config.Config
	store   *queue.Store
	catalog *library.MemoryCatalog
	fake    *testsupport.FakeClient
	bus     *events.Bus
	rec     *reconciler.Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithClient(t, config.Client{
		ID:       "qbit",
		Name:     "qBittorrent",
		Type:     "qbittorrent",
		Protocol: "torrent",
		Enabled:  true,
		Category: "berth",
	})
}

func newFixtureWithClient(t *testing.T, client config.Client) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithClient(client))
	cfg.Library.MinFileSizeMiB = 0

	fake := testsupport.NewFakeClient()
	dir := directory.New(cfg.Clients, func(config.Client) (downloads.Client, error) {
		return fake, nil
	}, nil)

	store := testsupport.NewStore(t)
	catalog := library.NewMemoryCatalog()
	bus := events.NewBus(nil)
	imp := importer.New(cfg, store, catalog, bus, nil)
	return &fixture{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		fake:    fake,
		bus:     bus,
		rec:     reconciler.New(cfg, store, dir, imp, bus, nil),
	}
}

func (f *fixture) enqueue(t *testing.T, item *queue.Item) *queue.Item {
	t.Helper()
	if item.ClientID == "" {
		item.ClientID = "qbit"
	}
	if item.Protocol == "" {
		item.Protocol = downloads.ProtocolTorrent
	}
	if item.Title == "" {
		item.Title = "Arrival.2016.1080p.BluRay"
	}
	stored, err := f.store.Enqueue(context.Background(), item)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return stored
}

func TestPollUpdatesProgressAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 1}})
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:           torrentHash,
		Title:        item.Title,
		Status:       downloads.StatusDownloading,
		Progress:     0.5,
		SizeBytes:    1 << 30,
		DownloadRate: 2 << 20,
		ETA:          90 * time.Second,
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusDownloading {
		t.Fatalf("expected downloading, got %s", loaded.Status)
	}
	if loaded.Progress != 0.5 {
		t.Fatalf("expected progress 0.5, got %v", loaded.Progress)
	}
	if loaded.ETASeconds != 90 {
		t.Fatalf("expected eta 90s, got %d", loaded.ETASeconds)
	}
	if loaded.StartedAt == nil {
		t.Fatal("expected StartedAt to be stamped")
	}
	if loaded.ContentHash != torrentHash {
		t.Fatalf("expected content hash captured, got %q", loaded.ContentHash)
	}
}

func TestPollImportsCompletedDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.catalog.AddMovie(&library.Movie{
		ID: 42, Title: "Arrival", Year: 2016,
		RootFolder: filepath.Join(f.cfg.Paths.LibraryDir, "movies"), FolderName: "Arrival (2016)",
	})

	downloadDir := filepath.Join(t.TempDir(), "Arrival.2016.1080p.BluRay")
	payload := filepath.Join(downloadDir, "Arrival.2016.1080p.mkv")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(payload, make([]byte, 4096), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 42}})
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:          torrentHash,
		Title:       item.Title,
		Status:      downloads.StatusSeeding,
		Progress:    1,
		ContentPath: downloadDir,
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusSeedingImported {
		t.Fatalf("expected seeding_imported after poll, got %s", loaded.Status)
	}
	target := filepath.Join(f.cfg.Paths.LibraryDir, "movies", "Arrival (2016)", "Arrival.2016.1080p.mkv")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("imported file missing: %v", err)
	}
}

func TestMatchFallbackRewritesNativeID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: "temporary-id", ContentHash: torrentHash, Media: queue.MediaRef{MovieID: 1}})
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:       torrentHash,
		Title:    item.Title,
		Status:   downloads.StatusDownloading,
		Progress: 0.1,
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.DownloadID != torrentHash {
		t.Fatalf("expected native id rewritten to %s, got %s", torrentHash, loaded.DownloadID)
	}
}

func TestMissingDownloadRespectsGraceWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := f.enqueue(t, &queue.Item{DownloadID: "fresh", Media: queue.MediaRef{MovieID: 1}})
	stale := f.enqueue(t, &queue.Item{
		DownloadID: "stale",
		Media:      queue.MediaRef{MovieID: 2},
		AddedAt:    time.Now().UTC().Add(-10 * time.Minute),
	})

	f.rec.PollOnce(ctx)

	loadedFresh, err := f.store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if loadedFresh.Status != queue.StatusQueued {
		t.Fatalf("fresh item inside grace must stay queued, got %s", loadedFresh.Status)
	}

	// A download that vanishes before ever completing is an unexplained
	// loss, not an operator removal.
	loadedStale, err := f.store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if loadedStale.Status != queue.StatusFailed {
		t.Fatalf("stale item must be marked failed, got %s", loadedStale.Status)
	}
	records, err := f.store.HistoryForItem(ctx, stale.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].EventType != queue.HistoryDownloadFailed {
		t.Fatalf("expected one download-failed record, got %+v", records)
	}
}

func TestVanishedCompletedDownloadIsRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-10 * time.Minute)
	item := f.enqueue(t, &queue.Item{
		DownloadID: "finished-then-gone",
		Media:      queue.MediaRef{MovieID: 1},
		AddedAt:    past,
	})
	item.Status = queue.StatusCompleted
	item.CompletedAt = &past
	if err := f.store.Update(ctx, item); err != nil {
		t.Fatalf("complete: %v", err)
	}

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusRemoved {
		t.Fatalf("completed item vanishing must close out removed, got %s", loaded.Status)
	}
}

func TestMagnetGetsLongerGrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 6 minutes old: past the torrent grace, inside the magnet one.
	item := f.enqueue(t, &queue.Item{
		DownloadID: "magnet-pending",
		MagnetURI:  "magnet:?xt=urn:btih:" + torrentHash,
		Media:      queue.MediaRef{MovieID: 1},
		AddedAt:    time.Now().UTC().Add(-6 * time.Minute),
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusQueued {
		t.Fatalf("magnet inside metadata grace must survive, got %s", loaded.Status)
	}
}

func TestSeedingImportedFinalizedWhenRemovable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 1}})
	item.Status = queue.StatusCompleted
	if err := f.store.Update(ctx, item); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, _, err := f.store.ClaimForImport(ctx, item.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.store.MarkImported(ctx, item.ID, "/library/movie.mkv", true); err != nil {
		t.Fatalf("mark imported: %v", err)
	}
	if err := f.store.RecordImport(ctx, item, "/downloads/movie.mkv", "/library/movie.mkv"); err != nil {
		t.Fatalf("record import: %v", err)
	}

	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:           torrentHash,
		Status:       downloads.StatusSeeding,
		Progress:     1,
		CanBeRemoved: true,
	})

	f.rec.PollOnce(ctx)

	if _, err := f.store.GetByID(ctx, item.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected finalized row deleted, got %v", err)
	}
	if len(f.fake.Removed) != 1 || f.fake.Removed[0] != torrentHash {
		t.Fatalf("expected back-end removal of %s, got %v", torrentHash, f.fake.Removed)
	}
	records, err := f.store.HistoryForItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected import history to survive row deletion")
	}
}

func TestGrabTracksAndRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fake.NextAddedID = torrentHash
	item, err := f.rec.Grab(ctx, reconciler.GrabRequest{
		ClientID: "qbit",
		Source: downloads.Source{
			Kind:   downloads.SourceMagnet,
			Magnet: "magnet:?xt=urn:btih:" + torrentHash + "&dn=Arrival",
		},
		Title:   "Arrival.2016.1080p.BluRay",
		Media:   queue.MediaRef{MovieID: 42},
		Quality: "Bluray-1080p",
	})
	if err != nil {
		t.Fatalf("grab: %v", err)
	}
	if item.DownloadID != torrentHash {
		t.Fatalf("expected native id %s, got %s", torrentHash, item.DownloadID)
	}
	if item.ContentHash != torrentHash {
		t.Fatalf("expected content hash from magnet, got %q", item.ContentHash)
	}
	if f.fake.CallCount("addDownload") != 1 {
		t.Fatalf("expected one addDownload call, got %d", f.fake.CallCount("addDownload"))
	}

	records, err := f.store.HistoryForItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].EventType != queue.HistoryGrabbed {
		t.Fatalf("expected one grabbed record, got %+v", records)
	}
}

func TestCleanupOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:           "untracked",
		Title:        "Someone.Elses.Download",
		Status:       downloads.StatusCompleted,
		Progress:     1,
		CanBeRemoved: true,
	})

	orphans, err := f.rec.CleanupOrphans(ctx, true)
	if err != nil {
		t.Fatalf("dry-run: %v", err)
	}
	if len(orphans) != 1 || orphans[0].DownloadID != "untracked" {
		t.Fatalf("expected one orphan, got %+v", orphans)
	}
	if len(f.fake.Removed) != 0 {
		t.Fatal("dry run must not remove anything")
	}

	if _, err := f.rec.CleanupOrphans(ctx, false); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(f.fake.Removed) != 1 {
		t.Fatalf("expected orphan removed, got %v", f.fake.Removed)
	}
}

func TestCleanupOrphansHonorsRetention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Untracked but still under seeding obligations; deleting its entry
	// would break the commitment.
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:           "still-seeding",
		Title:        "Someone.Elses.Seed",
		Status:       downloads.StatusSeeding,
		Progress:     1,
		CanBeRemoved: false,
	})

	orphans, err := f.rec.CleanupOrphans(ctx, false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected no removable orphans, got %+v", orphans)
	}
	if len(f.fake.Removed) != 0 {
		t.Fatalf("retention-bound download must survive, removed %v", f.fake.Removed)
	}
}

func TestSeedingBelowFullProgressSurfacesAsSeeding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 1}})
	// The back-end considers it complete and uploads, but the payload has
	// not fully arrived yet (recheck in progress).
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:       torrentHash,
		Title:    item.Title,
		Status:   downloads.StatusSeeding,
		Progress: 0.98,
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusSeeding {
		t.Fatalf("expected seeding, got %s", loaded.Status)
	}
	// Import must wait for the completion signal.
	if loaded.ImportAttempts != 0 {
		t.Fatalf("no import may run yet, attempts=%d", loaded.ImportAttempts)
	}
}

func TestIncompleteAreaMappingTranslatesInFlightPaths(t *testing.T) {
	f := newFixtureWithClient(t, config.Client{
		ID:       "qbit",
		Name:     "qBittorrent",
		Type:     "qbittorrent",
		Protocol: "torrent",
		Enabled:  true,
		Category: "berth",
		Mappings: []config.PathMapping{
			{Remote: "/data/complete", Local: "/mnt/complete", Area: "completed"},
			{Remote: "/data/incomplete", Local: "/mnt/incomplete", Area: "incomplete"},
		},
	})
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 1}})
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:          torrentHash,
		Title:       item.Title,
		Status:      downloads.StatusDownloading,
		Progress:    0.4,
		ContentPath: "/data/incomplete/Arrival.2016.1080p.BluRay",
	})

	f.rec.PollOnce(ctx)

	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.OutputPath != "/mnt/incomplete/Arrival.2016.1080p.BluRay" {
		t.Fatalf("expected staging-area translation, got %q", loaded.OutputPath)
	}
	if !loaded.OutputPathExact {
		t.Fatal("configured mapping must be tagged exact")
	}

	// Once the back-end relocates the finished payload, the completed-area
	// mapping takes over.
	f.fake.SetSnapshots(downloads.DownloadInfo{
		ID:          torrentHash,
		Title:       item.Title,
		Status:      downloads.StatusCompleted,
		Progress:    1,
		ContentPath: "/data/complete/Arrival.2016.1080p.BluRay",
	})

	f.rec.PollOnce(ctx)

	loaded, err = f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.OutputPath != "/mnt/complete/Arrival.2016.1080p.BluRay" {
		t.Fatalf("expected completed-area translation, got %q", loaded.OutputPath)
	}
}

func TestPauseResumeControls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.enqueue(t, &queue.Item{DownloadID: torrentHash, Media: queue.MediaRef{MovieID: 1}})

	if err := f.rec.PauseItem(ctx, item.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := f.rec.ResumeItem(ctx, item.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(f.fake.Paused) != 1 || len(f.fake.Resumed) != 1 {
		t.Fatalf("expected pause and resume calls, got %v / %v", f.fake.Paused, f.fake.Resumed)
	}

	if err := f.rec.RemoveItem(ctx, item.ID, true, true); err != nil {
		t.Fatalf("remove: %v", err)
	}
	loaded, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Status != queue.StatusRemoved {
		t.Fatalf("expected removed, got %s", loaded.Status)
	}
	if _, err := f.store.GetByID(ctx, item.ID+999); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

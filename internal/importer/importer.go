package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"berth/internal/config"
	"berth/internal/downloads"
	"berth/internal/events"
	"berth/internal/library"
	"berth/internal/logging"
	"berth/internal/queue"
	"berth/internal/transfer"
)

// Request identifies one claimed import handoff.
type Request struct {
	ItemID int64
	Info   downloads.DownloadInfo
	// RemoteMount relaxes candidate size checks for pointer files on
	// network-mounted download areas.
	RemoteMount bool
	// DownloadRoot is the back-end's base download directory in local
	// terms. An output path that resolves to the root itself points at
	// every download at once and is rejected as not ready.
	DownloadRoot string
}

// FileResult reports one file placed into the library.
type FileResult struct {
	Source     string
	Target     string
	Mode       transfer.Mode
	Bytes      int64
	EpisodeIDs []int64
}

// JobResult summarizes one import attempt.
type JobResult struct {
	Outcome  queue.ClaimOutcome
	Imported []FileResult
	// Skipped counts candidate files left behind, e.g. series files whose
	// episode numbers could not be resolved.
	Skipped int
	// StillSeeding reports the item landed in seeding_imported rather than
	// the terminal imported status.
	StillSeeding bool
}

// Importer runs the exactly-once import pipeline for completed downloads.
type Importer struct {
	cfg     *config.Config
	store   *queue.Store
	catalog library.Catalog
	engine  *transfer.Engine
	bus     *events.Bus
	gate    *securityGate
	logger  *slog.Logger
}

// New constructs an importer.
func New(cfg *config.Config, store *queue.Store, catalog library.Catalog, bus *events.Bus, logger *slog.Logger) *Importer {
	return &Importer{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		engine:  transfer.NewEngine(logger),
		bus:     bus,
		gate:    newSecurityGate(cfg.Library.BlockedExtensions),
		logger:  logging.NewComponentLogger(logger, "importer"),
	}
}

// Run claims and imports one completed queue item. The claim is the
// serialization point: callers may race freely and at most one wins. Losing
// callers get the claim outcome back with no side effects.
func (im *Importer) Run(ctx context.Context, req Request) (JobResult, error) {
	outcome, item, err := im.store.ClaimForImport(ctx, req.ItemID)
	if err != nil {
		return JobResult{Outcome: outcome}, err
	}
	if outcome != queue.Claimed {
		return JobResult{Outcome: outcome}, nil
	}

	log := im.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldClientID, item.ClientID),
		logging.String(logging.FieldDownloadID, item.DownloadID))
	log.Info("import claimed",
		logging.Int("attempt", item.ImportAttempts),
		logging.String("title", item.Title))

	if im.cfg.Importer.MaxAttempts > 0 && item.ImportAttempts > im.cfg.Importer.MaxAttempts {
		failErr := fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, item.ImportAttempts-1)
		im.fail(ctx, item, failErr, log)
		return JobResult{Outcome: outcome}, failErr
	}

	result, runErr := im.process(ctx, item, req, log)
	if runErr == nil {
		result.Outcome = outcome
		return result, nil
	}

	if IsRetryable(runErr) {
		log.Info("import not ready, releasing claim",
			logging.Error(runErr),
			logging.Int("attempt", item.ImportAttempts))
		if releaseErr := im.store.ReleaseClaim(ctx, item.ID); releaseErr != nil {
			log.Error("release import claim", logging.Error(releaseErr))
		}
		return JobResult{Outcome: outcome}, runErr
	}

	im.fail(ctx, item, runErr, log)
	return JobResult{Outcome: outcome}, runErr
}

func (im *Importer) fail(ctx context.Context, item *queue.Item, cause error, log *slog.Logger) {
	log.Error("import failed", logging.Error(cause))
	if err := im.store.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
		log.Error("mark item failed", logging.Error(err))
	}
	if err := im.store.RecordFailure(ctx, item, queue.HistoryImportFailed, cause.Error()); err != nil {
		log.Error("record import failure", logging.Error(err))
	}
	im.publish(ctx, events.TypeFailed, item, cause.Error())
}

func (im *Importer) process(ctx context.Context, item *queue.Item, req Request, log *slog.Logger) (JobResult, error) {
	if !item.Media.IsMovie() && item.Media.SeriesID == 0 {
		return JobResult{}, ErrUnmatchedMedia
	}
	if item.OutputPath == "" {
		return JobResult{}, fmt.Errorf("%w: no resolved output path", ErrNotReady)
	}
	// A snapshot without a content path falls back to the client's save
	// path, which for some back-ends is the download root. Scanning it
	// would pick up unrelated downloads.
	if req.DownloadRoot != "" && filepath.Clean(item.OutputPath) == filepath.Clean(req.DownloadRoot) {
		return JobResult{}, fmt.Errorf("%w: output path %s is the download root", ErrNotReady, item.OutputPath)
	}

	scanner := &candidateScanner{
		minSizeBytes: im.cfg.Library.MinFileSizeMiB << 20,
		remoteMount:  req.RemoteMount,
	}
	allFiles, candidates, err := scanner.Scan(item.OutputPath)
	if err != nil {
		return JobResult{}, err
	}
	if err := im.gate.Check(allFiles); err != nil {
		return JobResult{}, err
	}
	if len(candidates) == 0 {
		return JobResult{}, fmt.Errorf("%w under %s", ErrNoCandidates, item.OutputPath)
	}

	plan := resolveTransferPlan(im.cfg.Importer.TransferMode, item, req.Info)

	var result JobResult
	if item.Media.IsMovie() {
		result, err = im.importMovie(ctx, item, candidates, plan)
	} else {
		result, err = im.importSeries(ctx, item, candidates, plan)
	}
	if err != nil {
		return JobResult{}, err
	}

	stillSeeding := item.Protocol == downloads.ProtocolTorrent && !plan.deleteSource && !req.Info.CanBeRemoved
	result.StillSeeding = stillSeeding

	importedPath := ""
	if len(result.Imported) > 0 {
		importedPath = result.Imported[0].Target
	}
	if err := im.store.MarkImported(ctx, item.ID, importedPath, stillSeeding); err != nil {
		return JobResult{}, fmt.Errorf("finalize import: %w", err)
	}
	item.ImportedPath = importedPath
	if err := im.store.RecordImport(ctx, item, item.OutputPath, importedPath); err != nil {
		log.Error("record import history", logging.Error(err))
	}
	im.publish(ctx, events.TypeImported, item, "")

	log.Info("import complete",
		logging.Int("files", len(result.Imported)),
		logging.Int("skipped", result.Skipped),
		logging.Bool("still_seeding", stillSeeding),
		logging.String("path", importedPath))
	return result, nil
}

// importMovie places the largest candidate and registers it, replacing any
// previous file only after the new record exists.
func (im *Importer) importMovie(ctx context.Context, item *queue.Item, candidates []Candidate, plan transferPlan) (JobResult, error) {
	movie, err := im.catalog.GetMovie(ctx, item.Media.MovieID)
	if err != nil {
		return JobResult{}, fmt.Errorf("resolve movie %d: %w", item.Media.MovieID, err)
	}

	targetDir := movie.Path()
	if targetDir == "" {
		folder := movie.FolderName
		if folder == "" {
			folder = fmt.Sprintf("%s (%d)", movie.Title, movie.Year)
		}
		targetDir = filepath.Join(im.cfg.Paths.LibraryDir, im.cfg.Library.MoviesDir, folder)
	}
	if err := im.checkTarget(targetDir); err != nil {
		return JobResult{}, err
	}

	previous, err := im.catalog.ListFiles(ctx, movie.ID, 0)
	if err != nil {
		return JobResult{}, fmt.Errorf("list existing files: %w", err)
	}

	// Candidates are size-sorted; the largest is the feature.
	candidate := candidates[0]
	placed, err := im.place(candidate, filepath.Join(targetDir, candidate.Name), plan)
	if err != nil {
		return JobResult{}, err
	}

	record := &library.FileRecord{
		MovieID:      movie.ID,
		Path:         placed.Target,
		SizeBytes:    candidate.SizeBytes,
		Quality:      item.Quality,
		ReleaseGroup: item.ReleaseGroup,
	}
	stored, err := im.catalog.CreateFile(ctx, record)
	if err != nil {
		return JobResult{}, fmt.Errorf("register file: %w", err)
	}
	if err := im.catalog.SetHasFile(ctx, stored); err != nil {
		return JobResult{}, fmt.Errorf("link file to movie: %w", err)
	}

	im.removeReplaced(ctx, previous, placed.Target)
	return JobResult{Imported: []FileResult{placed}}, nil
}

// importSeries places every candidate whose episode numbers resolve against
// the catalog. Unresolvable files are skipped, not fatal, as long as at
// least one file lands.
func (im *Importer) importSeries(ctx context.Context, item *queue.Item, candidates []Candidate, plan transferPlan) (JobResult, error) {
	series, err := im.catalog.GetSeries(ctx, item.Media.SeriesID)
	if err != nil {
		return JobResult{}, fmt.Errorf("resolve series %d: %w", item.Media.SeriesID, err)
	}

	seriesDir := series.Path()
	if seriesDir == "" {
		folder := series.FolderName
		if folder == "" {
			folder = series.Title
		}
		seriesDir = filepath.Join(im.cfg.Paths.LibraryDir, im.cfg.Library.TVDir, folder)
	}
	if err := im.checkTarget(seriesDir); err != nil {
		return JobResult{}, err
	}

	var result JobResult
	for _, candidate := range candidates {
		numbers, ok := ParseEpisodeNumbers(candidate.Name)
		if !ok {
			im.logger.Warn("cannot parse episode numbers, skipping file",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("file", candidate.Name))
			result.Skipped++
			continue
		}

		episodeIDs, previous, resolveErr := im.resolveEpisodes(ctx, series.ID, numbers)
		if resolveErr != nil {
			im.logger.Warn("episode not in catalog, skipping file",
				logging.Int64(logging.FieldItemID, item.ID),
				logging.String("file", candidate.Name),
				logging.Error(resolveErr))
			result.Skipped++
			continue
		}

		targetDir := seriesDir
		if series.SeasonFolder {
			targetDir = filepath.Join(seriesDir, fmt.Sprintf("Season %02d", numbers.Season))
		}
		placed, placeErr := im.place(candidate, filepath.Join(targetDir, candidate.Name), plan)
		if placeErr != nil {
			return JobResult{}, placeErr
		}
		placed.EpisodeIDs = episodeIDs

		record := &library.FileRecord{
			SeriesID:     series.ID,
			EpisodeIDs:   episodeIDs,
			Path:         placed.Target,
			SizeBytes:    candidate.SizeBytes,
			Quality:      item.Quality,
			ReleaseGroup: item.ReleaseGroup,
		}
		stored, createErr := im.catalog.CreateFile(ctx, record)
		if createErr != nil {
			return JobResult{}, fmt.Errorf("register file: %w", createErr)
		}
		if linkErr := im.catalog.SetHasFile(ctx, stored); linkErr != nil {
			return JobResult{}, fmt.Errorf("link file to episodes: %w", linkErr)
		}

		im.removeReplaced(ctx, previous, placed.Target)
		result.Imported = append(result.Imported, placed)
	}

	if len(result.Imported) == 0 {
		return JobResult{}, fmt.Errorf("%w: no file matched a catalog episode", ErrNoCandidates)
	}
	return result, nil
}

// resolveEpisodes maps parsed numbers to catalog episode ids and collects
// the files those episodes currently hold, for upgrade replacement.
func (im *Importer) resolveEpisodes(ctx context.Context, seriesID int64, numbers EpisodeNumbers) ([]int64, []*library.FileRecord, error) {
	ids := make([]int64, 0, len(numbers.Episodes))
	var previous []*library.FileRecord
	seen := make(map[int64]struct{})
	for _, episodeNumber := range numbers.Episodes {
		episode, err := im.catalog.FindEpisode(ctx, seriesID, numbers.Season, episodeNumber)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, episode.ID)
		if episode.HasFile && episode.FileID != 0 {
			if _, dup := seen[episode.FileID]; dup {
				continue
			}
			seen[episode.FileID] = struct{}{}
			if record, fileErr := im.catalog.GetFile(ctx, episode.FileID); fileErr == nil {
				previous = append(previous, record)
			}
		}
	}
	return ids, previous, nil
}

func (im *Importer) place(candidate Candidate, target string, plan transferPlan) (FileResult, error) {
	result, err := im.engine.Transfer(transfer.Request{
		Source:          candidate.Path,
		Target:          target,
		AllowHardlink:   plan.allowHardlink,
		DeleteSource:    plan.deleteSource,
		PreserveSymlink: im.cfg.Importer.PreserveSymlinks,
	})
	if err != nil {
		return FileResult{}, fmt.Errorf("transfer %s: %w", candidate.Name, err)
	}
	return FileResult{
		Source: candidate.Path,
		Target: target,
		Mode:   result.Mode,
		Bytes:  result.Bytes,
	}, nil
}

// removeReplaced deletes superseded files after the replacement is safely
// registered. Failures are logged and swallowed: the upgrade already
// succeeded, a leftover file is an annoyance rather than data loss.
func (im *Importer) removeReplaced(ctx context.Context, previous []*library.FileRecord, newPath string) {
	for _, record := range previous {
		if record.Path == newPath {
			continue
		}
		if err := im.catalog.RemoveFile(ctx, record.ID); err != nil {
			im.logger.Warn("remove superseded file record", logging.Error(err))
			continue
		}
		if record.Path == "" {
			continue
		}
		if err := transfer.RemoveIfExists(record.Path); err != nil {
			im.logger.Warn("delete superseded file",
				logging.String("path", record.Path),
				logging.Error(err))
		}
	}
}

// checkTarget verifies the destination can be written before any transfer
// starts. A missing or read-only library volume is retryable.
func (im *Importer) checkTarget(targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTargetUnavailable, targetDir, err)
	}
	scratch, err := os.CreateTemp(targetDir, ".berth-write-check-*")
	if err != nil {
		return fmt.Errorf("%w: %s not writable: %v", ErrTargetUnavailable, targetDir, err)
	}
	name := scratch.Name()
	_ = scratch.Close()
	_ = os.Remove(name)
	return nil
}

func (im *Importer) publish(ctx context.Context, eventType events.Type, item *queue.Item, message string) {
	if im.bus == nil {
		return
	}
	stats, err := im.store.QueueStats(ctx)
	if err != nil {
		stats = queue.Stats{}
	}
	im.bus.Publish(events.Event{Type: eventType, Item: item, Message: message, Stats: stats})
}

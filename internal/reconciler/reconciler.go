package reconciler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"berth/internal/config"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/logging"
	"berth/internal/pathmap"
	"berth/internal/queue"
)

// Reconciler drives the poll loop that keeps queue state synchronized with
// the download back-ends and feeds completed items to the importer.
type Reconciler struct {
	cfg      *config.Config
	store    *queue.Store
	clients  *directory.Directory
	importer *importer.Importer
	bus      *events.Bus
	logger   *slog.Logger

	translators map[string]clientTranslators

	pollNow   chan struct{}
	polling   atomic.Bool
	firstPoll atomic.Bool

	lastOrphanSweep time.Time
	orphanMu        sync.Mutex

	// observePoll, when set, receives the wall time of each poll pass.
	observePoll func(seconds float64)

	// now is swappable for tests.
	now func() time.Time
}

// clientTranslators holds one client's per-area path translators. Snapshots
// of in-flight downloads report paths under the staging area; finished ones
// report the completed area.
type clientTranslators struct {
	completed  *pathmap.Translator
	incomplete *pathmap.Translator
}

// New constructs a reconciler over the given collaborators.
func New(cfg *config.Config, store *queue.Store, clients *directory.Directory, imp *importer.Importer, bus *events.Bus, logger *slog.Logger) *Reconciler {
	translators := make(map[string]clientTranslators, len(cfg.Clients))
	for _, client := range cfg.Clients {
		var completed, incomplete []config.PathMapping
		for _, mapping := range client.Mappings {
			if mapping.Area == "incomplete" {
				incomplete = append(incomplete, mapping)
				continue
			}
			completed = append(completed, mapping)
		}
		// In-flight paths try the staging mappings first and fall back to
		// the completed-area ones.
		translators[client.ID] = clientTranslators{
			completed:  pathmap.New(completed),
			incomplete: pathmap.New(append(incomplete, completed...)),
		}
	}

	r := &Reconciler{
		cfg:         cfg,
		store:       store,
		clients:     clients,
		importer:    imp,
		bus:         bus,
		logger:      logging.NewComponentLogger(logger, "reconciler"),
		translators: translators,
		pollNow:     make(chan struct{}, 1),
		now:         func() time.Time { return time.Now().UTC() },
	}
	r.firstPoll.Store(true)
	r.lastOrphanSweep = r.now()
	return r
}

// Run executes the poll loop until the context is canceled. Rows stranded in
// importing by a previous crash are released before the first pass.
func (r *Reconciler) Run(ctx context.Context) error {
	reset, err := r.store.ResetStuckImporting(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		r.logger.Info("released stale import claims", logging.Int64("count", reset))
	}

	r.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.pollNow:
			r.PollOnce(ctx)
		case <-time.After(r.interval(ctx)):
			r.PollOnce(ctx)
		}
	}
}

// SetPollObserver registers a callback that receives each poll pass
// duration in seconds. Must be called before Run.
func (r *Reconciler) SetPollObserver(fn func(seconds float64)) {
	r.observePoll = fn
}

// ForcePoll schedules an immediate poll pass without waiting out the
// interval. Safe to call from any goroutine.
func (r *Reconciler) ForcePoll() {
	select {
	case r.pollNow <- struct{}{}:
	default:
	}
}

// interval picks the poll cadence: short while anything is actively moving
// data, long when the queue is idle.
func (r *Reconciler) interval(ctx context.Context) time.Duration {
	active := time.Duration(r.cfg.Reconciler.ActivePollSeconds) * time.Second
	idle := time.Duration(r.cfg.Reconciler.IdlePollSeconds) * time.Second

	items, err := r.store.Active(ctx)
	if err != nil {
		return idle
	}
	for _, item := range items {
		if queue.IsTransferring(item.Status) {
			return active
		}
	}
	return idle
}

// PollOnce runs a single reconciliation pass: one concurrent sweep per
// enabled client, then a FIFO import drain of everything that completed.
// Overlapping calls collapse; a pass already in flight makes this a no-op.
func (r *Reconciler) PollOnce(ctx context.Context) {
	if !r.polling.CompareAndSwap(false, true) {
		return
	}
	defer r.polling.Store(false)

	if r.observePoll != nil {
		start := r.now()
		defer func() { r.observePoll(r.now().Sub(start).Seconds()) }()
	}

	startup := r.firstPoll.Swap(false)
	managed := r.clients.Enabled()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pending []importer.Request
	)
	for _, client := range managed {
		wg.Add(1)
		go func(client *directory.Managed) {
			defer wg.Done()
			sweepCtx := ctx
			if startup {
				timeout := time.Duration(r.cfg.Reconciler.StartupCallTimeoutSeconds) * time.Second
				var cancel context.CancelFunc
				sweepCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			requests := r.sweepClient(sweepCtx, client)
			mu.Lock()
			pending = append(pending, requests...)
			mu.Unlock()
		}(client)
	}
	wg.Wait()

	r.drainImports(ctx, pending)
	r.maybeSweepOrphans(ctx, managed)
}

// drainImports runs claimed imports one at a time in queue order. The claim
// makes duplicates harmless; ordering keeps older completions ahead of newer
// ones.
func (r *Reconciler) drainImports(ctx context.Context, pending []importer.Request) {
	if len(pending) == 0 {
		return
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ItemID < pending[j].ItemID })
	for _, request := range pending {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.importer.Run(ctx, request); err != nil {
			if importer.IsRetryable(err) {
				continue
			}
			r.logger.Error("import handoff failed",
				logging.Int64(logging.FieldItemID, request.ItemID),
				logging.Error(err))
		}
	}
}

func (r *Reconciler) publish(ctx context.Context, eventType events.Type, item *queue.Item, previous queue.Status, message string) {
	if r.bus == nil {
		return
	}
	stats, err := r.store.QueueStats(ctx)
	if err != nil {
		stats = queue.Stats{}
	}
	r.bus.Publish(events.Event{
		Type:     eventType,
		Item:     item,
		Previous: previous,
		Message:  message,
		Stats:    stats,
	})
}

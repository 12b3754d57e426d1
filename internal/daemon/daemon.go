package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"berth/internal/api"
	"berth/internal/config"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/logging"
	"berth/internal/metrics"
	"berth/internal/notifications"
	"berth/internal/queue"
	"berth/internal/reconciler"
)

// healthCheckInterval is how often back-end connectivity state is
// exported to metrics and checked for failure transitions.
const healthCheckInterval = time.Minute

// Daemon owns the background services and enforces single-instance
// execution through a lock file under the log directory.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	clients    *directory.Directory
	reconciler *reconciler.Reconciler
	bus        *events.Bus
	metrics    *metrics.Metrics
	notifier   notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	detach  []func()
	api     *apiServer

	lastHealth map[string]directory.Health
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, clients *directory.Directory, rec *reconciler.Reconciler, bus *events.Bus, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || clients == nil || rec == nil || bus == nil {
		return nil, errors.New("daemon requires config, store, clients, reconciler, and bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "berthd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		clients:    clients,
		reconciler: rec,
		bus:        bus,
		metrics:    metrics.New(),
		notifier:   notifications.NewService(cfg),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		lastHealth: make(map[string]directory.Health),
	}, nil
}

// Start acquires the daemon lock and launches the reconciler, the event
// subscribers, and the control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another berth daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.detach = append(d.detach, d.metrics.Attach(d.bus))
	d.detach = append(d.detach, notifications.Attach(d.bus, d.notifier, d.logger))
	d.reconciler.SetPollObserver(d.metrics.ObservePoll)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.reconciler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("reconciler stopped", logging.Error(err))
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.watchClientHealth(runCtx)
	}()

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		d.teardown()
		return fmt.Errorf("configure api server: %w", err)
	}
	d.api = srv
	if err := d.api.start(runCtx); err != nil {
		d.teardown()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("berth daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.api = nil
	d.teardown()
	d.running.Store(false)
	d.logger.Info("berth daemon stopped")
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	for _, fn := range d.detach {
		fn()
	}
	d.detach = nil
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// watchClientHealth exports back-end connectivity to metrics and sends
// a notification when a client degrades to failing.
func (d *Daemon) watchClientHealth(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkClientHealth(ctx)
		}
	}
}

func (d *Daemon) checkClientHealth(ctx context.Context) {
	for clientID, health := range d.clients.HealthReport() {
		d.metrics.SetClientHealth(clientID, healthScore(health))
		previous := d.lastHealth[clientID]
		if health == directory.HealthFailing && previous != directory.HealthFailing {
			d.logger.Warn("download client failing",
				logging.String("client_id", clientID))
			if err := d.notifier.NotifyClientUnhealthy(ctx, clientID); err != nil {
				d.logger.Warn("client health notification failed",
					logging.String("client_id", clientID),
					logging.Error(err))
			}
		}
		d.lastHealth[clientID] = health
	}
}

func healthScore(health directory.Health) float64 {
	switch health {
	case directory.HealthHealthy:
		return 1
	case directory.HealthWarning:
		return 0.5
	default:
		return 0
	}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	stats, err := d.store.QueueStats(ctx)
	if err != nil {
		return api.DaemonStatus{}, fmt.Errorf("queue stats: %w", err)
	}
	counts := make(map[string]int64, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		counts[string(status)] = count
	}

	report := d.clients.HealthReport()
	clients := make([]api.ClientHealth, 0, len(report))
	for clientID, health := range report {
		clients = append(clients, api.ClientHealth{ClientID: clientID, Health: string(health)})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })

	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		QueueTotal:   stats.Total,
		QueueCounts:  counts,
		Clients:      clients,
	}, nil
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

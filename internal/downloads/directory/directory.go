package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"berth/internal/config"
	"berth/internal/downloads"
	"berth/internal/logging"
)

// Factory builds an adapter instance for one configured client.
type Factory func(cfg config.Client) (downloads.Client, error)

// Directory caches adapter instances for the configured download clients and
// exposes health-tracked wrappers around them.
type Directory struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.RWMutex
	configs []config.Client
	entries map[string]*Managed
}

// New constructs a directory over the provided client configurations.
func New(configs []config.Client, factory Factory, logger *slog.Logger) *Directory {
	return &Directory{
		factory: factory,
		logger:  logging.NewComponentLogger(logger, "client-directory"),
		configs: append([]config.Client{}, configs...),
		entries: make(map[string]*Managed),
	}
}

// Enabled returns managed wrappers for every enabled client, in stable id
// order. Clients whose adapters fail to construct are skipped and logged.
func (d *Directory) Enabled() []*Managed {
	d.mu.Lock()
	defer d.mu.Unlock()

	managed := make([]*Managed, 0, len(d.configs))
	for _, cfg := range d.configs {
		if !cfg.Enabled {
			continue
		}
		entry, err := d.entryLocked(cfg)
		if err != nil {
			d.logger.Warn("skipping client with unbuildable adapter",
				logging.String(logging.FieldClientID, cfg.ID),
				logging.Error(err),
			)
			continue
		}
		managed = append(managed, entry)
	}
	sort.Slice(managed, func(i, j int) bool { return managed[i].ID() < managed[j].ID() })
	return managed
}

// Get returns the managed wrapper for a client id, constructing the adapter
// on first use.
func (d *Directory) Get(id string) (*Managed, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cfg := range d.configs {
		if cfg.ID == id {
			return d.entryLocked(cfg)
		}
	}
	return nil, fmt.Errorf("download client %q not configured", id)
}

func (d *Directory) entryLocked(cfg config.Client) (*Managed, error) {
	if entry, ok := d.entries[cfg.ID]; ok {
		return entry, nil
	}
	if d.factory == nil {
		return nil, fmt.Errorf("no adapter factory registered")
	}
	client, err := d.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build adapter for %q: %w", cfg.ID, err)
	}
	entry := newManaged(cfg, client, d.logger)
	d.entries[cfg.ID] = entry
	return entry, nil
}

// Reconfigure replaces the client configurations and drops every cached
// adapter instance. Cached instances are invalidated explicitly on
// configuration change rather than by TTL.
func (d *Directory) Reconfigure(configs []config.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs = append([]config.Client{}, configs...)
	d.entries = make(map[string]*Managed)
}

// HealthReport returns the current health of every known client.
func (d *Directory) HealthReport() map[string]Health {
	d.mu.RLock()
	defer d.mu.RUnlock()
	report := make(map[string]Health, len(d.entries))
	for id, entry := range d.entries {
		report[id] = entry.Health()
	}
	return report
}

// savePathTTL bounds staleness of the cached default save path. The back-end
// rarely changes it, so a short TTL is an acceptable efficiency trade.
const savePathTTL = time.Minute

// Managed wraps one adapter with health accounting and a TTL cache for the
// back-end's default save path.
type Managed struct {
	cfg    config.Client
	client downloads.Client
	logger *slog.Logger

	mu         sync.Mutex
	tracker    healthTracker
	savePath   string
	savePathAt time.Time
}

func newManaged(cfg config.Client, client downloads.Client, logger *slog.Logger) *Managed {
	return &Managed{cfg: cfg, client: client, logger: logger}
}

// ID returns the configured client identifier.
func (m *Managed) ID() string { return m.cfg.ID }

// Config returns the client configuration.
func (m *Managed) Config() config.Client { return m.cfg }

// Protocol returns the client's wire protocol family.
func (m *Managed) Protocol() downloads.Protocol { return downloads.Protocol(m.cfg.Protocol) }

// Health returns the client's current health signal.
func (m *Managed) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.health()
}

// track updates the health score for one adapter call outcome.
func (m *Managed) track(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.tracker.recordSuccess()
		return
	}
	if !downloads.AffectsHealth(err) {
		return
	}
	m.tracker.recordFailure()
	if m.tracker.health() == HealthFailing {
		m.logger.Warn("download client marked failing",
			logging.String(logging.FieldClientID, m.cfg.ID),
			logging.Int("consecutive_failures", m.tracker.consecutiveFailures),
			logging.String(logging.FieldErrorHint, "check client connectivity and credentials"),
		)
	}
}

// Test verifies connectivity and updates health.
func (m *Managed) Test(ctx context.Context) error {
	err := m.client.Test(ctx)
	m.track(err)
	return err
}

// AddDownload submits a download through the wrapped adapter.
func (m *Managed) AddDownload(ctx context.Context, source downloads.Source, opts downloads.AddOptions) (string, error) {
	id, err := m.client.AddDownload(ctx, source, opts)
	m.track(err)
	return id, err
}

// GetDownloads fetches snapshots for the client's managed category.
func (m *Managed) GetDownloads(ctx context.Context, category string) ([]downloads.DownloadInfo, error) {
	infos, err := m.client.GetDownloads(ctx, category)
	m.track(err)
	return infos, err
}

// GetDownload fetches one snapshot by native id.
func (m *Managed) GetDownload(ctx context.Context, id string) (downloads.DownloadInfo, error) {
	info, err := m.client.GetDownload(ctx, id)
	m.track(err)
	return info, err
}

// RemoveDownload removes an entry from the back-end.
func (m *Managed) RemoveDownload(ctx context.Context, id string, deleteFiles bool) error {
	err := m.client.RemoveDownload(ctx, id, deleteFiles)
	m.track(err)
	return err
}

// PauseDownload pauses one download.
func (m *Managed) PauseDownload(ctx context.Context, id string) error {
	err := m.client.PauseDownload(ctx, id)
	m.track(err)
	return err
}

// ResumeDownload resumes one download.
func (m *Managed) ResumeDownload(ctx context.Context, id string) error {
	err := m.client.ResumeDownload(ctx, id)
	m.track(err)
	return err
}

// GetDefaultSavePath returns the back-end's base download directory, cached
// for savePathTTL.
func (m *Managed) GetDefaultSavePath(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.savePath != "" && time.Since(m.savePathAt) < savePathTTL {
		path := m.savePath
		m.mu.Unlock()
		return path, nil
	}
	m.mu.Unlock()

	path, err := m.client.GetDefaultSavePath(ctx)
	m.track(err)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.savePath = path
	m.savePathAt = time.Now()
	m.mu.Unlock()
	return path, nil
}

// GetCategories lists the back-end's categories.
func (m *Managed) GetCategories(ctx context.Context) ([]string, error) {
	categories, err := m.client.GetCategories(ctx)
	m.track(err)
	return categories, err
}

// EnsureCategory creates the managed category when missing.
func (m *Managed) EnsureCategory(ctx context.Context, name, path string) error {
	err := m.client.EnsureCategory(ctx, name, path)
	m.track(err)
	return err
}

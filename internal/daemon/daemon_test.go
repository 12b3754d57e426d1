package daemon

import (
	"context"
	"os"
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

func newDaemon(t *testing.T) (*Daemon, *testsupport.FakeClient) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithClient(config.Client{
		ID:       "qbit",
		Name:     "qBittorrent",
		Type:     "qbittorrent",
		Protocol: "torrent",
		Enabled:  true,
		Category: "berth",
	}))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	fake := testsupport.NewFakeClient()
	dir := directory.New(cfg.Clients, func(config.Client) (downloads.Client, error) {
		return fake, nil
	}, nil)

	store := testsupport.NewStore(t)
	catalog := library.NewMemoryCatalog()
	bus := events.NewBus(nil)
	imp := importer.New(cfg, store, catalog, bus, nil)
	rec := reconciler.New(cfg, store, dir, imp, bus, nil)

	d, err := New(cfg, store, dir, rec, bus, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, fake
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	if _, err := os.Stat(d.lockPath); err != nil {
		t.Fatalf("expected lock file at %s: %v", d.lockPath, err)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running status")
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}

	d.Stop()
	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("expected stopped status")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	first, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer first.Stop()

	second, err := New(first.cfg, first.store, first.clients, first.reconciler, first.bus, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention to fail second instance")
	}
}

func TestDaemonStatusReportsQueueAndClients(t *testing.T) {
	d, _ := newDaemon(t)
	ctx := context.Background()

	if _, err := d.store.Enqueue(ctx, &queue.Item{
		ClientID:   "qbit",
		DownloadID: "dl-1",
		Title:      "Example Movie 2024",
		Protocol:   downloads.ProtocolTorrent,
		Status:     queue.StatusDownloading,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.QueueTotal != 1 {
		t.Fatalf("expected 1 queued item, got %d", status.QueueTotal)
	}
	if status.QueueCounts[string(queue.StatusDownloading)] != 1 {
		t.Fatalf("unexpected counts: %v", status.QueueCounts)
	}
	if len(status.Clients) != 1 || status.Clients[0].ClientID != "qbit" {
		t.Fatalf("unexpected clients: %v", status.Clients)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newDaemon(t)
	ok, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if ok {
		t.Fatal("expected not-sent result without a topic")
	}
	if message == "" {
		t.Fatal("expected explanatory message")
	}
}

func TestHealthScore(t *testing.T) {
	cases := map[directory.Health]float64{
		directory.HealthHealthy: 1,
		directory.HealthWarning: 0.5,
		directory.HealthFailing: 0,
	}
	for health, want := range cases {
		if got := healthScore(health); got != want {
			t.Fatalf("healthScore(%s) = %v, want %v", health, got, want)
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

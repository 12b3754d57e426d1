package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"berth/internal/config"
	"berth/internal/daemon"
	"berth/internal/downloads/directory"
	"berth/internal/events"
	"berth/internal/importer"
	"berth/internal/library"
	"berth/internal/logging"
	"berth/internal/queue"
	"berth/internal/reconciler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewForDaemon(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	clients := directory.New(cfg.Clients, directory.DefaultFactory, logger)
	bus := events.NewBus(logger)
	catalog := library.NewMemoryCatalog()
	imp := importer.New(cfg, store, catalog, bus, logger)
	rec := reconciler.New(cfg, store, clients, imp, bus, logger)

	d, err := daemon.New(cfg, store, clients, rec, bus, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("berthd shutting down")
}

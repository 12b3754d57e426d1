package testsupport

import (
	"path/filepath"
	"testing"

	"berth/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithClient appends a client definition to the test config.
func WithClient(client config.Client) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Clients = append(cfg.Clients, client)
	}
}

// WithTransferMode overrides the importer transfer mode.
func WithTransferMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Importer.TransferMode = mode
	}
}

// WithMaxAttempts overrides the import attempt budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Importer.MaxAttempts = n
	}
}

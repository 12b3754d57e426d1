package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Importer.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("max attempts = %d, want default %d", cfg.Importer.MaxAttempts, defaultMaxAttempts)
	}
}

func TestLoadParsesClients(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
library_dir = "` + filepath.Join(dir, "library") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[[clients]]
id = "qb"
type = "QBittorrent"
protocol = "Torrent"
enabled = true

  [[clients.mappings]]
  remote = "/data/done"
  local = "` + filepath.Join(dir, "done") + `"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if len(cfg.Clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(cfg.Clients))
	}
	client := cfg.Clients[0]
	if client.Type != "qbittorrent" || client.Protocol != "torrent" {
		t.Fatalf("client not normalized: %+v", client)
	}
	if client.Name != "qb" {
		t.Fatalf("client name should default to id, got %q", client.Name)
	}
	if client.Mappings[0].Area != "completed" {
		t.Fatalf("mapping area should default to completed, got %q", client.Mappings[0].Area)
	}
}

func TestValidateRejectsDuplicateClientIDs(t *testing.T) {
	cfg := Default()
	cfg.Clients = []Client{
		{ID: "qb", Type: "qbittorrent", Protocol: "torrent"},
		{ID: "qb", Type: "transmission", Protocol: "torrent"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicates") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestValidateRejectsUnknownProtocol(t *testing.T) {
	cfg := Default()
	cfg.Clients = []Client{{ID: "x", Type: "aria2", Protocol: "ftp"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected protocol validation error")
	}
}

func TestValidateRejectsBadTransferMode(t *testing.T) {
	cfg := Default()
	cfg.Importer.TransferMode = "teleport"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected transfer mode validation error")
	}
}

func TestNormalizeBlockedExtensions(t *testing.T) {
	cfg := Default()
	cfg.Library.BlockedExtensions = []string{"PS1", ".Bat", " sh "}
	cfg.normalizeImporter()
	want := []string{".ps1", ".bat", ".sh"}
	for i, ext := range cfg.Library.BlockedExtensions {
		if ext != want[i] {
			t.Fatalf("extension %d = %q, want %q", i, ext, want[i])
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[importer]") {
		t.Fatal("sample missing importer section")
	}
}

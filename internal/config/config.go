package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Library describes the media library layout and file acceptance rules.
type Library struct {
	MoviesDir         string   `toml:"movies_dir"`
	TVDir             string   `toml:"tv_dir"`
	MinFileSizeMiB    int64    `toml:"min_file_size_mib"`
	BlockedExtensions []string `toml:"blocked_extensions"`
}

// Importer configures transfer policy and retry bounds for the import pipeline.
type Importer struct {
	TransferMode     string `toml:"transfer_mode"`
	MaxAttempts      int    `toml:"max_attempts"`
	PreserveSymlinks bool   `toml:"preserve_symlinks"`
}

// Reconciler configures polling cadence and cleanup timing.
type Reconciler struct {
	ActivePollSeconds         int `toml:"active_poll_seconds"`
	IdlePollSeconds           int `toml:"idle_poll_seconds"`
	OrphanSweepMinutes        int `toml:"orphan_sweep_minutes"`
	StartupCallTimeoutSeconds int `toml:"startup_call_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Imports        bool   `toml:"imports"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// PathMapping maps a download client's view of a directory onto the local filesystem.
type PathMapping struct {
	Remote string `toml:"remote"`
	Local  string `toml:"local"`
	// Area is "completed" (default) or "incomplete" for staging directories.
	Area string `toml:"area"`
}

// Client describes one configured download back-end.
type Client struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Type     string `toml:"type"`
	Protocol string `toml:"protocol"`
	Enabled  bool   `toml:"enabled"`
	Category string `toml:"category"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// RemoteMount marks clients whose download area is a network mount that
	// surfaces small pointer files instead of full payloads.
	RemoteMount bool          `toml:"remote_mount"`
	Mappings    []PathMapping `toml:"mappings"`
}

// Config encapsulates all configuration values for berth.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Importer      Importer      `toml:"importer"`
	Reconciler    Reconciler    `toml:"reconciler"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Clients       []Client      `toml:"clients"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/berth/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("berth.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// ClientByID returns the configured client with the given identifier.
func (c *Config) ClientByID(id string) (Client, bool) {
	for _, client := range c.Clients {
		if client.ID == id {
			return client, true
		}
	}
	return Client{}, false
}

// EnabledClients returns the configured clients with enabled set.
func (c *Config) EnabledClients() []Client {
	enabled := make([]Client, 0, len(c.Clients))
	for _, client := range c.Clients {
		if client.Enabled {
			enabled = append(enabled, client)
		}
	}
	return enabled
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

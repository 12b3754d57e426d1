package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImporter()
	c.normalizeReconciler()
	c.normalizeClients()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeImporter() {
	c.Importer.TransferMode = strings.ToLower(strings.TrimSpace(c.Importer.TransferMode))
	if c.Importer.TransferMode == "" {
		c.Importer.TransferMode = defaultTransferMode
	}
	if c.Importer.MaxAttempts <= 0 {
		c.Importer.MaxAttempts = defaultMaxAttempts
	}
	if c.Library.MinFileSizeMiB < 0 {
		c.Library.MinFileSizeMiB = 0
	}
	for i, ext := range c.Library.BlockedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Library.BlockedExtensions[i] = ext
	}
}

func (c *Config) normalizeReconciler() {
	if c.Reconciler.ActivePollSeconds <= 0 {
		c.Reconciler.ActivePollSeconds = defaultActivePollSeconds
	}
	if c.Reconciler.IdlePollSeconds <= 0 {
		c.Reconciler.IdlePollSeconds = defaultIdlePollSeconds
	}
	if c.Reconciler.OrphanSweepMinutes <= 0 {
		c.Reconciler.OrphanSweepMinutes = defaultOrphanSweepMinutes
	}
	if c.Reconciler.StartupCallTimeoutSeconds <= 0 {
		c.Reconciler.StartupCallTimeoutSeconds = defaultStartupCallTimeoutSecs
	}
}

func (c *Config) normalizeClients() {
	for i := range c.Clients {
		client := &c.Clients[i]
		client.ID = strings.TrimSpace(client.ID)
		client.Name = strings.TrimSpace(client.Name)
		if client.Name == "" {
			client.Name = client.ID
		}
		client.Type = strings.ToLower(strings.TrimSpace(client.Type))
		client.Protocol = strings.ToLower(strings.TrimSpace(client.Protocol))
		client.Category = strings.TrimSpace(client.Category)
		for j := range client.Mappings {
			mapping := &client.Mappings[j]
			mapping.Remote = strings.TrimSpace(mapping.Remote)
			mapping.Local = strings.TrimSpace(mapping.Local)
			mapping.Area = strings.ToLower(strings.TrimSpace(mapping.Area))
			if mapping.Area == "" {
				mapping.Area = "completed"
			}
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Package config loads, normalizes, and validates berth's TOML configuration.
//
// Configuration covers daemon paths, the media library layout, import policy,
// reconciler timing, download client definitions with remote path mappings,
// notifications, and logging. Load applies defaults, expands ~ in every path
// field, and rejects configurations the daemon cannot run with.
package config

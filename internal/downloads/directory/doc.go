// Package directory manages the set of configured download clients: adapter
// instance caching, per-client health scoring, and tracked call wrappers that
// feed the health signal. Business errors (not found, duplicate, invalid
// state) are excluded from health accounting.
package directory

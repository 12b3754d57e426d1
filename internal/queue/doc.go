// Package queue persists the acquisition queue: one row per in-flight
// download from grab to terminal outcome, backed by SQLite.
//
// The store is the single source of truth for item state. Transitions into
// importing are expressed as conditional updates (compare-and-swap on
// status) so concurrent import triggers cannot both win. Terminal rows
// (imported, removed) are never mutated. A durable history table records
// grabs, imports, and failures so activity survives queue cleanup.
package queue

// Package reconciler keeps the queue in step with the download back-ends.
//
// A poll loop fetches snapshots from every enabled client, matches them to
// queue items, normalizes status and progress, and hands completed items to
// the importer one at a time in queue order. Each client is swept on its own
// goroutine so one unreachable back-end never blocks the others; snapshots
// are ephemeral and re-fetched every cycle.
//
// Downloads that disappear from a back-end are given a grace window before
// the item is marked removed, because clients briefly drop entries while
// resolving magnet metadata or moving files between categories.
package reconciler

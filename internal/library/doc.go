// Package library defines the catalog surface the import pipeline talks to.
//
// The importer needs just enough of the media catalog to resolve where a
// finished download belongs and to record the file it produced: movie and
// series lookups, root folder resolution, existing-file queries for upgrade
// decisions, and file registration. The Catalog interface captures that
// surface; a memory-backed implementation serves tests and single-process
// deployments.
package library

// Package transfer implements the filesystem primitives the import pipeline
// uses to place files: device-checked hardlinks with copy fallback, verified
// copies, atomic renames with a cross-device copy+delete fallback, symlink
// preservation, and batch directory transfers.
//
// A hardlink failure never surfaces to the caller; the operation falls back
// to a copy within the same call.
package transfer

// Package importer moves completed downloads into the media library exactly
// once.
//
// An import starts with an atomic claim on the queue row, so concurrent poll
// passes and manual triggers cannot double-import the same completion. The
// claimed item's resolved output path is then validated, scanned for
// importable media files, filtered through the security gate, and handed to
// the transfer engine under the configured transfer-mode policy. The catalog
// record for the new file is created before any previous file is removed, so
// an interrupted upgrade never leaves the library without a file.
package importer

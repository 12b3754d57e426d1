// Package pathmap translates paths reported by a download back-end into the
// local filesystem's view. Back-ends often run in containers or on other
// hosts, so the directory they report is not necessarily the directory the
// importer can read.
//
// Translation prefers configured remote/local base pairs; when none match, a
// best-effort heuristic tries common download folder anchors and then a
// longest-common-suffix match. Heuristic results are tagged so callers can
// warn the operator instead of trusting a guess silently.
package pathmap

// Package daemon coordinates the long-running services: the reconciler
// loop, the event bus with its metrics and notification subscribers,
// and the HTTP control API. It enforces single-instance execution with
// a file lock.
package daemon

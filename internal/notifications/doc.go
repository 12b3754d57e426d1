// Package notifications delivers queue lifecycle push notifications via
// ntfy. With no topic configured every notification is a silent no-op, so
// callers never guard their calls.
package notifications

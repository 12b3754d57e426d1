// Package events distributes queue lifecycle notifications to in-process
// subscribers.
//
// The reconciler and importer publish an event whenever a queue item is
// added, changes status, finishes importing, or fails. Subscribers such as
// the notification sender and the metrics collectors register a handler and
// receive every event synchronously. A handler that panics is evicted so one
// bad subscriber cannot take down the poll loop.
package events

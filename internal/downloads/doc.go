// Package downloads defines the capability contract every download back-end
// adapter must satisfy, the canonical status vocabulary snapshots are
// normalized into, and the error taxonomy the reconciler uses to separate
// connectivity failures from business errors.
//
// Adapters for concrete back-ends (qBittorrent, Transmission, SABnzbd, ...)
// live outside this repository; berth is generic over the Client interface.
package downloads

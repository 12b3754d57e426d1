package downloads

import (
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

// ParseMagnetHash extracts the lowercase hex info-hash from a magnet link.
// Returns false when the value is not a parseable magnet URI.
func ParseMagnetHash(magnet string) (string, bool) {
	magnet = strings.TrimSpace(magnet)
	if magnet == "" || !strings.HasPrefix(strings.ToLower(magnet), "magnet:") {
		return "", false
	}
	parsed, err := metainfo.ParseMagnetUri(magnet)
	if err != nil {
		return "", false
	}
	return strings.ToLower(parsed.InfoHash.HexString()), true
}

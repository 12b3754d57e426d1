package pathmap

import (
	"path/filepath"
	"strings"

	"berth/internal/config"
)

// Match describes how a translation result was produced.
type Match string

const (
	// MatchExact means a configured mapping covered the path.
	MatchExact Match = "exact"
	// MatchAnchor means a common download-folder anchor aligned the trees.
	MatchAnchor Match = "anchor"
	// MatchSuffix means a longest-common-suffix folder match was used.
	MatchSuffix Match = "suffix"
	// MatchNone means no mapping applied and the path is unchanged.
	MatchNone Match = "none"
)

// Result is one translated path plus how much to trust it.
type Result struct {
	Path  string
	Match Match
}

// Exact reports whether the translation came from a configured mapping.
func (r Result) Exact() bool { return r.Match == MatchExact }

// anchors are folder names commonly separating a download root from its
// content, tried in order. The ordering is policy, not correctness.
var anchors = []string{"completed", "complete", "finished", "done", "downloads", "torrents", "usenet"}

// Translator maps one client's remote paths onto the local filesystem.
type Translator struct {
	mappings []config.PathMapping
}

// New builds a translator from a client's configured mappings.
func New(mappings []config.PathMapping) *Translator {
	return &Translator{mappings: append([]config.PathMapping{}, mappings...)}
}

// HasMappings reports whether any mapping is configured.
func (t *Translator) HasMappings() bool { return len(t.mappings) > 0 }

// Translate rewrites a back-end-reported path into the local view.
func (t *Translator) Translate(remotePath string) Result {
	remotePath = strings.TrimSpace(remotePath)
	if remotePath == "" {
		return Result{Path: remotePath, Match: MatchNone}
	}
	if len(t.mappings) == 0 {
		return Result{Path: remotePath, Match: MatchNone}
	}

	for _, mapping := range t.mappings {
		if local, ok := applyMapping(remotePath, mapping.Remote, mapping.Local); ok {
			return Result{Path: local, Match: MatchExact}
		}
	}

	if guessed, ok := t.anchorGuess(remotePath); ok {
		return Result{Path: guessed, Match: MatchAnchor}
	}
	if guessed, ok := t.suffixGuess(remotePath); ok {
		return Result{Path: guessed, Match: MatchSuffix}
	}
	return Result{Path: remotePath, Match: MatchNone}
}

// applyMapping rewrites remotePath onto localBase when it lives under
// remoteBase, collapsing a duplicated trailing segment when the local base
// already ends with the remainder's first folder.
func applyMapping(remotePath, remoteBase, localBase string) (string, bool) {
	remoteBase = normalize(remoteBase)
	remotePath = normalize(remotePath)
	if remoteBase == "" || localBase == "" {
		return "", false
	}
	if remotePath == remoteBase {
		return filepath.Clean(localBase), true
	}
	prefix := remoteBase
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if !strings.HasPrefix(remotePath, prefix) {
		return "", false
	}
	remainder := strings.TrimPrefix(remotePath, prefix)
	segments := splitSegments(remainder)
	if len(segments) == 0 {
		return filepath.Clean(localBase), true
	}
	if filepath.Base(localBase) == segments[0] {
		segments = segments[1:]
	}
	return filepath.Join(append([]string{localBase}, segments...)...), true
}

// anchorGuess splices the remote remainder after a known anchor folder onto a
// configured local base containing the same anchor.
func (t *Translator) anchorGuess(remotePath string) (string, bool) {
	remoteSegments := splitSegments(normalize(remotePath))
	for _, anchor := range anchors {
		anchorIdx := indexOfSegment(remoteSegments, anchor)
		if anchorIdx < 0 {
			continue
		}
		for _, mapping := range t.mappings {
			localSegments := splitSegments(normalize(mapping.Local))
			localIdx := indexOfSegment(localSegments, anchor)
			if localIdx < 0 {
				continue
			}
			joined := append([]string{}, localSegments[:localIdx+1]...)
			joined = append(joined, remoteSegments[anchorIdx+1:]...)
			return rebuild(mapping.Local, joined), true
		}
	}
	return "", false
}

// suffixGuess aligns the longest common folder suffix between the remote
// path's parents and a configured local base.
func (t *Translator) suffixGuess(remotePath string) (string, bool) {
	remoteSegments := splitSegments(normalize(remotePath))
	if len(remoteSegments) < 2 {
		return "", false
	}

	bestLen := 0
	bestPath := ""
	for _, mapping := range t.mappings {
		localSegments := splitSegments(normalize(mapping.Local))
		// Try aligning every parent depth of the remote path against the
		// local base's tail.
		for cut := len(remoteSegments) - 1; cut > 0; cut-- {
			parents := remoteSegments[:cut]
			common := commonSuffixLen(localSegments, parents)
			if common == 0 || common <= bestLen {
				continue
			}
			joined := append([]string{}, localSegments...)
			joined = append(joined, remoteSegments[cut:]...)
			bestLen = common
			bestPath = rebuild(mapping.Local, joined)
		}
	}
	if bestLen == 0 {
		return "", false
	}
	return bestPath, true
}

func commonSuffixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) {
		if a[len(a)-1-n] != b[len(b)-1-n] {
			break
		}
		n++
	}
	return n
}

func indexOfSegment(segments []string, want string) int {
	for i, segment := range segments {
		if strings.EqualFold(segment, want) {
			return i
		}
	}
	return -1
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	// Back-ends on Windows report backslash paths.
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimRight(path, "/")
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// rebuild joins segments preserving the local base's root style (absolute vs
// relative).
func rebuild(localBase string, joined []string) string {
	result := filepath.Join(joined...)
	if strings.HasPrefix(localBase, "/") {
		return "/" + result
	}
	return result
}

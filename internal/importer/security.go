package importer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// dangerousExtensions are always rejected regardless of configuration. A
// download carrying one of these aborts the whole import before any file is
// transferred.
var dangerousExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {},
	".msi": {}, ".ps1": {}, ".vbs": {}, ".js": {}, ".jse": {},
	".wsf": {}, ".wsh": {}, ".lnk": {}, ".reg": {}, ".pif": {},
	".sh": {}, ".apk": {}, ".jar": {},
}

// securityGate rejects downloads containing dangerous or operator-blocked
// file types.
type securityGate struct {
	blocked map[string]struct{}
}

func newSecurityGate(blockedExtensions []string) *securityGate {
	blocked := make(map[string]struct{}, len(dangerousExtensions)+len(blockedExtensions))
	for ext := range dangerousExtensions {
		blocked[ext] = struct{}{}
	}
	for _, ext := range blockedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		blocked[ext] = struct{}{}
	}
	return &securityGate{blocked: blocked}
}

// Check returns ErrBlocked when any path carries a rejected extension.
func (g *securityGate) Check(paths []string) error {
	for _, path := range paths {
		ext := strings.ToLower(filepath.Ext(path))
		if _, bad := g.blocked[ext]; bad {
			return fmt.Errorf("%w: %s", ErrBlocked, filepath.Base(path))
		}
	}
	return nil
}

package transfer

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"berth/internal/logging"
)

// Mode is the mechanism that actually placed a file.
type Mode string

const (
	ModeHardlink Mode = "hardlink"
	ModeCopy     Mode = "copy"
	ModeMove     Mode = "move"
	ModeSymlink  Mode = "symlink"
)

// Request describes one file placement.
type Request struct {
	Source string
	Target string
	// AllowHardlink permits the hardlink-first strategy; any hardlink
	// failure still falls back to copy.
	AllowHardlink bool
	// DeleteSource removes the source after a successful link/copy,
	// yielding move semantics without a cross-device rename.
	DeleteSource bool
	// PreserveSymlink recreates a symlinked source as a symlink at the
	// target instead of copying the link's target.
	PreserveSymlink bool
}

// Result reports how one transfer completed.
type Result struct {
	Mode  Mode
	Bytes int64
}

// Engine performs file transfers with policy-driven mode selection.
type Engine struct {
	logger *slog.Logger
}

// NewEngine constructs a transfer engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "transfer")}
}

// Transfer places one file according to the request policy. A pre-existing
// file at the target is removed first.
func (e *Engine) Transfer(req Request) (Result, error) {
	if err := EnsureDir(filepath.Dir(req.Target)); err != nil {
		return Result{}, err
	}
	if err := RemoveIfExists(req.Target); err != nil {
		return Result{}, fmt.Errorf("clear stale target %s: %w", req.Target, err)
	}

	if req.PreserveSymlink {
		if linked, result, err := e.preserveSymlink(req); linked {
			return result, err
		}
	}

	if req.AllowHardlink {
		if result, ok := e.tryHardlink(req); ok {
			return e.finish(req, result)
		}
	}

	written, err := CopyFileVerified(req.Source, req.Target)
	if err != nil {
		return Result{}, fmt.Errorf("copy %s: %w", req.Source, err)
	}
	return e.finish(req, Result{Mode: ModeCopy, Bytes: written})
}

// preserveSymlink recreates a symlinked source at the target. Returns false
// when the source is a regular file so normal transfer proceeds.
func (e *Engine) preserveSymlink(req Request) (bool, Result, error) {
	info, err := os.Lstat(req.Source)
	if err != nil {
		return true, Result{}, fmt.Errorf("lstat %s: %w", req.Source, err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return false, Result{}, nil
	}
	linkTarget, err := os.Readlink(req.Source)
	if err != nil {
		return true, Result{}, fmt.Errorf("readlink %s: %w", req.Source, err)
	}
	if err := os.Symlink(linkTarget, req.Target); err != nil {
		return true, Result{}, fmt.Errorf("symlink %s: %w", req.Target, err)
	}
	return true, Result{Mode: ModeSymlink}, nil
}

// tryHardlink attempts a same-device hardlink. Every failure path reports
// not-ok so the caller falls back to copy.
func (e *Engine) tryHardlink(req Request) (Result, bool) {
	same, err := SameDevice(req.Source, filepath.Dir(req.Target))
	if err != nil || !same {
		return Result{}, false
	}
	if err := os.Link(req.Source, req.Target); err != nil {
		e.logger.Debug("hardlink failed, falling back to copy",
			logging.String("source", req.Source),
			logging.Error(err),
		)
		return Result{}, false
	}
	info, err := os.Stat(req.Target)
	if err != nil {
		return Result{Mode: ModeHardlink}, true
	}
	return Result{Mode: ModeHardlink, Bytes: info.Size()}, true
}

func (e *Engine) finish(req Request, result Result) (Result, error) {
	if !req.DeleteSource {
		return result, nil
	}
	// A hardlinked source shares the inode; removing it leaves the target
	// intact, so deletion is safe for every mode here.
	if err := os.Remove(req.Source); err != nil {
		e.logger.Warn("failed to remove source after transfer",
			logging.String("source", req.Source),
			logging.Error(err),
		)
		return result, nil
	}
	if result.Mode == ModeCopy {
		result.Mode = ModeMove
	}
	return result, nil
}

// TreeRequest describes a batch directory transfer.
type TreeRequest struct {
	SourceDir string
	TargetDir string
	// Extensions filters files when non-empty (lowercase, dot-prefixed).
	Extensions []string
	// PreserveStructure keeps subdirectory layout under TargetDir.
	PreserveStructure bool
	AllowHardlink     bool
	DeleteSource      bool
}

// TransferTree places every qualifying file under SourceDir into TargetDir.
func (e *Engine) TransferTree(req TreeRequest) ([]Result, error) {
	extSet := make(map[string]struct{}, len(req.Extensions))
	for _, ext := range req.Extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	var results []Result
	err := filepath.WalkDir(req.SourceDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if len(extSet) > 0 {
			if _, ok := extSet[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
		}

		target := filepath.Join(req.TargetDir, entry.Name())
		if req.PreserveStructure {
			rel, relErr := filepath.Rel(req.SourceDir, path)
			if relErr != nil {
				return relErr
			}
			target = filepath.Join(req.TargetDir, rel)
		}

		result, transferErr := e.Transfer(Request{
			Source:        path,
			Target:        target,
			AllowHardlink: req.AllowHardlink,
			DeleteSource:  req.DeleteSource,
		})
		if transferErr != nil {
			return transferErr
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return results, err
	}
	return results, nil
}

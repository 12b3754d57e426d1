package importer

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// mediaExtensions are file types the importer considers playable media.
var mediaExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".mov": {},
	".wmv": {}, ".mpg": {}, ".mpeg": {}, ".ts": {}, ".m2ts": {},
	".webm": {}, ".flv": {}, ".strm": {},
}

// sampleMarkers exclude promotional or truncated files from import.
var sampleMarkers = []string{"sample", "trailer", "proof", "rarbg.com"}

// Candidate is one importable file found under a completed download.
type Candidate struct {
	Path      string
	Name      string
	SizeBytes int64
}

// candidateScanner walks a download's output path and returns importable
// media files.
type candidateScanner struct {
	minSizeBytes int64
	// remoteMount relaxes the size floor for .strm pointer files that stand
	// in for media living on a network share.
	remoteMount bool
}

// Scan returns all file paths under root (for the security gate) and the
// subset that qualifies as import candidates.
func (s *candidateScanner) Scan(root string) (allFiles []string, candidates []Candidate, err error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotReady, root)
		}
		return nil, nil, fmt.Errorf("stat output path: %w", err)
	}

	if !info.IsDir() {
		allFiles = []string{root}
		if candidate, ok := s.evaluate(root, info.Size()); ok {
			candidates = append(candidates, candidate)
		}
		return allFiles, candidates, nil
	}

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		allFiles = append(allFiles, path)
		// Hidden and system entries never qualify as candidates, but the
		// security gate still inspects them via allFiles.
		if hiddenWithin(root, path) {
			return nil
		}
		entryInfo, infoErr := entry.Info()
		if infoErr != nil {
			return infoErr
		}
		if candidate, ok := s.evaluate(path, entryInfo.Size()); ok {
			candidates = append(candidates, candidate)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk output path: %w", walkErr)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SizeBytes > candidates[j].SizeBytes
	})
	return allFiles, candidates, nil
}

// hiddenWithin reports whether any path component below root is a
// dot-entry.
func hiddenWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (s *candidateScanner) evaluate(path string, size int64) (Candidate, bool) {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	ext := filepath.Ext(lower)

	if ext == "" {
		if !sniffMedia(path) {
			return Candidate{}, false
		}
	} else if _, ok := mediaExtensions[ext]; !ok {
		return Candidate{}, false
	}

	for _, marker := range sampleMarkers {
		if strings.Contains(lower, marker) {
			return Candidate{}, false
		}
	}

	// .strm files on remote mounts are tiny pointers to the real payload.
	if size < s.minSizeBytes && !(s.remoteMount && ext == ".strm") {
		return Candidate{}, false
	}

	return Candidate{Path: path, Name: name, SizeBytes: size}, true
}

var (
	matroskaMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	riffMagic     = []byte("RIFF")
	ftypMagic     = []byte("ftyp")
)

// sniffMedia inspects the first bytes of an extensionless file for known
// container signatures.
func sniffMedia(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, 12)
	n, err := file.Read(header)
	if err != nil || n < len(header) {
		return false
	}
	if bytes.HasPrefix(header, matroskaMagic) {
		return true
	}
	if bytes.HasPrefix(header, riffMagic) {
		return true
	}
	// MP4 family: size prefix then "ftyp".
	return bytes.Equal(header[4:8], ftypMagic)
}

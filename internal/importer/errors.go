package importer

import "errors"

// Retryable outcomes release the import claim so a later pass tries again.
var (
	// ErrNotReady indicates the download's files are not yet visible at the
	// resolved output path, usually because a mount lags the back-end.
	ErrNotReady = errors.New("download files not ready")
	// ErrTargetUnavailable indicates the library destination is missing or
	// unwritable right now.
	ErrTargetUnavailable = errors.New("import target unavailable")
)

// Permanent outcomes fail the item.
var (
	// ErrNoCandidates indicates no importable media file was found.
	ErrNoCandidates = errors.New("no importable files")
	// ErrBlocked indicates the download contained a blocked file type and
	// was rejected before any transfer started.
	ErrBlocked = errors.New("blocked file type")
	// ErrAttemptsExhausted indicates the retry budget ran out.
	ErrAttemptsExhausted = errors.New("import attempts exhausted")
	// ErrUnmatchedMedia indicates the item carries no usable catalog
	// reference.
	ErrUnmatchedMedia = errors.New("no catalog reference")
)

// IsRetryable reports whether the import should be retried on a later pass
// rather than failed outright.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrTargetUnavailable)
}

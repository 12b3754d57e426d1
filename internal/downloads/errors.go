package downloads

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors adapters wrap so the reconciler can classify failures.
// Connectivity and auth errors count toward client health; business errors
// (not found, duplicate, invalid state) never do.
var (
	ErrConnectivity = errors.New("connectivity error")
	ErrAuth         = errors.New("authentication error")
	ErrNotFound     = errors.New("download not found")
	ErrDuplicate    = errors.New("download already exists")
	ErrInvalidState = errors.New("invalid download state")
)

// Wrap tags err with the provided sentinel and a client/operation detail.
func Wrap(marker error, clientID, operation string, err error) error {
	detail := buildDetail(clientID, operation)
	if marker == nil {
		marker = ErrConnectivity
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// AffectsHealth reports whether an adapter error should degrade the
// per-client health score.
func AffectsHealth(err error) bool {
	if err == nil {
		return false
	}
	if IsBusinessError(err) {
		return false
	}
	return true
}

// IsBusinessError reports whether err is a business-logic outcome rather
// than a transport failure.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInvalidState)
}

func buildDetail(clientID, operation string) string {
	parts := make([]string, 0, 2)
	if clientID = strings.TrimSpace(clientID); clientID != "" {
		parts = append(parts, clientID)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "client call failed"
	}
	return strings.Join(parts, ": ")
}

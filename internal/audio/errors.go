package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks caller-supplied input that cannot be stored.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks blob store failures.
	ErrStorage = errors.New("storage error")
	// ErrPersistence marks record or index writes that failed after the blob was stored.
	ErrPersistence = errors.New("persistence error")
	// ErrConnectivity marks an unreachable primary record store. Reads fall back
	// to the index cache only for errors carrying this marker.
	ErrConnectivity = errors.New("primary store unreachable")
	// ErrLockTimeout marks an index file lock that could not be acquired within
	// the retry budget.
	ErrLockTimeout = errors.New("index lock timeout")
	// ErrNotFound is used internally to decide fallback behavior; public reads
	// return empty results instead.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component and operation context
// while tagging it with marker for errors.Is classification.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "audio index failure"
	}
	return strings.Join(parts, ": ")
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInput covers rejected MIME types, oversize files and
	// malformed request payloads.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrExtractionFailed covers format-specific parse failures of a single file.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrProviderUnavailable covers embedding/generation API errors and timeouts.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrStateConflict covers illegal project status transitions and duplicate
	// concurrent pipeline runs. Callers must re-read status before retrying.
	ErrStateConflict = errors.New("pipeline state conflict")
	ErrNotFound      = errors.New("not found")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrExternalProvider = errors.New("label provider failed")
	ErrConflict         = errors.New("conflict")
)

func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// ProviderFailure wraps a label provider error so both the cause and
// ErrExternalProvider match with errors.Is.
func ProviderFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrExternalProvider, err)
}

package services

import (
	"errors"
	"fmt"

	"github.com/kwanter/sakip-sub003/internal/scoring"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrConcurrentUpdate = errors.New("record was modified concurrently")
	// ErrInvalidInput is shared with the scoring package so errors.Is works
	// for validation failures raised on either side.
	ErrInvalidInput = scoring.ErrInvalidInput
	ErrInvalidLogin = errors.New("invalid username or password")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// wrapNotFound maps gorm's missing-row error to ErrNotFound.
func wrapNotFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d %w", what, id, ErrNotFound)
	}
	return err
}

// wrapDuplicate maps a unique-index violation to ErrConflict.
func wrapDuplicate(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflictf("%s", msg)
	}
	return err
}

package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/thoreinstein/cfgsnap/internal/payload"
)

// Validation errors for configuration fields.
var (
	// ErrVersionTooLow indicates the version field is below the minimum.
	ErrVersionTooLow = errors.New("version must be >= 1")

	// ErrNegativeRetention indicates retention_count is negative.
	ErrNegativeRetention = errors.New("retention_count must be non-negative")

	// ErrInvalidFormat indicates default_format is not a supported format.
	ErrInvalidFormat = errors.New("invalid default_format")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version < 1 {
		errs = append(errs, ErrVersionTooLow)
	}

	if cfg.RetentionCount < 0 {
		errs = append(errs, ErrNegativeRetention)
	}

	if cfg.DefaultFormat != "" {
		if _, err := payload.ParseFormat(cfg.DefaultFormat); err != nil {
			errs = append(errs, &FieldError{
				Field: "default_format",
				Value: cfg.DefaultFormat,
				Err:   ErrInvalidFormat,
			})
		}
	}

	if cfg.StorageDir != "" {
		if err := validatePath(cfg.StorageDir); err != nil {
			errs = append(errs, &FieldError{
				Field: "storage_dir",
				Value: cfg.StorageDir,
				Err:   err,
			})
		}
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}

// FieldError represents a validation error for a specific config field.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Package errs holds the sentinel errors shared across the saloon packages.
package errs

import "github.com/cockroachdb/errors"

var (
	// ErrValidation marks input rejected at a construction or edit boundary.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks an operation the current session state does not allow.
	ErrInvalidState = errors.New("invalid state")
	// ErrTableNotFound is returned when a table reference does not resolve.
	ErrTableNotFound = errors.New("table not found")
)

// Validationf builds an error marked as ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// InvalidStatef builds an error marked as ErrInvalidState.
func InvalidStatef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidState)
}

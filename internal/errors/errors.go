package errors

import (
	"errors"
	"fmt"
)

// Common error types for the billing portal
var (
	// Session errors
	ErrMissingAgent = errors.New("missing agent id")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Transport errors
	ErrTimeout         = errors.New("request timed out")
	ErrUnreachable     = errors.New("api unreachable")
	ErrInvalidResponse = errors.New("invalid api response")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

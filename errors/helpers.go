package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if an error is of a specific type
func Is(err error, target error) bool {
	return errors.Is(err, target)
}

// As checks if an error can be assigned to a target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HasCode checks if an error is a GameError with a specific code
func HasCode(err error, code ErrorCode) bool {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr.Code == code
	}
	return false
}

// Code returns the error code of a GameError, or ErrCodeInternal for
// anything else. Nil errors have no code.
func Code(err error) ErrorCode {
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr.Code
	}
	return ErrCodeInternal
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var gameErr *GameError
	if errors.As(err, &gameErr) {
		return gameErr.IsRetryable()
	}
	return false
}

// IsRateLimit checks if an error was classified as a provider rate limit
func IsRateLimit(err error) bool {
	return HasCode(err, ErrCodeRateLimit)
}

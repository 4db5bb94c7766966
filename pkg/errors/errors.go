// Package errors defines the sentinel errors shared by every pagerank
// component and maps them to process exit codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUsage            = errors.New("usage error")
	ErrParse            = errors.New("parse error")
	ErrEmptyGraph       = errors.New("empty graph")
	ErrIO               = errors.New("i/o error")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrCacheUnavailable = errors.New("result cache unavailable")
	ErrSourceDenied     = errors.New("source not allowed")
)

// Exit codes returned by ExitCode. ExitUsage matches the original tool,
// which terminated with -1 on a bad invocation.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = -1
	ExitParse      = 3
	ExitEmptyGraph = 4
	ExitIO         = 5
	ExitConfig     = 6
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// Usagef builds a usage error with the standard usage exit code.
func Usagef(format string, args ...any) *AppError {
	return Newf(ErrUsage, ExitUsage, format, args...)
}

// IO wraps an underlying I/O failure so that errors.Is matches both ErrIO
// and the original cause.
func IO(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrParse):
		return ExitParse
	case errors.Is(err, ErrEmptyGraph):
		return ExitEmptyGraph
	case errors.Is(err, ErrIO), errors.Is(err, ErrSourceDenied):
		return ExitIO
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	default:
		return ExitFailure
	}
}

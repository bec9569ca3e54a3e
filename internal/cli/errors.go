// Package cli provides shared configuration and utilities for the rebar CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes. ExitDenied is reserved for `check --exit-code`, where a
// denied decision is a result rather than a failure; scripts branch on
// it the way they branch on grep's exit 1.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitSchemaParse = 3
	ExitDBConnect   = 4
	ExitRejected    = 5
	ExitDenied      = 6
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode reports the code ExitWithError would exit with for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// ExitWithError prints the error and exits with the appropriate code.
func ExitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitCode(err))
}

func coded(code int, msg string, err error) *ExitError {
	return &ExitError{Code: code, Message: msg, Err: err}
}

// ConfigError creates an ExitError with ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return coded(ExitConfig, msg, err)
}

// SchemaParseError creates an ExitError with ExitSchemaParse code.
func SchemaParseError(msg string, err error) *ExitError {
	return coded(ExitSchemaParse, msg, err)
}

// DBConnectError creates an ExitError with ExitDBConnect code.
func DBConnectError(msg string, err error) *ExitError {
	return coded(ExitDBConnect, msg, err)
}

// RejectedError creates an ExitError with ExitRejected code, for
// writes the schema or hierarchy validation turned away.
func RejectedError(msg string, err error) *ExitError {
	return coded(ExitRejected, msg, err)
}

// GeneralError creates an ExitError with ExitGeneral code.
func GeneralError(msg string, err error) *ExitError {
	return coded(ExitGeneral, msg, err)
}

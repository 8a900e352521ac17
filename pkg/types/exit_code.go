// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Exit codes returned by ntcomp.
const (
	ExitOK ExitCode = 0
	// ExitFailure covers configuration and usage errors.
	ExitFailure ExitCode = 1
	// ExitUpdateIncomplete means at least one component failed to update.
	ExitUpdateIncomplete ExitCode = 3
	// ExitRegistryUnavailable means the release listing could not be obtained.
	ExitRegistryUnavailable ExitCode = 4
	// ExitServerFailed means the backend could not start or exited with an error.
	ExitServerFailed ExitCode = 5
	// ExitVerifyMismatch means an installed archive no longer matches its hash.
	ExitVerifyMismatch ExitCode = 6
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted ExitCode = 130
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsPartial reports whether the code means the command finished but some
// components did not.
func (c ExitCode) IsPartial() bool { return c == ExitUpdateIncomplete || c == ExitVerifyMismatch }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

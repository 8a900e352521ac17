// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"
	"strings"
)

// EmptySHA256 is the SHA-256 digest of zero bytes.
const EmptySHA256 Hash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// ErrInvalidHash is the sentinel error wrapped by InvalidHashError.
var ErrInvalidHash = errors.New("invalid content hash")

type (
	// Hash is a hex-encoded SHA-256 content digest. Canonical form is lowercase.
	Hash string

	// InvalidHashError is returned when a Hash is not 64 hex digits.
	InvalidHashError struct {
		Value Hash
	}
)

// Error implements the error interface.
func (e *InvalidHashError) Error() string {
	return fmt.Sprintf("invalid content hash %q (want 64 hex digits)", string(e.Value))
}

// Unwrap returns ErrInvalidHash so callers can use errors.Is.
func (e *InvalidHashError) Unwrap() error { return ErrInvalidHash }

// Validate returns an error if the Hash is not a 64-character hex SHA-256 digest.
func (h Hash) Validate() error {
	if len(h) != 64 {
		return &InvalidHashError{Value: h}
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return &InvalidHashError{Value: h}
		}
	}
	return nil
}

// Normalize returns the lowercase form of the hash.
func (h Hash) Normalize() Hash { return Hash(strings.ToLower(string(h))) }

// Equal reports whether two hashes are the same digest, ignoring hex case.
func (h Hash) Equal(other Hash) bool { return strings.EqualFold(string(h), string(other)) }

// Short returns the first 12 characters of the hash for display.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// String returns the hash as a string.
func (h Hash) String() string { return string(h) }

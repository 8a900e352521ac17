// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// chunkSize bounds the read buffer used while hashing.
const chunkSize = 1 << 20

// ErrChecksumMismatch indicates the computed SHA256 hash does not match the expected hash.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ChecksumError provides details about a checksum verification failure.
// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
type ChecksumError struct {
	Path     string
	Expected component.Hash
	Got      component.Hash
}

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Path, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ComputeFileHash returns the lowercase hex-encoded SHA256 digest of the file
// at path, reading it in bounded chunks.
func ComputeFileHash(path string) (component.Hash, error) {
	return ComputeFileHashContext(context.Background(), path)
}

// ComputeFileHashContext is ComputeFileHash with cancellation between chunks.
func ComputeFileHashContext(ctx context.Context, path string) (_ component.Hash, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic (NFS edge cases).
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, &contextReader{ctx: ctx, r: f}, make([]byte, chunkSize)); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return component.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// Verify reports whether the file at path hashes to expected (case-insensitive).
// A mismatch yields (false, *ChecksumError); I/O failures yield (false, err).
func Verify(ctx context.Context, path string, expected component.Hash) (bool, error) {
	got, err := ComputeFileHashContext(ctx, path)
	if err != nil {
		return false, err
	}

	if !strings.EqualFold(string(got), string(expected)) {
		return false, &ChecksumError{
			Path:     path,
			Expected: expected.Normalize(),
			Got:      got,
		}
	}

	return true, nil
}

// contextReader stops a copy loop once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

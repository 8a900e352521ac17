// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"context"
	"errors"

	"github.com/nodetool-ai/ntcomp/internal/integrity"
	"github.com/nodetool-ai/ntcomp/internal/inventory"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// ArchiveCheck is the result of re-hashing one installed archive.
type ArchiveCheck struct {
	Name     component.Name
	Path     string
	Expected component.Hash // Hash encoded in the file name
	Actual   component.Hash // Empty when the file could not be read
	Err      error          // *Error of KindIntegrity or KindFileSystem
}

// OK reports whether the archive content matches its file name.
func (a ArchiveCheck) OK() bool { return a.Err == nil }

// VerifyInstalled re-hashes the current archive of every known component in
// dir, in known order. Components with no archive are omitted.
func VerifyInstalled(ctx context.Context, dir string, known []component.Name) ([]ArchiveCheck, error) {
	local, err := inventory.Scan(dir, known)
	if err != nil {
		return nil, newError(KindFileSystem, "", "scan store", err)
	}

	var out []ArchiveCheck
	for _, name := range known {
		in, ok := local[name]
		if !ok {
			continue
		}

		check := ArchiveCheck{Name: name, Path: in.ArchivePath, Expected: in.Hash}
		match, err := integrity.Verify(ctx, in.ArchivePath, in.Hash)
		var csErr *integrity.ChecksumError
		switch {
		case match:
			check.Actual = in.Hash.Normalize()
		case errors.As(err, &csErr):
			check.Actual = csErr.Got
			check.Err = newError(KindIntegrity, name, "verify", err)
		default:
			check.Err = newError(KindFileSystem, name, "verify", err)
		}
		out = append(out, check)
	}
	return out, nil
}

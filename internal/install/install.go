// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"fmt"
	"os"

	"github.com/nodetool-ai/ntcomp/internal/inventory"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// ErrInstall wraps every failure of Install.
var ErrInstall = errors.New("install failed")

// Install renames tempPath to canonicalPath and extracts the archive into
// extractDir. Both paths must live on the same filesystem. There is no
// transaction across the two steps: a failed extraction leaves the renamed
// archive in place.
func Install(tempPath, canonicalPath, extractDir string) error {
	if err := os.Rename(tempPath, canonicalPath); err != nil {
		return fmt.Errorf("%w: promoting %s: %w", ErrInstall, tempPath, err)
	}

	if err := Extract(canonicalPath, extractDir); err != nil {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	return nil
}

// RemoveSuperseded deletes the archives of name in dir whose hash is not
// keep, and returns the removed paths. Archives of other components are left
// alone.
func RemoveSuperseded(dir string, name component.Name, keep component.Hash) ([]string, error) {
	stale, err := inventory.Superseded(dir, name, keep)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing superseded archive %s: %w", p, err))
			continue
		}
		removed = append(removed, p)
	}
	return removed, errors.Join(errs...)
}

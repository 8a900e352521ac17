// SPDX-License-Identifier: MPL-2.0

package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// Scan builds the local manifest for known by listing dir.
//
// For each name, files matching `{name}_*.tar` are candidates. When several
// match, the most recently modified wins; equal modification times fall back
// to the lexicographically greatest file name. A missing dir yields an empty
// manifest and no error.
func Scan(dir string, known []component.Name) (component.LocalManifest, error) {
	local := make(component.LocalManifest)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return local, nil
		}
		return nil, fmt.Errorf("reading component store %s: %w", dir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name, hash, ok := component.MatchArchive(e.Name(), known)
		if !ok {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info; another run is replacing it.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		cand := component.Installed{
			Hash:        hash,
			ArchivePath: filepath.Join(dir, e.Name()),
			ModTime:     info.ModTime(),
			Size:        info.Size(),
		}
		if cur, seen := local[name]; !seen || newer(cand, cur) {
			local[name] = cand
		}
	}

	return local, nil
}

// Superseded returns the archives in dir belonging to name whose hash is not keep.
func Superseded(dir string, name component.Name, keep component.Hash) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading component store %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		// Resolve against the full name set so prefixes split the same way as in Scan.
		n, h, ok := component.MatchArchive(e.Name(), component.All())
		if !ok || n != name || h.Equal(keep) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}

func newer(a, b component.Installed) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}
	return filepath.Base(a.ArchivePath) > filepath.Base(b.ArchivePath)
}

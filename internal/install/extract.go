// SPDX-License-Identifier: MPL-2.0

package install

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction root.
var ErrUnsafePath = errors.New("archive entry escapes extraction root")

// Extract unpacks the tar archive at archivePath into dest, overwriting files
// at the same relative path. Directories, regular files and symlinks that
// resolve inside dest are supported; other entry types are skipped.
func Extract(archivePath, dest string) (err error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only file handle

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating extraction root: %w", err)
	}
	root, err := filepath.EvalSymlinks(dest)
	if err != nil {
		return fmt.Errorf("resolving extraction root: %w", err)
	}

	// Re-pointing a link can move where links checked earlier resolve, so
	// the whole root is checked again once the archive is done.
	repointed := false

	tr := tar.NewReader(f)
	for {
		hdr, nextErr := tr.Next()
		if errors.Is(nextErr, io.EOF) {
			if repointed {
				return recheckLinks(root)
			}
			return nil
		}
		if errors.Is(nextErr, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, hdr.Name)
		}
		if nextErr != nil {
			return fmt.Errorf("reading tar entry: %w", nextErr)
		}

		rel, err := entryPath(hdr.Name)
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirMode(hdr)); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := ensureParent(root, target); err != nil {
				return err
			}
			if err := writeFile(target, tr, hdr); err != nil {
				return fmt.Errorf("extracting %s: %w", rel, err)
			}
		case tar.TypeSymlink:
			if err := ensureParent(root, target); err != nil {
				return err
			}
			moved, err := writeSymlink(root, target, hdr.Linkname)
			if err != nil {
				return fmt.Errorf("linking %s: %w", rel, err)
			}
			repointed = repointed || moved
		default:
			// Hard links, devices and FIFOs are not part of component archives.
			continue
		}
	}
}

// entryPath validates and cleans a tar entry name into a root-relative path.
func entryPath(name string) (string, error) {
	p := filepath.FromSlash(name)
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(name, "/") || !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Clean(p), nil
}

// ensureParent creates the parent of target and checks that it still resolves
// inside root once symlinks from earlier entries are followed.
func ensureParent(root, target string) error {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", parent, err)
	}
	resolved, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", parent, err)
	}
	if !within(root, resolved) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, target)
	}
	return nil
}

// writeFile streams the entry into a sibling temp file and renames it over target.
func writeFile(target string, r io.Reader, hdr *tar.Header) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(hdr.FileInfo().Mode().Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if !hdr.ModTime.IsZero() {
		if err := os.Chtimes(tmpPath, hdr.ModTime, hdr.ModTime); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return err
	}
	renamed = true
	return nil
}

// writeSymlink replaces target with a symlink to linkname after checking that
// the link resolves inside root. It reports whether an existing link was
// re-pointed; a link that already points at linkname is left alone.
func writeSymlink(root, target, linkname string) (bool, error) {
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return false, fmt.Errorf("%w: symlink to %q", ErrUnsafePath, linkname)
	}
	if !linkStaysWithin(root, filepath.Dir(target), linkname) {
		return false, fmt.Errorf("%w: symlink to %q", ErrUnsafePath, linkname)
	}

	repointed := false
	if fi, err := os.Lstat(target); err == nil {
		switch {
		case fi.IsDir():
			// Swapping a directory for a link would change where links
			// already checked against it resolve.
			return false, fmt.Errorf("%w: symlink replaces directory %s", ErrUnsafePath, filepath.Base(target))
		case fi.Mode()&os.ModeSymlink != 0:
			if cur, err := os.Readlink(target); err == nil && cur == linkname {
				return false, nil
			}
			repointed = true
		}
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	return repointed, os.Symlink(linkname, target)
}

// recheckLinks walks root and removes every symlink that no longer resolves
// inside it. Any removal is reported as ErrUnsafePath.
func recheckLinks(root string) error {
	var escaped []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		linkname, err := os.Readlink(path)
		if err != nil {
			return err
		}
		if linkStaysWithin(root, filepath.Dir(path), linkname) {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		escaped = append(escaped, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("checking symlinks: %w", err)
	}
	if len(escaped) == 0 {
		return nil
	}

	// Removal waits for the walk so every link is judged against the same tree.
	for _, rel := range escaped {
		_ = os.Remove(filepath.Join(root, rel))
	}
	return fmt.Errorf("%w: re-pointed link leaves %s outside", ErrUnsafePath, strings.Join(escaped, ", "))
}

// maxLinkHops bounds how many extracted links one symlink may pass through.
const maxLinkHops = 40

// linkStaysWithin reports whether linkname, read from dir, resolves inside
// root. Links already extracted are followed, so a chain of individually
// harmless links cannot climb out.
func linkStaysWithin(root, dir, linkname string) bool {
	start, err := filepath.EvalSymlinks(dir)
	if err != nil || !within(root, start) {
		return false
	}
	hops := 0
	_, ok := walkLink(root, start, linkname, &hops)
	return ok
}

// walkLink follows linkname from dir one component at a time and returns
// where it lands. Every intermediate step must stay inside root, and ".."
// may only climb out of directories that already exist, since a later entry
// could otherwise turn the missing name into a link.
func walkLink(root, dir, linkname string, hops *int) (string, bool) {
	if linkname == "" || strings.HasPrefix(linkname, "/") || filepath.IsAbs(linkname) {
		return "", false
	}
	cur, missing := dir, false
	// Components are taken as written: "link/.." climbs from wherever link
	// points, so the name must not be cleaned lexically first.
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if missing {
				return "", false
			}
			cur = filepath.Dir(cur)
		default:
			cur = filepath.Join(cur, part)
			if fi, err := os.Lstat(cur); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				if *hops++; *hops > maxLinkHops {
					return "", false
				}
				next, err := os.Readlink(cur)
				if err != nil {
					return "", false
				}
				var ok bool
				if cur, ok = walkLink(root, filepath.Dir(cur), next, hops); !ok {
					return "", false
				}
			}
			if fi, err := os.Stat(cur); err != nil || !fi.IsDir() {
				missing = true
			}
		}
		if !within(root, cur) {
			return "", false
		}
	}
	return cur, true
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return filepath.IsLocal(rel) || rel == "."
}

func dirMode(hdr *tar.Header) os.FileMode {
	if perm := hdr.FileInfo().Mode().Perm(); perm != 0 {
		return perm | 0o700
	}
	return 0o755
}

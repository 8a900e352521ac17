// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// Tar builds an uncompressed tar archive of regular files. Entries are
// written in name order so equal inputs give byte-identical archives.
func Tar(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("writing tar body %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	return buf.Bytes()
}

// Digest returns the SHA-256 of b as a component hash.
func Digest(b []byte) component.Hash {
	sum := sha256.Sum256(b)
	return component.Hash(hex.EncodeToString(sum[:]))
}

// WriteArchive stores data as the canonical archive for name in dir and
// returns its path. A non-zero mtime is applied to the file.
func WriteArchive(t testing.TB, dir string, name component.Name, data []byte, mtime time.Time) string {
	t.Helper()

	MustMkdirAll(t, dir)
	path := filepath.Join(dir, component.ArchiveName(name, Digest(data)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("setting archive mtime: %v", err)
		}
	}
	return path
}

// MustMkdirAll creates path with any missing parents.
func MustMkdirAll(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", path, err)
	}
}

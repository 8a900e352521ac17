// SPDX-License-Identifier: MPL-2.0

package install

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
	mode     int64
}

// buildTar creates a tar archive in memory from the given entries.
func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	mtime := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		mode := e.mode
		if mode == 0 {
			mode = 0o644
			if typeflag == tar.TypeDir {
				mode = 0o755
			}
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: typeflag,
			Linkname: e.linkname,
			Mode:     mode,
			ModTime:  mtime,
		}
		if typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header %s: %v", e.name, err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("writing tar body %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// treeDigest hashes every regular file and symlink under root, keyed by relative path.
func treeDigest(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			out[rel] = "link:" + target
		case d.Type().IsRegular():
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			sum := sha256.Sum256(data)
			info, _ := d.Info()
			out[rel] = hex.EncodeToString(sum[:]) + " " + info.Mode().String() + " " + info.ModTime().UTC().String()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walking %s: %v", root, err)
	}
	return out
}

func TestInstall_RenamesAndExtracts(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	archive := buildTar(t, []tarEntry{
		{name: "web/", typeflag: tar.TypeDir},
		{name: "web/index.html", body: "<html></html>"},
		{name: "web/assets/app.js", body: "console.log(1)"},
		{name: "web/run.sh", body: "#!/bin/sh\n", mode: 0o755},
	})
	tempPath := writeArchive(t, store, "web.123.tmp", archive)
	canonical := filepath.Join(store, component.ArchiveName(component.Web, component.Hash(strings.Repeat("a", 64))))

	if err := Install(tempPath, canonical, store); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Errorf("temp file should be gone after rename, stat err = %v", err)
	}
	if _, err := os.Stat(canonical); err != nil {
		t.Errorf("canonical archive missing: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(store, "web", "assets", "app.js"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(got) != "console.log(1)" {
		t.Errorf("app.js = %q", got)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(store, "web", "run.sh"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("run.sh mode = %v, want 0755", info.Mode().Perm())
		}
	}
}

func TestInstall_MissingTempFile(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	err := Install(filepath.Join(store, "nope.tmp"), filepath.Join(store, "web_x.tar"), store)
	if !errors.Is(err, ErrInstall) {
		t.Fatalf("expected ErrInstall, got %v", err)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	archive := writeArchive(t, t.TempDir(), "src.tar", buildTar(t, []tarEntry{
		{name: "src/", typeflag: tar.TypeDir},
		{name: "src/pkg/__init__.py", body: ""},
		{name: "src/pkg/main.py", body: "print('hi')\n"},
		{name: "src/latest", typeflag: tar.TypeSymlink, linkname: "pkg/main.py"},
	}))

	if err := Extract(archive, store); err != nil {
		t.Fatalf("first Extract() error: %v", err)
	}
	first := treeDigest(t, store)

	if err := Extract(archive, store); err != nil {
		t.Fatalf("second Extract() error: %v", err)
	}
	second := treeDigest(t, store)

	if len(first) != len(second) {
		t.Fatalf("tree changed size: %d vs %d entries", len(first), len(second))
	}
	for k, v := range first {
		if second[k] != v {
			t.Errorf("%s changed: %q -> %q", k, v, second[k])
		}
	}
	if _, ok := first[filepath.Join("src", "latest")]; !ok {
		t.Error("in-root symlink was not created")
	}
}

func TestExtract_AdditiveOverwrite(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	v1 := writeArchive(t, t.TempDir(), "v1.tar", buildTar(t, []tarEntry{
		{name: "web/old.js", body: "old"},
		{name: "web/app.js", body: "v1"},
	}))
	v2 := writeArchive(t, t.TempDir(), "v2.tar", buildTar(t, []tarEntry{
		{name: "web/app.js", body: "v2"},
		{name: "web/new.js", body: "new"},
	}))

	if err := Extract(v1, store); err != nil {
		t.Fatal(err)
	}
	if err := Extract(v2, store); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"old.js": "old", "app.js": "v2", "new.js": "new"}
	for name, body := range want {
		got, err := os.ReadFile(filepath.Join(store, "web", name))
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if string(got) != body {
			t.Errorf("%s = %q, want %q", name, got, body)
		}
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Join(store, "web"))
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "app.js,new.js,old.js" {
		t.Errorf("unexpected directory content: %v", names)
	}
}

func TestExtract_RejectsUnsafeEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{name: "parent traversal", entries: []tarEntry{{name: "../evil.txt", body: "x"}}},
		{name: "nested traversal", entries: []tarEntry{{name: "web/../../evil.txt", body: "x"}}},
		{name: "absolute path", entries: []tarEntry{{name: "/tmp/evil.txt", body: "x"}}},
		{name: "absolute symlink", entries: []tarEntry{{name: "web/passwd", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"}}},
		{name: "escaping symlink", entries: []tarEntry{{name: "web/up", typeflag: tar.TypeSymlink, linkname: "../../outside"}}},
		{name: "chained symlinks", entries: []tarEntry{
			{name: "a", typeflag: tar.TypeSymlink, linkname: "."},
			{name: "a/b", typeflag: tar.TypeSymlink, linkname: ".."},
		}},
		{name: "symlink through earlier symlink", entries: []tarEntry{
			{name: "here", typeflag: tar.TypeSymlink, linkname: "."},
			{name: "web/", typeflag: tar.TypeDir},
			{name: "web/up", typeflag: tar.TypeSymlink, linkname: "../here/.."},
		}},
		{name: "dangling chain climbing out", entries: []tarEntry{
			{name: "x", typeflag: tar.TypeSymlink, linkname: "y"},
			{name: "y", typeflag: tar.TypeSymlink, linkname: "."},
			{name: "z", typeflag: tar.TypeSymlink, linkname: "x/.."},
		}},
		{name: "re-pointed symlink", entries: []tarEntry{
			{name: "sub/", typeflag: tar.TypeDir},
			{name: "a", typeflag: tar.TypeSymlink, linkname: "sub"},
			{name: "x", typeflag: tar.TypeSymlink, linkname: "a/.."},
			{name: "a", typeflag: tar.TypeSymlink, linkname: "."},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parent := t.TempDir()
			store := filepath.Join(parent, "store")
			archive := writeArchive(t, parent, "bad.tar", buildTar(t, tt.entries))

			err := Extract(archive, store)
			if !errors.Is(err, ErrUnsafePath) {
				t.Fatalf("expected ErrUnsafePath, got %v", err)
			}
			if _, statErr := os.Stat(filepath.Join(parent, "evil.txt")); !os.IsNotExist(statErr) {
				t.Error("file escaped the extraction root")
			}
		})
	}
}

func TestExtract_SymlinkChainsInsideRoot(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	archive := writeArchive(t, t.TempDir(), "lib.tar", buildTar(t, []tarEntry{
		{name: "lib/", typeflag: tar.TypeDir},
		{name: "lib/libav.so.1", typeflag: tar.TypeSymlink, linkname: "libav.so.1.2"},
		{name: "lib/libav.so", typeflag: tar.TypeSymlink, linkname: "libav.so.1"},
		{name: "lib/libav.so.1.2", body: "elf"},
		{name: "bin/", typeflag: tar.TypeDir},
		{name: "bin/lib", typeflag: tar.TypeSymlink, linkname: "../lib"},
		{name: "bin/av", typeflag: tar.TypeSymlink, linkname: "lib/libav.so"},
	}))

	if err := Extract(archive, store); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(store, "bin", "av"))
	if err != nil {
		t.Fatalf("reading through link chain: %v", err)
	}
	if string(data) != "elf" {
		t.Errorf("link chain content = %q, want %q", data, "elf")
	}
}

func TestExtract_RepointAcrossInstalls(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	store := filepath.Join(parent, "store")
	v1 := writeArchive(t, parent, "v1.tar", buildTar(t, []tarEntry{
		{name: "web/", typeflag: tar.TypeDir},
		{name: "web/assets/", typeflag: tar.TypeDir},
		{name: "web/current", typeflag: tar.TypeSymlink, linkname: "assets"},
		{name: "web/root", typeflag: tar.TypeSymlink, linkname: "current/.."},
	}))
	v2 := writeArchive(t, parent, "v2.tar", buildTar(t, []tarEntry{
		{name: "web/current", typeflag: tar.TypeSymlink, linkname: ".."},
	}))

	if err := Extract(v1, store); err != nil {
		t.Fatalf("Extract(v1) error: %v", err)
	}
	err := Extract(v2, store)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("Extract(v2) = %v, want ErrUnsafePath", err)
	}
	if _, err := os.Lstat(filepath.Join(store, "web", "root")); !os.IsNotExist(err) {
		t.Errorf("escaping link was left in the store: %v", err)
	}
}

func TestExtract_RepointInsideRoot(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	v1 := writeArchive(t, t.TempDir(), "v1.tar", buildTar(t, []tarEntry{
		{name: "lib/", typeflag: tar.TypeDir},
		{name: "lib/libav.so.1", body: "one"},
		{name: "lib/libav.so", typeflag: tar.TypeSymlink, linkname: "libav.so.1"},
	}))
	v2 := writeArchive(t, t.TempDir(), "v2.tar", buildTar(t, []tarEntry{
		{name: "lib/", typeflag: tar.TypeDir},
		{name: "lib/libav.so.2", body: "two"},
		{name: "lib/libav.so", typeflag: tar.TypeSymlink, linkname: "libav.so.2"},
	}))

	for _, archive := range []string{v1, v1, v2} {
		if err := Extract(archive, store); err != nil {
			t.Fatalf("Extract(%s) error: %v", filepath.Base(archive), err)
		}
	}
	data, err := os.ReadFile(filepath.Join(store, "lib", "libav.so"))
	if err != nil {
		t.Fatalf("reading re-pointed link: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("re-pointed link content = %q, want %q", data, "two")
	}
}

func TestExtract_SkipsUnsupportedTypes(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	archive := writeArchive(t, t.TempDir(), "a.tar", buildTar(t, []tarEntry{
		{name: "ffmpeg/fifo", typeflag: tar.TypeFifo},
		{name: "ffmpeg/ffmpeg", body: "bin", mode: 0o755},
	}))

	if err := Extract(archive, store); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(store, "ffmpeg", "fifo")); !os.IsNotExist(err) {
		t.Errorf("fifo entry should be skipped, lstat err = %v", err)
	}
}

func TestExtract_CorruptArchive(t *testing.T) {
	t.Parallel()

	archive := writeArchive(t, t.TempDir(), "bad.tar", bytes.Repeat([]byte{0xff}, 1024))
	if err := Extract(archive, t.TempDir()); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}

func TestRemoveSuperseded(t *testing.T) {
	t.Parallel()

	store := t.TempDir()
	keep := component.Hash(strings.Repeat("a", 64))
	old := component.Hash(strings.Repeat("b", 64))

	writeArchive(t, store, component.ArchiveName(component.Web, keep), nil)
	oldPath := writeArchive(t, store, component.ArchiveName(component.Web, old), nil)
	otherPath := writeArchive(t, store, component.ArchiveName(component.Src, old), nil)

	removed, err := RemoveSuperseded(store, component.Web, keep)
	if err != nil {
		t.Fatalf("RemoveSuperseded() error: %v", err)
	}
	if len(removed) != 1 || removed[0] != oldPath {
		t.Errorf("removed = %v, want [%s]", removed, oldPath)
	}
	if _, err := os.Stat(otherPath); err != nil {
		t.Errorf("archive of another component was touched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store, component.ArchiveName(component.Web, keep))); err != nil {
		t.Errorf("kept archive missing: %v", err)
	}
}

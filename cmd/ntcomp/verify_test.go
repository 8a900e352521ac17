// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/internal/testutil"
	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

func TestVerify_AllArchivesMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	testutil.WriteArchive(t, cfg.ComponentsDir, component.Src, tarball(t, component.Src), time.Time{})
	testutil.WriteArchive(t, cfg.ComponentsDir, component.Web, tarball(t, component.Web), time.Time{})

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "verify")
	assertExitCode(t, err, types.ExitOK)

	if !strings.Contains(stdout, "All 2 archives verified") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestVerify_DetectsTamperedArchive(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	testutil.WriteArchive(t, cfg.ComponentsDir, component.Src, tarball(t, component.Src), time.Time{})

	tampered := filepath.Join(cfg.ComponentsDir, component.ArchiveName(component.Ollama, testutil.Digest([]byte("original"))))
	if err := os.WriteFile(tampered, []byte("modified"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "verify")
	assertExitCode(t, err, types.ExitVerifyMismatch)

	if !errors.Is(err, errVerifyMismatch) {
		t.Errorf("error %v does not wrap errVerifyMismatch", err)
	}
	if !strings.Contains(stdout, "1 of 2 archives failed verification") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestVerify_EmptyStore(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "verify")
	assertExitCode(t, err, types.ExitOK)

	if !strings.Contains(stdout, "No installed components") {
		t.Errorf("stdout = %q", stdout)
	}
}

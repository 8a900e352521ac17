// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/internal/testutil"
	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

func TestUpdate_InstallsChangedComponents(t *testing.T) {
	t.Parallel()

	src, web := tarball(t, component.Src), tarball(t, component.Web)
	reg := newRegistry(t,
		published{name: component.Src, payload: src},
		published{name: component.Web, payload: web},
	)
	cfg := testConfig(t, reg.URL)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "ntcomp.prom")

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "update")
	assertExitCode(t, err, types.ExitOK)

	if !strings.Contains(stdout, "2 of 2 components updated, 0 failed") {
		t.Errorf("stdout missing summary:\n%s", stdout)
	}
	for name, payload := range map[component.Name][]byte{component.Src: src, component.Web: web} {
		archive := filepath.Join(cfg.ComponentsDir, component.ArchiveName(name, testutil.Digest(payload)))
		if _, err := os.Stat(archive); err != nil {
			t.Errorf("archive for %s not installed: %v", name, err)
		}
	}

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("metrics textfile not written: %v", err)
	}
	if !strings.Contains(string(metrics), "ntcomp_") {
		t.Errorf("metrics textfile has no ntcomp metrics:\n%s", metrics)
	}
}

func TestUpdate_CheckDoesNotDownload(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t, published{name: component.Ollama, payload: tarball(t, component.Ollama)})
	cfg := testConfig(t, reg.URL)

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "update", "--check")
	assertExitCode(t, err, types.ExitOK)

	for _, want := range []string{"1 of 1 components need an update", "v0.6.3", "ollama", "missing"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	entries, err := os.ReadDir(cfg.ComponentsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("--check modified the store: %v", entries)
	}
}

func TestUpdate_UpToDate(t *testing.T) {
	t.Parallel()

	web := tarball(t, component.Web)
	reg := newRegistry(t, published{name: component.Web, payload: web})
	cfg := testConfig(t, reg.URL)
	testutil.WriteArchive(t, cfg.ComponentsDir, component.Web, web, time.Time{})

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "update")
	assertExitCode(t, err, types.ExitOK)

	if !strings.Contains(stdout, "All components are up to date") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestUpdate_IntegrityFailureIsPartial(t *testing.T) {
	t.Parallel()

	reg := newRegistry(t,
		published{name: component.FFmpeg, payload: tarball(t, component.FFmpeg), hash: testutil.Digest([]byte("something else"))},
		published{name: component.Src, payload: tarball(t, component.Src)},
	)
	cfg := testConfig(t, reg.URL)

	stdout, _, err := runCLI(t, staticConfig{cfg: cfg}, "update")
	assertExitCode(t, err, types.ExitUpdateIncomplete)

	if !strings.Contains(stdout, "1 of 2 components updated, 1 failed") {
		t.Errorf("stdout missing summary:\n%s", stdout)
	}
	if !strings.Contains(stdout, markFail) {
		t.Errorf("stdout does not flag the failed component:\n%s", stdout)
	}
}

func TestUpdate_RegistryFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		headers map[string]string
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "rate limited", status: http.StatusForbidden, headers: map[string]string{
			"X-RateLimit-Limit":     "60",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "1700000000",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := newFailingRegistry(t, tt.status, tt.headers)
			cfg := testConfig(t, reg.URL)

			_, stderr, err := runCLI(t, staticConfig{cfg: cfg}, "update")
			assertExitCode(t, err, types.ExitRegistryUnavailable)

			if !strings.Contains(stderr, "Error:") {
				t.Errorf("stderr missing error line:\n%s", stderr)
			}
		})
	}
}

func TestUpdate_ConfigError(t *testing.T) {
	t.Parallel()

	_, stderr, err := runCLI(t, staticConfig{err: os.ErrNotExist}, "update")
	assertExitCode(t, err, types.ExitFailure)

	if !strings.Contains(stderr, "file does not exist") {
		t.Errorf("stderr = %q", stderr)
	}
}

// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/issue"
	"github.com/nodetool-ai/ntcomp/internal/launch"
	"github.com/nodetool-ai/ntcomp/internal/registry"
	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

func TestGuidanceFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   issue.Id
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"plain", errors.New("boom"), 0, false},
		{"rate limit", fmt.Errorf("fetch: %w", &registry.RateLimitError{Limit: 60, ResetAt: time.Unix(0, 0)}), issue.RateLimitedId, true},
		{"network", &updater.Error{Kind: updater.KindNetwork, Op: "fetch manifest", Err: errors.New("dial tcp")}, issue.RegistryUnreachableId, true},
		{"integrity", &updater.Error{Kind: updater.KindIntegrity, Op: "verify", Err: errors.New("mismatch")}, issue.ChecksumMismatchId, true},
		{"filesystem", &updater.Error{Kind: updater.KindFileSystem, Op: "install", Err: errors.New("disk full")}, issue.StoreNotWritableId, true},
		{"parse", &updater.Error{Kind: updater.KindParse, Op: "fetch manifest", Err: errors.New("bad json")}, 0, false},
		{"permission", &fs.PathError{Op: "open", Path: "/store", Err: os.ErrPermission}, issue.StoreNotWritableId, true},
		{"python missing", fmt.Errorf("%w: /store/python_env/bin/python", launch.ErrPythonMissing), issue.PythonMissingId, true},
		{"server exited", fmt.Errorf("%w: exit status 1", launch.ErrExited), issue.ServerFailedId, true},
		{"invalid config", fmt.Errorf("validate: %w", config.ErrInvalidConfig), issue.ConfigLoadFailedId, true},
		{"config load", issue.NewErrorContext().WithOperation("load configuration").Wrap(errors.New("syntax")).BuildError(), issue.ConfigLoadFailedId, true},
		{"other actionable", issue.WrapWithContext(errors.New("not a directory"), "scan component store", "/store"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := guidanceFor(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("guidanceFor() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRenderGuidance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderGuidance(&buf, fmt.Errorf("%w: missing", launch.ErrPythonMissing), config.ColorSchemeAuto)
	if !bytes.Contains(buf.Bytes(), []byte("Python environment is not installed")) {
		t.Errorf("rendered guidance = %q", buf.String())
	}

	buf.Reset()
	renderGuidance(&buf, errors.New("unclassified"), config.ColorSchemeDark)
	if buf.Len() != 0 {
		t.Errorf("unclassified error rendered guidance: %q", buf.String())
	}
}

func TestExitCodeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"nil", nil, types.ExitOK},
		{"exit error", &ExitError{Code: types.ExitVerifyMismatch}, types.ExitVerifyMismatch},
		{"wrapped exit error", fmt.Errorf("cmd: %w", &ExitError{Code: types.ExitServerFailed}), types.ExitServerFailed},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), types.ExitInterrupted},
		{"other", errors.New("unknown flag"), types.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := exitCodeOf(tt.err); got != tt.want {
				t.Errorf("exitCodeOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Error(t *testing.T) {
	t.Parallel()

	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	cause := errors.New("2 of 3 components updated, 1 failed")
	e := &ExitError{Code: 3, Err: cause}
	if e.Error() != cause.Error() || !errors.Is(e, cause) {
		t.Errorf("ExitError does not expose its cause")
	}
}

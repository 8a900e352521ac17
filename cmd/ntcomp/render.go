// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/issue"
	"github.com/nodetool-ai/ntcomp/internal/launch"
	"github.com/nodetool-ai/ntcomp/internal/registry"
	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

// guidanceFor picks the guidance document for err, if one applies.
func guidanceFor(err error) (issue.Id, bool) {
	var (
		rateLimited *registry.RateLimitError
		actionable  *issue.ActionableError
	)
	switch {
	case err == nil:
		return 0, false
	case errors.As(err, &rateLimited):
		return issue.RateLimitedId, true
	case errors.Is(err, launch.ErrPythonMissing):
		return issue.PythonMissingId, true
	case errors.Is(err, launch.ErrExited):
		return issue.ServerFailedId, true
	case errors.Is(err, os.ErrPermission):
		return issue.StoreNotWritableId, true
	case errors.Is(err, config.ErrInvalidConfig),
		errors.As(err, &actionable) && strings.HasSuffix(actionable.Operation, "configuration"):
		return issue.ConfigLoadFailedId, true
	}

	kind, ok := updater.KindOf(err)
	if !ok {
		return 0, false
	}
	switch kind {
	case updater.KindNetwork:
		return issue.RegistryUnreachableId, true
	case updater.KindIntegrity:
		return issue.ChecksumMismatchId, true
	case updater.KindFileSystem:
		return issue.StoreNotWritableId, true
	default:
		return 0, false
	}
}

// renderGuidance writes the guidance for err, rendered with the configured
// glamour style. Nothing is written when no guidance applies.
func renderGuidance(w io.Writer, err error, scheme config.ColorScheme) {
	id, ok := guidanceFor(err)
	if !ok {
		return
	}
	out, rerr := issue.Get(id).Render(scheme.GlamourStyle())
	if rerr != nil {
		out = string(issue.Get(id).MarkdownMsg())
	}
	fmt.Fprintln(w, strings.TrimRight(out, "\n"))
}

// fail prints err with its guidance and returns the ExitError for code.
// Errors are printed here, so cobra and fang are told to stay quiet.
func (a *App) fail(cmd *cobra.Command, cfg *config.Config, code types.ExitCode, err error) error {
	cmd.SilenceErrors = true

	fmt.Fprintln(a.stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, a.verbose))

	scheme := config.ColorSchemeAuto
	if cfg != nil {
		scheme = cfg.UI.ColorScheme
	}
	renderGuidance(a.stderr, err, scheme)

	return &ExitError{Code: code, Err: err}
}

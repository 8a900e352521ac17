// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

// errVerifyMismatch is reported when at least one archive fails re-hashing.
var errVerifyMismatch = errors.New("installed archives do not match their content hash")

func newVerifyCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash installed archives against their file names",
		Long: `Recompute the SHA-256 of every installed component archive and compare it
with the hash encoded in its file name. Run 'ntcomp update' afterwards to
replace any archive reported as corrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			known, err := cfg.ComponentNames()
			if err != nil {
				return app.fail(cmd, cfg, types.ExitFailure, err)
			}

			checks, err := runVerify(cmd.Context(), app.stdout, cfg.ComponentsDir, known)
			if err != nil {
				return app.fail(cmd, cfg, types.ExitFailure, err)
			}
			for _, c := range checks {
				if !c.OK() {
					return app.fail(cmd, cfg, types.ExitVerifyMismatch, fmt.Errorf("%w: %w", errVerifyMismatch, c.Err))
				}
			}
			return nil
		},
	}
}

func runVerify(ctx context.Context, w io.Writer, dir string, known []component.Name) ([]updater.ArchiveCheck, error) {
	checks, err := updater.VerifyInstalled(ctx, dir, known)
	if err != nil {
		return nil, err
	}
	if len(checks) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No installed components in "+dir))
		return nil, nil
	}

	bad := 0
	for _, c := range checks {
		name := CmdStyle.Render(fmt.Sprintf("%-11s", c.Name))
		if c.OK() {
			fmt.Fprintf(w, "%s %s %s\n", SuccessStyle.Render(markOK), name, c.Expected.Short())
			continue
		}
		bad++
		fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render(markFail), name, c.Err)
	}

	if bad == 0 {
		fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("All %d archives verified", len(checks))))
	} else {
		fmt.Fprintln(w, ErrorStyle.Render(fmt.Sprintf("%d of %d archives failed verification", bad, len(checks))))
	}
	return checks, nil
}

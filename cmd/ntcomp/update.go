// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

// updateParams holds the inputs of runUpdate.
type updateParams struct {
	stdout  io.Writer
	engine  *engine
	verbose bool
}

func newUpdateCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download and install changed components",
		Long: `Fetch the latest release listing, compare it with the component store and
install every component whose content hash changed.

Components are independent: one failed download does not stop the others,
and a failed component keeps its previously installed version.`,
		Example: `  # Update everything that changed
  ntcomp update

  # Show what would be updated without downloading
  ntcomp update --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			check, _ := cmd.Flags().GetBool("check")

			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			e, err := app.newEngine(cfg, newConsoleSink(app.stdout))
			if err != nil {
				return app.fail(cmd, cfg, types.ExitFailure, err)
			}

			p := updateParams{
				stdout:  app.stdout,
				engine:  e,
				verbose: app.verbose,
			}
			if check {
				if err := runCheck(cmd.Context(), p); err != nil {
					return app.fail(cmd, cfg, classifyRunError(err), err)
				}
				return nil
			}
			return app.finishUpdate(cmd, cfg, runUpdate(cmd.Context(), p))
		},
	}

	cmd.Flags().Bool("check", false, "show the update plan without downloading anything")

	return cmd
}

func runUpdate(ctx context.Context, p updateParams) updater.Summary {
	sum := p.engine.updater.Run(ctx)
	p.engine.writeMetrics()
	printSummary(p.stdout, sum, p.verbose)
	return sum
}

func runCheck(ctx context.Context, p updateParams) error {
	preview, err := p.engine.updater.Preview(ctx)
	if err != nil {
		return err
	}
	for _, w := range preview.Warnings {
		fmt.Fprintln(p.stdout, WarningStyle.Render("Warning: ")+w.Error())
	}

	if len(preview.Plan) == 0 {
		fmt.Fprintln(p.stdout, SuccessStyle.Render(markOK+" All components are up to date"))
		return nil
	}

	fmt.Fprintln(p.stdout, TitleStyle.Render(fmt.Sprintf("%d of %d components need an update (release %s)",
		len(preview.Plan), preview.Remote.Len(), releaseTag(preview))))

	rows := make([][]string, 0, len(preview.Plan))
	for _, item := range preview.Plan {
		installed := "-"
		if item.Installed != "" {
			installed = item.Installed.Short()
		}
		rows = append(rows, []string{
			string(item.Component.Name),
			string(item.Reason),
			installed,
			item.Component.Hash.Short(),
			sizeOrDash(item.Component.Size),
		})
	}
	fmt.Fprintln(p.stdout, renderTable([]string{"COMPONENT", "REASON", "INSTALLED", "AVAILABLE", "SIZE"}, rows))
	if total := preview.Plan.TotalBytes(); total > 0 {
		fmt.Fprintf(p.stdout, "Total download: %s\n", units.HumanSize(float64(total)))
	}
	return nil
}

// finishUpdate turns a Summary into the command outcome.
func (a *App) finishUpdate(cmd *cobra.Command, cfg *config.Config, sum updater.Summary) error {
	if sum.Err != nil {
		return a.fail(cmd, cfg, classifyRunError(sum.Err), sum.Err)
	}
	if sum.OK() {
		return nil
	}

	cmd.SilenceErrors = true
	var errs []error
	for _, r := range sum.Failures() {
		errs = append(errs, r.Err)
	}
	renderGuidance(a.stderr, errors.Join(errs...), cfg.UI.ColorScheme)
	return &ExitError{Code: types.ExitUpdateIncomplete, Err: errors.New(sum.String())}
}

// classifyRunError maps a run-level failure to its exit code.
func classifyRunError(err error) types.ExitCode {
	kind, ok := updater.KindOf(err)
	if ok && (kind == updater.KindNetwork || kind == updater.KindParse) {
		return types.ExitRegistryUnavailable
	}
	return types.ExitFailure
}

// printSummary writes per-component results, warnings and the final line.
// A run-level error is left to the caller.
func printSummary(w io.Writer, sum updater.Summary, verbose bool) {
	for _, warn := range sum.Warnings {
		fmt.Fprintln(w, WarningStyle.Render("Warning: ")+warn.Error())
	}
	if sum.Err != nil {
		return
	}

	for _, r := range sum.Results {
		name := CmdStyle.Render(fmt.Sprintf("%-11s", r.Component.Name))
		if r.State.IsFailure() {
			fmt.Fprintf(w, "%s %s %s\n", ErrorStyle.Render(markFail), name, r.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s %s (%s in %s)\n", SuccessStyle.Render(markOK), name,
			r.Component.Hash.Short(), units.HumanSize(float64(r.Bytes)), r.Duration.Round(time.Millisecond))
		if verbose {
			for _, path := range r.Removed {
				fmt.Fprintln(w, SubtitleStyle.Render("    removed "+path))
			}
		}
	}

	line := sum.String()
	switch {
	case sum.OK():
		fmt.Fprintln(w, SuccessStyle.Render(line))
	default:
		fmt.Fprintln(w, ErrorStyle.Render(line))
	}
}

func releaseTag(p *updater.Preview) string {
	if p.Release == nil || strings.TrimSpace(p.Release.TagName) == "" {
		return "untagged"
	}
	return p.Release.TagName
}

func sizeOrDash(n int64) string {
	if n <= 0 {
		return "-"
	}
	return units.HumanSize(float64(n))
}

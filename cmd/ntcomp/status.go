// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/inventory"
	"github.com/nodetool-ai/ntcomp/internal/issue"
	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

type statusParams struct {
	stdout  io.Writer
	cfg     *config.Config
	known   []component.Name
	engine  *engine // nil when offline
	verbose bool
}

func newStatusCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show installed components and pending updates",
		Long: `List what is installed in the component store. Unless --offline is given,
the latest release is consulted as well and each component is marked as
current or outdated. A registry failure only skips that column.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			offline, _ := cmd.Flags().GetBool("offline")

			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			known, err := cfg.ComponentNames()
			if err != nil {
				return app.fail(cmd, cfg, types.ExitFailure, err)
			}

			p := statusParams{stdout: app.stdout, cfg: cfg, known: known, verbose: app.verbose}
			if !offline {
				if p.engine, err = app.newEngine(cfg, updater.NopSink{}); err != nil {
					return app.fail(cmd, cfg, types.ExitFailure, err)
				}
			}

			if err := runStatus(cmd.Context(), p); err != nil {
				return app.fail(cmd, cfg, types.ExitFailure, err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("offline", false, "do not contact the registry")

	return cmd
}

func runStatus(ctx context.Context, p statusParams) error {
	dir := p.cfg.ComponentsDir
	local, err := inventory.Scan(dir, p.known)
	if err != nil {
		return issue.WrapWithContext(err, "scan component store", dir)
	}

	cache, err := inventory.OpenCache(dir).Load()
	if err != nil {
		fmt.Fprintln(p.stdout, WarningStyle.Render("Warning: ")+err.Error())
	}

	var preview *updater.Preview
	if p.engine != nil {
		preview, err = p.engine.updater.Preview(ctx)
		if err != nil {
			fmt.Fprintln(p.stdout, WarningStyle.Render("Warning: ")+"remote check skipped: "+err.Error())
		}
	}

	fmt.Fprintln(p.stdout, TitleStyle.Render("Component store: ")+dir)
	if p.cfg.Source != "" && p.verbose {
		fmt.Fprintln(p.stdout, SubtitleStyle.Render("Config: "+p.cfg.Source))
	}

	rows := make([][]string, 0, len(p.known))
	for _, name := range p.known {
		row := []string{string(name), "-", "-", "-", remoteColumn(name, local, preview)}
		if in, ok := local[name]; ok {
			row[1] = in.Hash.Short()
			row[2] = sizeOrDash(in.Size)
			when := in.ModTime
			if e, ok := cache.Lookup(name); ok && e.Hash.Equal(in.Hash) && !e.InstalledAt.IsZero() {
				when = e.InstalledAt
			}
			row[3] = when.Local().Format(time.DateTime)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(p.stdout, renderTable([]string{"COMPONENT", "INSTALLED", "SIZE", "INSTALLED AT", "REMOTE"}, rows))

	if stale := cache.Disagreements(local); len(stale) > 0 {
		names := make([]string, len(stale))
		for i, n := range stale {
			names[i] = string(n)
		}
		fmt.Fprintln(p.stdout, WarningStyle.Render("Warning: ")+
			"inventory cache disagrees with the store for "+strings.Join(names, ", ")+"; the store wins")
	}
	return nil
}

func remoteColumn(name component.Name, local component.LocalManifest, preview *updater.Preview) string {
	if preview == nil {
		return "-"
	}
	remote, ok := preview.Remote.Get(name)
	if !ok {
		return "not published"
	}
	installed, ok := local.Hash(name)
	switch {
	case !ok:
		return "available " + remote.Hash.Short()
	case installed.Equal(remote.Hash):
		return "up to date"
	default:
		return "update " + remote.Hash.Short()
	}
}

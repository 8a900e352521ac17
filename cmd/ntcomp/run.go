// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/launch"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

// errUpdateBlocked is returned when startup.block_on_failure refuses to start.
var errUpdateBlocked = errors.New("component update incomplete; not starting the server (startup.block_on_failure)")

type runParams struct {
	stdout io.Writer
	cfg    *config.Config
}

func newRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Update components, then start the NodeTool server",
		Long: `Bring the component store up to date and start the NodeTool server from it.

A failed update does not prevent startup: the server runs with whatever is
installed, unless startup.block_on_failure is set. The command returns when
the server exits or ntcomp is interrupted, which stops the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			skip, _ := cmd.Flags().GetBool("skip-update")

			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}

			if !skip {
				e, err := app.newEngine(cfg, newConsoleSink(app.stdout))
				if err != nil {
					return app.fail(cmd, cfg, types.ExitFailure, err)
				}
				sum := runUpdate(cmd.Context(), updateParams{stdout: app.stdout, engine: e, verbose: app.verbose})
				if !sum.OK() {
					if cfg.Startup.BlockOnFailure {
						code := types.ExitUpdateIncomplete
						cause := errors.New(sum.String())
						if sum.Err != nil {
							code, cause = classifyRunError(sum.Err), sum.Err
						}
						return app.fail(cmd, cfg, code, fmt.Errorf("%w: %w", errUpdateBlocked, cause))
					}
					fmt.Fprintln(app.stdout, WarningStyle.Render("Warning: ")+"starting with the components already installed")
				}
			}

			p := runParams{stdout: app.stdout, cfg: cfg}
			if err := runServer(cmd.Context(), p, app.logger()); err != nil {
				return app.fail(cmd, cfg, types.ExitServerFailed, err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("skip-update", false, "start the server without checking for updates")

	return cmd
}

// runServer starts the backend and blocks until it exits. Cancelling ctx
// stops the server and is not reported as a failure.
func runServer(ctx context.Context, p runParams, log *slog.Logger) error {
	layout, err := launch.ResolveLayout(p.cfg.ComponentsDir, p.cfg.Server.PythonEnvDir, runtime.GOOS)
	if err != nil {
		return err
	}

	// Server output arrives from two pipe readers while we keep printing.
	out := &lockedWriter{w: p.stdout}
	srv := launch.NewServer(launch.Config{
		Layout:  layout,
		Command: p.cfg.Server.Command,
		Env:     p.cfg.Server.Env,
		Logger:  log,
		Lines: func(line string) {
			fmt.Fprintln(out, line)
		},
	})

	newConsoleSink(out).BootMessage("Starting server...")
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if err := srv.WaitForReady(ctx); err != nil {
		if ctx.Err() != nil {
			_ = srv.Wait()
			return nil
		}
		return err
	}
	fmt.Fprintln(out, SuccessStyle.Render(markOK+" Server is ready"))

	err = srv.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", launch.ErrExited, err)
	}
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

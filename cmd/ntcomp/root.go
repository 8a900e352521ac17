// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/issue"
)

var (
	// Version is set at build time via -ldflags.
	Version = "dev"
	// Commit is set at build time via -ldflags.
	Commit = "unknown"
	// BuildDate is set at build time via -ldflags.
	BuildDate = "unknown"
)

// NewRootCommand creates the ntcomp command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "ntcomp",
		Short: "Keep NodeTool's locally installed components up to date",
		Long: TitleStyle.Render("ntcomp") + SubtitleStyle.Render(" - NodeTool component manager") + `

ntcomp compares the components installed in the local store (python_env,
src, web, ollama, ffmpeg) against the latest published release, downloads
and verifies whatever changed, and can start the NodeTool server once the
store is current.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/ntcomp/config.cue)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newUpdateCommand(app),
		newStatusCommand(app),
		newVerifyCommand(app),
		newRunCommand(app),
		newConfigCommand(app),
	)

	return root
}

// Execute runs the CLI and exits the process with the command's exit code.
func Execute() {
	app := NewApp(Dependencies{})
	root := NewRootCommand(app)

	// fang overrides root.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(int(exitCodeOf(err)))
	}
}

func getVersionString() string {
	if Version == "dev" {
		return fmt.Sprintf("%s (built from source)", Version)
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own formatting, which includes the cause chain in verbose mode.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

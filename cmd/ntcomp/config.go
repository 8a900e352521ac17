// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/pkg/types"
)

// newConfigCommand creates the `ntcomp config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ntcomp configuration",
		Long: `Manage ntcomp configuration.

Configuration is stored in:
  - Linux: ~/.config/ntcomp/config.cue
  - macOS: ~/Library/Application Support/ntcomp/config.cue
  - Windows: %APPDATA%\ntcomp\config.cue

Every key can be overridden with an NTCOMP_ environment variable, for
example NTCOMP_DOWNLOAD_CONCURRENCY=3.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			source := cfg.Source
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintln(app.stdout, "// source: "+source)
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			path, err := app.configFilePath()
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					err = fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render(markOK+" Created "+path))
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := app.configFilePath()
			if err != nil {
				return app.fail(cmd, nil, types.ExitFailure, err)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

// configFilePath returns --config when given, otherwise the default location.
func (a *App) configFilePath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}

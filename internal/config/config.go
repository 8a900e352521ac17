// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/nodetool-ai/ntcomp/internal/issue"
	"github.com/nodetool-ai/ntcomp/pkg/cueutil"
	"github.com/nodetool-ai/ntcomp/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "ntcomp"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. NTCOMP_COMPONENTS_DIR.
	EnvPrefix = "NTCOMP"
)

// ErrConfigExists is returned by WriteDefault when the file is present and
// overwriting was not requested.
var ErrConfigExists = errors.New("config file already exists")

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the ntcomp configuration directory: %APPDATA% on Windows,
// ~/Library/Application Support on macOS and $XDG_CONFIG_HOME (default
// ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var dir string
	switch runtime.GOOS {
	case platform.Windows:
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// DefaultComponentsDir returns <user data dir>/nodetool/components, or an
// empty string when the home directory cannot be determined.
func DefaultComponentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data := platform.DataDir(runtime.GOOS, home, os.Getenv("APPDATA"), os.Getenv("XDG_DATA_HOME"))
	return filepath.Join(data, "nodetool", "components")
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := opts.ConfigFilePath
	if path != "" {
		if !fileExists(path) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'ntcomp config init' to create a configuration file").
				Wrap(fmt.Errorf("config file not found: %s", path)).
				BuildError()
		}
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = ConfigDir(); err != nil {
				return nil, err
			}
		}
		path = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
		if !fileExists(path) {
			path = ""
		}
	}

	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the values match the schema; see 'ntcomp config show'").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Source = path

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check NTCOMP_* environment variables as well as the file").
			Wrap(err).
			BuildError()
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("components_dir", d.ComponentsDir)
	v.SetDefault("components", d.Components)
	v.SetDefault("registry.owner", d.Registry.Owner)
	v.SetDefault("registry.repo", d.Registry.Repo)
	v.SetDefault("registry.base_url", d.Registry.BaseURL)
	v.SetDefault("registry.token_env", d.Registry.TokenEnv)
	v.SetDefault("registry.timeout", d.Registry.Timeout)
	v.SetDefault("download.concurrency", d.Download.Concurrency)
	v.SetDefault("download.timeout", d.Download.Timeout)
	v.SetDefault("download.rate_limit", d.Download.RateLimit)
	v.SetDefault("download.user_agent", d.Download.UserAgent)
	v.SetDefault("install.keep_superseded_archives", d.Install.KeepSupersededArchives)
	v.SetDefault("startup.block_on_failure", d.Startup.BlockOnFailure)
	v.SetDefault("server.command", d.Server.Command)
	v.SetDefault("server.env", d.Server.Env)
	v.SetDefault("server.python_env_dir", d.Server.PythonEnvDir)
	v.SetDefault("ui.verbose", d.UI.Verbose)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
// The document decodes to a map rather than Config so unset keys keep their
// defaults and environment overrides still apply.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path), cueutil.WithConcrete(false))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path, creating parent
// directories. It refuses to replace an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateCUE renders cfg as a config.cue document accepted by the schema.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// ntcomp configuration\n")
	sb.WriteString("// Environment variables such as NTCOMP_COMPONENTS_DIR override these values.\n\n")

	fmt.Fprintf(&sb, "components_dir: %q\n", cfg.ComponentsDir)
	if len(cfg.Components) > 0 {
		sb.WriteString("components: [")
		for i, c := range cfg.Components {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%q", c)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nregistry: {\n")
	fmt.Fprintf(&sb, "\towner:     %q\n", cfg.Registry.Owner)
	fmt.Fprintf(&sb, "\trepo:      %q\n", cfg.Registry.Repo)
	fmt.Fprintf(&sb, "\tbase_url:  %q\n", cfg.Registry.BaseURL)
	fmt.Fprintf(&sb, "\ttoken_env: %q\n", cfg.Registry.TokenEnv)
	fmt.Fprintf(&sb, "\ttimeout:   %q\n", cfg.Registry.Timeout.String())
	sb.WriteString("}\n")

	sb.WriteString("\ndownload: {\n")
	fmt.Fprintf(&sb, "\tconcurrency: %d\n", cfg.Download.Concurrency)
	fmt.Fprintf(&sb, "\ttimeout:     %q\n", cfg.Download.Timeout.String())
	fmt.Fprintf(&sb, "\trate_limit:  %d\n", cfg.Download.RateLimit)
	fmt.Fprintf(&sb, "\tuser_agent:  %q\n", cfg.Download.UserAgent)
	sb.WriteString("}\n")

	sb.WriteString("\ninstall: {\n")
	fmt.Fprintf(&sb, "\tkeep_superseded_archives: %v\n", cfg.Install.KeepSupersededArchives)
	sb.WriteString("}\n")

	sb.WriteString("\nstartup: {\n")
	fmt.Fprintf(&sb, "\tblock_on_failure: %v\n", cfg.Startup.BlockOnFailure)
	sb.WriteString("}\n")

	sb.WriteString("\nserver: {\n")
	if cfg.Server.Command != "" {
		fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Server.Command)
	}
	sb.WriteString("\tenv: [")
	for i, kv := range cfg.Server.Env {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", kv)
	}
	sb.WriteString("]\n")
	if cfg.Server.PythonEnvDir != "" {
		fmt.Fprintf(&sb, "\tpython_env_dir: %q\n", cfg.Server.PythonEnvDir)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	sb.WriteString("}\n")

	if cfg.Metrics.Textfile != "" {
		sb.WriteString("\nmetrics: {\n")
		fmt.Fprintf(&sb, "\ttextfile: %q\n", cfg.Metrics.Textfile)
		sb.WriteString("}\n")
	}

	return sb.String()
}

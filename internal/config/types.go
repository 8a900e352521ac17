// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultOwner and DefaultRepo name the repository whose latest release
	// publishes the component archives.
	DefaultOwner = "nodetool-ai"
	DefaultRepo  = "nodetool"
	// DefaultTokenEnv is the environment variable read for a registry token.
	DefaultTokenEnv = "GITHUB_TOKEN"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidConfigError collects every field-level problem found by Validate.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the complete ntcomp configuration.
	Config struct {
		// ComponentsDir is the component store.
		ComponentsDir string `json:"components_dir" mapstructure:"components_dir"`
		// Components restricts the managed set; empty means all components.
		Components []string       `json:"components" mapstructure:"components"`
		Registry   RegistryConfig `json:"registry" mapstructure:"registry"`
		Download   DownloadConfig `json:"download" mapstructure:"download"`
		Install    InstallConfig  `json:"install" mapstructure:"install"`
		Startup    StartupConfig  `json:"startup" mapstructure:"startup"`
		Server     ServerConfig   `json:"server" mapstructure:"server"`
		UI         UIConfig       `json:"ui" mapstructure:"ui"`
		Metrics    MetricsConfig  `json:"metrics" mapstructure:"metrics"`

		// Source is the file the configuration was read from, empty when only
		// defaults and environment overrides apply.
		Source string `json:"-" mapstructure:"-"`
	}

	// RegistryConfig locates the release registry.
	RegistryConfig struct {
		Owner    string        `json:"owner" mapstructure:"owner"`
		Repo     string        `json:"repo" mapstructure:"repo"`
		BaseURL  string        `json:"base_url" mapstructure:"base_url"`
		TokenEnv string        `json:"token_env" mapstructure:"token_env"`
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
	}

	// DownloadConfig tunes archive downloads.
	DownloadConfig struct {
		Concurrency int           `json:"concurrency" mapstructure:"concurrency"`
		Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
		RateLimit   int64         `json:"rate_limit" mapstructure:"rate_limit"` // bytes per second, 0 = unlimited
		UserAgent   string        `json:"user_agent" mapstructure:"user_agent"`
	}

	InstallConfig struct {
		KeepSupersededArchives bool `json:"keep_superseded_archives" mapstructure:"keep_superseded_archives"`
	}

	// StartupConfig controls how `ntcomp run` reacts to update failures.
	StartupConfig struct {
		// BlockOnFailure refuses to start the server when any component
		// failed to update. The default starts with what is installed.
		BlockOnFailure bool `json:"block_on_failure" mapstructure:"block_on_failure"`
	}

	// ServerConfig configures the backend launched by `ntcomp run`.
	ServerConfig struct {
		Command      string   `json:"command" mapstructure:"command"`
		Env          []string `json:"env" mapstructure:"env"`
		PythonEnvDir string   `json:"python_env_dir" mapstructure:"python_env_dir"`
	}

	UIConfig struct {
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
	}

	// MetricsConfig enables the Prometheus textfile written after each run.
	MetricsConfig struct {
		Textfile string `json:"textfile" mapstructure:"textfile"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		ComponentsDir: DefaultComponentsDir(),
		Components:    []string{},
		Registry: RegistryConfig{
			Owner:    DefaultOwner,
			Repo:     DefaultRepo,
			BaseURL:  "https://api.github.com",
			TokenEnv: DefaultTokenEnv,
			Timeout:  30 * time.Second,
		},
		Download: DownloadConfig{
			Concurrency: 1,
			Timeout:     30 * time.Minute,
			UserAgent:   "ntcomp",
		},
		Server: ServerConfig{Env: []string{}},
		UI:     UIConfig{ColorScheme: ColorSchemeAuto},
	}
}

// ComponentNames returns the validated managed set, All() when unset.
func (c *Config) ComponentNames() ([]component.Name, error) {
	return component.ParseNames(c.Components)
}

// Validate checks constraints that hold regardless of where a value came
// from. Environment overrides bypass the CUE schema, so the important ones
// are repeated here.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ComponentsDir) == "" {
		errs = append(errs, errors.New("components_dir: must not be empty"))
	}
	if _, err := c.ComponentNames(); err != nil {
		errs = append(errs, fmt.Errorf("components: %w", err))
	}
	if c.Registry.Owner == "" || c.Registry.Repo == "" {
		errs = append(errs, errors.New("registry: owner and repo are required"))
	}
	if c.Registry.Timeout < 0 {
		errs = append(errs, fmt.Errorf("registry.timeout: must not be negative, got %s", c.Registry.Timeout))
	}
	if c.Download.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("download.concurrency: must be at least 1, got %d", c.Download.Concurrency))
	}
	if c.Download.Timeout < 0 {
		errs = append(errs, fmt.Errorf("download.timeout: must not be negative, got %s", c.Download.Timeout))
	}
	if c.Download.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("download.rate_limit: must not be negative, got %d", c.Download.RateLimit))
	}
	for i, kv := range c.Server.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, fmt.Errorf("server.env[%d]: %q is not KEY=VALUE", i, kv))
		}
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ui.color_scheme: %w", err))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

func (cs ColorScheme) String() string { return string(cs) }

// Validate accepts the defined schemes and the empty value, which means auto.
func (cs ColorScheme) Validate() error {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight, "":
		return nil
	default:
		return &InvalidColorSchemeError{Value: cs}
	}
}

// GlamourStyle maps the scheme to a glamour standard style name.
func (cs ColorScheme) GlamourStyle() string {
	switch cs {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

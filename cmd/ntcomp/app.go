// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nodetool-ai/ntcomp/internal/config"
	"github.com/nodetool-ai/ntcomp/internal/fetch"
	"github.com/nodetool-ai/ntcomp/internal/logging"
	"github.com/nodetool-ai/ntcomp/internal/registry"
	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reads configuration and output streams from it.
	App struct {
		Config     ConfigProvider
		stdout     io.Writer
		stderr     io.Writer
		getenv     func(string) string
		configPath string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
		Getenv func(string) string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// engine is everything one command needs to talk to the component store.
	engine struct {
		cfg     *config.Config
		known   []component.Name
		updater *updater.Updater
		metrics *prometheus.Registry
		log     *slog.Logger
	}

	// timeoutSource bounds each manifest request without limiting the
	// archive downloads that share the HTTP client.
	timeoutSource struct {
		src     updater.ManifestSource
		timeout time.Duration
	}
)

// NewApp creates an App with defaults for any missing dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		getenv: deps.Getenv,
	}
}

// loadConfig loads configuration honoring --config. The verbose flag wins
// over ui.verbose only when it is set.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath})
	if err != nil {
		return nil, err
	}
	if !a.verbose {
		a.verbose = cfg.UI.Verbose
	}
	return cfg, nil
}

// logger returns the CLI diagnostic logger. Progress already reaches the
// console through the sink, so only warnings show unless verbose is set.
func (a *App) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = logging.LevelFor(true)
	}
	return logging.New(logging.Options{
		Writer: a.stderr,
		Prefix: "ntcomp",
		Level:  level,
	})
}

// newEngine builds the registry client, fetcher and updater described by cfg.
func (a *App) newEngine(cfg *config.Config, sink updater.Sink) (*engine, error) {
	known, err := cfg.ComponentNames()
	if err != nil {
		return nil, err
	}

	clientOpts := []registry.ClientOption{
		registry.WithUserAgent(cfg.Download.UserAgent + "/" + Version),
	}
	if cfg.Registry.BaseURL != "" {
		clientOpts = append(clientOpts, registry.WithBaseURL(cfg.Registry.BaseURL))
	}
	if cfg.Registry.TokenEnv != "" {
		if token := a.getenv(cfg.Registry.TokenEnv); token != "" {
			clientOpts = append(clientOpts, registry.WithToken(token))
		}
	}
	client := registry.NewGitHubClient(cfg.Registry.Owner, cfg.Registry.Repo, clientOpts...)

	fetcher := fetch.New(client,
		fetch.WithRateLimit(int(cfg.Download.RateLimit)),
		fetch.WithTimeout(cfg.Download.Timeout),
	)

	log := a.logger()
	reg := prometheus.NewRegistry()
	u, err := updater.New(updater.Context{
		ComponentsDir:  cfg.ComponentsDir,
		Known:          known,
		Registry:       timeoutSource{src: client, timeout: cfg.Registry.Timeout},
		Fetcher:        fetcher,
		Sink:           sink,
		Logger:         log,
		Concurrency:    cfg.Download.Concurrency,
		KeepSuperseded: cfg.Install.KeepSupersededArchives,
		Metrics:        updater.NewMetrics(reg),
	})
	if err != nil {
		return nil, err
	}

	return &engine{cfg: cfg, known: known, updater: u, metrics: reg, log: log}, nil
}

// writeMetrics exports the run metrics when metrics.textfile is configured.
// Failures are logged; they never change the command outcome.
func (e *engine) writeMetrics() {
	path := e.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := updater.WriteTextfile(path, e.metrics); err != nil {
		e.log.Warn("failed to write metrics textfile", "path", path, "error", err)
		return
	}
	e.log.Debug("metrics written", "path", path)
}

// FetchManifest implements updater.ManifestSource.
func (s timeoutSource) FetchManifest(ctx context.Context, known []component.Name) (*registry.Listing, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.src.FetchManifest(ctx, known)
}

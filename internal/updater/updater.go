// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nodetool-ai/ntcomp/internal/fetch"
	"github.com/nodetool-ai/ntcomp/internal/install"
	"github.com/nodetool-ai/ntcomp/internal/integrity"
	"github.com/nodetool-ai/ntcomp/internal/inventory"
	"github.com/nodetool-ai/ntcomp/internal/logging"
	"github.com/nodetool-ai/ntcomp/internal/planner"
	"github.com/nodetool-ai/ntcomp/internal/registry"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	tracerName = "github.com/nodetool-ai/ntcomp/internal/updater"

	defaultStaleTempAge = 24 * time.Hour
)

// ErrInvalidContext is returned by New when a required collaborator is missing.
var ErrInvalidContext = errors.New("invalid update context")

type (
	// ManifestSource fetches the remote manifest of the known components.
	ManifestSource interface {
		FetchManifest(ctx context.Context, known []component.Name) (*registry.Listing, error)
	}

	// Downloader streams a URL into a temp file, removing it on failure.
	Downloader interface {
		Download(ctx context.Context, url, tempPath string, progress fetch.ProgressFunc) error
	}

	// Context carries everything a run needs. Zero-valued optional fields get
	// defaults in New.
	Context struct {
		ComponentsDir  string           // Component store; archives and extracted trees live here
		Known          []component.Name // Components to manage; defaults to component.All()
		Registry       ManifestSource
		Fetcher        Downloader
		Sink           Sink          // Defaults to NopSink
		Logger         *slog.Logger  // Records also reach Sink.Log; defaults to a logger writing only there
		Concurrency    int           // Worker pool size; defaults to 1 (sequential)
		KeepSuperseded bool          // Keep older archives of an updated component
		StaleTempAge   time.Duration // Temp files untouched for this long are swept; defaults to 24h
		Metrics        *Metrics      // Optional
		Cache          *inventory.CacheFile
		Now            func() time.Time
	}

	// Updater runs update checks for one component store.
	Updater struct {
		c      Context
		locks  *nameLocks
		tracer trace.Tracer
	}

	// Preview is the result of the check phase: what is remote, what is
	// local and what would be installed.
	Preview struct {
		Release  *registry.Release
		Remote   *component.Manifest
		Local    component.LocalManifest
		Plan     planner.Plan
		Warnings []error
	}
)

// New validates c, fills in defaults and returns an Updater.
func New(c Context) (*Updater, error) {
	if c.ComponentsDir == "" {
		return nil, fmt.Errorf("%w: components directory is required", ErrInvalidContext)
	}
	if c.Registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidContext)
	}
	if c.Fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidContext)
	}
	if len(c.Known) == 0 {
		c.Known = component.All()
	}
	for _, n := range c.Known {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidContext, err)
		}
	}
	if c.Sink == nil {
		c.Sink = NopSink{}
	}
	// The sink's log stream sees every record, whatever else the caller's
	// logger writes to.
	if c.Logger == nil {
		c.Logger = logging.New(logging.Options{Quiet: true, Lines: c.Sink.Log})
	} else if _, nop := c.Sink.(NopSink); !nop {
		c.Logger = logging.Tee(c.Logger, c.Sink.Log, slog.LevelInfo)
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Cache == nil {
		c.Cache = inventory.OpenCache(c.ComponentsDir)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.StaleTempAge <= 0 {
		c.StaleTempAge = defaultStaleTempAge
	}

	return &Updater{c: c, locks: &nameLocks{}, tracer: otel.Tracer(tracerName)}, nil
}

// Preview fetches the remote manifest, scans the store and computes the plan
// without changing anything on disk.
func (u *Updater) Preview(ctx context.Context) (*Preview, error) {
	listing, err := u.c.Registry.FetchManifest(ctx, u.c.Known)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, registry.ErrMalformedResponse) {
			kind = KindParse
		}
		return nil, newError(kind, "", "fetch manifest", err)
	}

	p := &Preview{Release: listing.Release, Remote: listing.Manifest}
	for _, w := range listing.Warnings {
		kind := KindParse
		if errors.Is(w.Err, component.ErrUnknownComponent) {
			kind = KindUnknownComponent
		}
		p.Warnings = append(p.Warnings, newError(kind, "", fmt.Sprintf("asset %q", w.Asset), w.Err))
	}

	local, err := inventory.Scan(u.c.ComponentsDir, u.c.Known)
	if err != nil {
		return nil, newError(KindFileSystem, "", "scan store", err)
	}
	p.Local = local
	p.Plan = planner.Diff(listing.Manifest, local)

	return p, nil
}

// Run performs one full update pass and reports the outcome to the sink.
// Component failures are isolated: every planned component is attempted.
func (u *Updater) Run(ctx context.Context) Summary {
	runID := uuid.NewString()
	start := u.c.Now()

	ctx, span := u.tracer.Start(ctx, "ntcomp.update", trace.WithAttributes(
		attribute.String("ntcomp.run_id", runID),
		attribute.String("ntcomp.components_dir", u.c.ComponentsDir),
	))
	defer span.End()

	log := u.c.Logger.With("run", runID)
	sum := Summary{RunID: runID, Started: start}

	u.c.Sink.BootMessage("Checking for updates...")
	log.Info("Checking for updates", "dir", u.c.ComponentsDir)

	preview, err := u.Preview(ctx)
	if err != nil {
		sum.Err = err
		log.Error("Update check failed", "err", err)
		return u.finish(ctx, span, log, sum)
	}

	if preview.Release != nil {
		sum.Release = preview.Release.TagName
	}
	sum.Checked = preview.Remote.Len()
	sum.Warnings = preview.Warnings
	for _, w := range preview.Warnings {
		log.Warn("Skipping release asset", "err", w)
	}

	if len(preview.Plan) > 0 {
		log.Info("Components need updating", "components", fmt.Sprint(preview.Plan.Names()))
		sum.Results = u.apply(ctx, preview.Plan, log)
	}

	return u.finish(ctx, span, log, sum)
}

func (u *Updater) finish(ctx context.Context, span trace.Span, log *slog.Logger, sum Summary) Summary {
	sum.Duration = u.c.Now().Sub(sum.Started)

	span.SetAttributes(
		attribute.Int("ntcomp.planned", sum.Planned()),
		attribute.Int("ntcomp.updated", sum.Updated()),
		attribute.Int("ntcomp.failed", sum.Failed()),
	)
	level := slog.LevelInfo
	if !sum.OK() {
		level = slog.LevelWarn
		if sum.Err != nil {
			span.RecordError(sum.Err)
		}
		span.SetStatus(codes.Error, sum.String())
	}

	u.c.Metrics.observeRun(sum)
	log.Log(ctx, level, sum.String())
	u.c.Sink.Finished(sum)
	return sum
}

// apply runs the plan through the worker pool. Results keep plan order.
func (u *Updater) apply(ctx context.Context, plan planner.Plan, log *slog.Logger) []Result {
	results := make([]Result, len(plan))

	var g errgroup.Group
	g.SetLimit(u.c.Concurrency)
	for i, item := range plan {
		g.Go(func() error {
			results[i] = u.process(ctx, item, log)
			return nil
		})
	}
	_ = g.Wait() // workers report through results, never through the group

	return results
}

// process drives one component from Pending to a terminal state.
func (u *Updater) process(ctx context.Context, item planner.Item, log *slog.Logger) (res Result) {
	c := item.Component
	dir := u.c.ComponentsDir

	unlock := u.locks.lock(c.Name)
	defer unlock()

	ctx, span := u.tracer.Start(ctx, "ntcomp.component", trace.WithAttributes(
		attribute.String("ntcomp.component", string(c.Name)),
		attribute.String("ntcomp.hash", string(c.Hash)),
		attribute.String("ntcomp.reason", string(item.Reason)),
	))
	defer span.End()

	log = log.With("component", string(c.Name))
	start := u.c.Now()
	total := c.Size
	if total <= 0 {
		total = -1
	}

	res = Result{Component: c, State: StatePending}
	m := &machine{onChange: func(_, to State) {
		res.State = to
		span.AddEvent(to.String())
	}}
	enter := func(next State) {
		if err := m.advance(next); err != nil {
			log.Error("Component state machine", "err", err)
		}
	}
	progress := func(phase Phase, done int64) {
		u.c.Sink.Progress(Progress{Name: c.Name, Phase: phase, State: res.State, Downloaded: done, Total: total})
	}
	fail := func(to State, kind Kind, op string, err error) Result {
		res.Err = newError(kind, c.Name, op, err)
		enter(to)
		log.Error("Component update failed", "state", to.String(), "err", res.Err)
		return res
	}

	defer func() {
		res.Duration = u.c.Now().Sub(start)
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		u.c.Metrics.observeResult(res)
		progress(PhaseDone, res.Bytes)
	}()

	u.c.Sink.BootMessage(fmt.Sprintf("Downloading %s...", c.Name))
	log.Info("Downloading component", "hash", c.Hash.Short(), "reason", string(item.Reason))

	if removed, err := fetch.RemoveStale(dir, c.Name, u.c.StaleTempAge, u.c.Now()); err != nil {
		log.Warn("Could not remove stale temp files", "err", err)
	} else if len(removed) > 0 {
		log.Info("Removed stale temp files", "count", len(removed))
	}

	enter(StateDownloading)
	tempPath, err := fetch.TempPath(dir, c.Name)
	if err != nil {
		return fail(StateDownloadFailed, KindFileSystem, "create temp file", err)
	}

	phaseStart := u.c.Now()
	err = u.c.Fetcher.Download(ctx, c.SourceURL, tempPath, func(done, size int64) {
		res.Bytes = done
		if size > 0 {
			total = size
		}
		progress(PhaseDownloading, done)
	})
	u.c.Metrics.observePhase(PhaseDownloading, u.c.Now().Sub(phaseStart))
	if err != nil {
		_ = os.Remove(tempPath)
		return fail(StateDownloadFailed, KindNetwork, "download", err)
	}

	enter(StateVerifying)
	progress(PhaseVerifying, res.Bytes)
	phaseStart = u.c.Now()
	ok, err := integrity.Verify(ctx, tempPath, c.Hash)
	u.c.Metrics.observePhase(PhaseVerifying, u.c.Now().Sub(phaseStart))
	if !ok {
		_ = os.Remove(tempPath)
		if err == nil || errors.Is(err, integrity.ErrChecksumMismatch) {
			return fail(StateVerifyFailed, KindIntegrity, "verify", err)
		}
		return fail(StateVerifyFailed, KindFileSystem, "verify", err)
	}
	enter(StateVerified)

	enter(StateInstalling)
	progress(PhaseInstalling, res.Bytes)
	canonical := filepath.Join(dir, component.ArchiveName(c.Name, c.Hash))
	phaseStart = u.c.Now()
	err = install.Install(tempPath, canonical, dir)
	u.c.Metrics.observePhase(PhaseInstalling, u.c.Now().Sub(phaseStart))
	if err != nil {
		_ = os.Remove(tempPath) // no-op once the rename succeeded
		return fail(StateInstallFailed, KindFileSystem, "install", err)
	}
	res.Component.LocalPath = canonical
	enter(StateInstalled)

	u.afterInstall(log, &res)
	log.Info("Installed component", "hash", c.Hash.Short(), "bytes", res.Bytes)
	return res
}

// afterInstall records the install in the cache and prunes superseded
// archives. Failures here are logged and do not fail the component.
func (u *Updater) afterInstall(log *slog.Logger, res *Result) {
	c := res.Component

	err := u.c.Cache.Record(inventory.Entry{
		Name:        c.Name,
		Hash:        c.Hash,
		Archive:     filepath.Base(c.LocalPath),
		Size:        res.Bytes,
		InstalledAt: u.c.Now().UTC(),
	})
	if err != nil {
		log.Warn("Could not update inventory cache", "err", err)
	}

	if u.c.KeepSuperseded {
		return
	}
	removed, err := install.RemoveSuperseded(u.c.ComponentsDir, c.Name, c.Hash)
	res.Removed = removed
	for _, p := range removed {
		log.Debug("Removed superseded archive", "path", p)
	}
	if err != nil {
		log.Warn("Could not remove superseded archives", "err", err)
	}
}

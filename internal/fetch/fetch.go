// SPDX-License-Identifier: MPL-2.0

// Package fetch streams component archives from the registry into temp files
// inside the component store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	// chunkSize is the read/write granularity of the copy loop.
	chunkSize = 32 << 10

	// progressStep is the minimum number of bytes between progress callbacks.
	progressStep = 1 << 20
)

// ErrDownload wraps every failure of Download: transport, status and local
// write errors alike. The partial temp file is already gone when it is returned.
var ErrDownload = errors.New("download failed")

type (
	// Source opens a streaming reader for a download URL and reports the
	// advertised length (-1 when unknown).
	Source interface {
		DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
	}

	// ProgressFunc receives the running byte count and the advertised total
	// (-1 when unknown). It is called at least once on success.
	ProgressFunc func(downloaded, total int64)

	// Fetcher downloads archives from a Source.
	Fetcher struct {
		src     Source
		limiter *rate.Limiter
		timeout time.Duration
	}

	// Option configures a Fetcher.
	Option func(*Fetcher)
)

// WithRateLimit caps throughput at bytesPerSecond. Zero or negative disables the cap.
func WithRateLimit(bytesPerSecond int) Option {
	return func(f *Fetcher) {
		if bytesPerSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), max(bytesPerSecond, chunkSize))
	}
}

// WithTimeout bounds each Download call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// New returns a Fetcher reading from src.
func New(src Source, opts ...Option) *Fetcher {
	f := &Fetcher{src: src}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// TempPath creates an empty, uniquely named temp file for name in dir and
// returns its path. Concurrent runs never share a temp file.
func TempPath(dir string, name component.Name) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating component store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, string(name)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("closing temp file for %s: %w", name, err)
	}
	return tmp.Name(), nil
}

// RemoveStale deletes temp files for name in dir whose last write is older
// than olderThan, as left behind by runs that were killed mid-download. Live
// downloads keep touching their file, so they are never old enough to match.
// It returns the removed paths.
func RemoveStale(dir string, name component.Name, olderThan time.Duration, now time.Time) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, string(name)+".*.tmp"))
	if err != nil {
		return nil, fmt.Errorf("listing temp files for %s: %w", name, err)
	}

	var removed []string
	var errs []error
	for _, p := range matches {
		fi, err := os.Lstat(p)
		if err != nil || !fi.Mode().IsRegular() || now.Sub(fi.ModTime()) < olderThan {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, p)
	}
	return removed, errors.Join(errs...)
}

// Download streams url into tempPath, truncating any previous content.
// There is no resume: every call starts from byte zero. On any failure the
// temp file is removed and the returned error wraps ErrDownload.
func (f *Fetcher) Download(ctx context.Context, url, tempPath string, progress ProgressFunc) (err error) {
	defer func() {
		if err != nil {
			// Best-effort removal of the partially written temp file.
			_ = os.Remove(tempPath)
			err = fmt.Errorf("%w: %w", ErrDownload, err)
		}
	}()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, total, err := f.src.DownloadAsset(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }() // read-only HTTP response body

	out, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening temp file: %w", err)
	}

	n, copyErr := f.copy(ctx, out, body, total, progress)
	closeErr := out.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if total >= 0 && n != total {
		return fmt.Errorf("short body: got %d of %d bytes: %w", n, total, io.ErrUnexpectedEOF)
	}
	return nil
}

func (f *Fetcher) copy(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	var written, reported int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, nr); err != nil {
					return written, err
				}
			}
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, fmt.Errorf("writing temp file: %w", writeErr)
			}
			if nw != nr {
				return written, fmt.Errorf("writing temp file: %w", io.ErrShortWrite)
			}
			if progress != nil && written-reported >= progressStep {
				progress(written, total)
				reported = written
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("reading response body: %w", readErr)
		}
	}

	if progress != nil && (reported != written || written == 0) {
		progress(written, total)
	}
	return written, nil
}

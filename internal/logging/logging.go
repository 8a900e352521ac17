// SPDX-License-Identifier: MPL-2.0

// Package logging builds the structured logger shared by the update engine,
// the launcher and the CLI. Records go to a styled terminal handler and,
// optionally, to a line handler that forwards plain-text log lines to a UI.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	// Writer receives terminal output. Defaults to os.Stderr.
	Writer io.Writer
	// Prefix is printed before every terminal line, e.g. "ntcomp".
	Prefix string
	// Level is the minimum level for every handler.
	Level slog.Level
	// Lines, when set, receives each record formatted as
	// "[timestamp] [LEVEL] message key=value ...".
	Lines func(string)
	// Quiet drops the terminal handler, leaving only Lines.
	Quiet bool
}

// New returns a logger that fans records out to the configured handlers.
func New(opts Options) *slog.Logger {
	var handlers []slog.Handler

	if !opts.Quiet {
		w := opts.Writer
		if w == nil {
			w = os.Stderr
		}
		handlers = append(handlers, log.NewWithOptions(w, log.Options{
			Prefix:          opts.Prefix,
			Level:           log.Level(opts.Level),
			ReportTimestamp: true,
		}))
	}

	if opts.Lines != nil {
		handlers = append(handlers, NewLineHandler(opts.Lines, opts.Level))
	}

	switch len(handlers) {
	case 0:
		return Discard()
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(slogmulti.Fanout(handlers...))
	}
}

// Tee returns a logger that keeps sending records to base and also renders
// them as lines for lines. A nil lines returns base unchanged.
func Tee(base *slog.Logger, lines func(string), level slog.Leveler) *slog.Logger {
	if lines == nil {
		return base
	}
	return slog.New(slogmulti.Fanout(base.Handler(), NewLineHandler(lines, level)))
}

// LevelFor maps the verbose flag to a log level.
func LevelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/nodetool-ai/ntcomp/internal/logging"
	"github.com/nodetool-ai/ntcomp/pkg/platform"
)

const (
	// ReadyMarker is the output line fragment that marks the server as running.
	ReadyMarker = "Application startup complete."

	defaultStopTimeout = 10 * time.Second
	maxLineBytes       = 1 << 20
)

// ErrExited is returned by WaitForReady when the process ends before it
// reports that startup is complete.
var ErrExited = errors.New("server exited before startup completed")

type (
	// Config configures a Server.
	Config struct {
		Layout      Layout
		Command     string       // Shell-quoted command line; defaults to DefaultCommand
		BaseEnv     []string     // Defaults to os.Environ()
		Env         []string     // Extra KEY=VALUE entries applied last
		Dir         string       // Working directory; defaults to Layout.ComponentsDir
		Lines       func(string) // Receives every output line; may be called concurrently
		Logger      *slog.Logger
		ReadyMarker string
		StopTimeout time.Duration
	}

	// Server runs the backend process. A Server is single-use.
	Server struct {
		cfg  Config
		lc   *lifecycle
		mu   sync.Mutex // guards cmd and argv during Start
		cmd  *exec.Cmd
		argv []string
		done chan struct{}
	}
)

// NewServer returns a Server in the created state.
func NewServer(cfg Config) *Server {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.BaseEnv == nil {
		cfg.BaseEnv = os.Environ()
	}
	if cfg.Dir == "" {
		cfg.Dir = cfg.Layout.ComponentsDir
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.ReadyMarker == "" {
		cfg.ReadyMarker = ReadyMarker
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Server{cfg: cfg, lc: newLifecycle(), done: make(chan struct{})}
}

// State returns the current lifecycle state.
func (s *Server) State() State { return s.lc.current() }

// Args returns the expanded argv once Start has parsed the command.
func (s *Server) Args() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.argv
}

// Start launches the process and returns once it is running; it does not
// wait for the ready marker. Cancelling ctx later stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.lc.toFailed(fmt.Errorf("context cancelled before start: %w", err))
		close(s.done)
		return s.lc.err()
	}
	if err := s.lc.toStarting(); err != nil {
		return err
	}

	argv, err := ParseCommand(s.cfg.Command, s.cfg.Layout.Vars(), lookupIn(s.cfg.BaseEnv))
	if err != nil {
		return s.startFailed(err)
	}
	s.argv = argv

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // command comes from user configuration
	cmd.Env = s.cfg.Layout.Env(s.cfg.BaseEnv, s.cfg.Env)
	cmd.Dir = s.cfg.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.startFailed(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.startFailed(err)
	}

	s.cfg.Logger.Info("Starting server", "command", strings.Join(argv, " "), "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		return s.startFailed(err)
	}
	s.cmd = cmd

	var readers sync.WaitGroup
	readers.Add(2)
	go s.scan(&readers, stdout)
	go s.scan(&readers, stderr)

	go func() {
		// Pipes must be drained before Wait closes them.
		readers.Wait()
		waitErr := cmd.Wait()
		s.exited(waitErr)
		close(s.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.Background())
		case <-s.done:
		}
	}()

	return nil
}

// WaitForReady blocks until the ready marker is seen, the process exits, or
// ctx is done.
func (s *Server) WaitForReady(ctx context.Context) error {
	select {
	case <-s.lc.readyCh:
		return nil
	case <-s.done:
		// Output is drained before done closes, so a marker seen just
		// before exit still counts.
		select {
		case <-s.lc.readyCh:
			return nil
		default:
		}
		if err := s.lc.err(); err != nil {
			return fmt.Errorf("%w: %w", ErrExited, err)
		}
		return ErrExited
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}

// Wait blocks until the process has exited and returns the failure, if any.
func (s *Server) Wait() error {
	<-s.done
	return s.lc.err()
}

// Done is closed once the process has exited.
func (s *Server) Done() <-chan struct{} { return s.done }

// Stop asks the process to exit, escalating to a kill after StopTimeout or
// when ctx is done. Stopping a server that is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || !s.lc.toStopping() {
		return nil
	}

	s.cfg.Logger.Info("Stopping server")
	if s.cfg.Layout.GOOS == platform.Windows || cmd.Process.Signal(os.Interrupt) != nil {
		_ = cmd.Process.Kill()
	}

	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	s.cfg.Logger.Warn("Server did not stop in time, killing it")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing server: %w", err)
	}
	<-s.done
	return nil
}

func (s *Server) startFailed(err error) error {
	err = fmt.Errorf("starting server: %w", err)
	s.lc.toFailed(err)
	close(s.done)
	return err
}

func (s *Server) scan(wg *sync.WaitGroup, r io.Reader) {
	defer wg.Done()

	// Lines longer than maxLineBytes are truncated, not fatal; the reader
	// keeps going so later output, including the ready marker, is seen.
	br := bufio.NewReaderSize(r, 64<<10)
	var buf []byte
	for {
		chunk, more, err := br.ReadLine()
		if room := maxLineBytes - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if err != nil {
			if len(buf) > 0 {
				s.line(string(buf))
			}
			return
		}
		if more {
			continue
		}
		s.line(string(buf))
		buf = buf[:0]
	}
}

func (s *Server) line(line string) {
	s.cfg.Logger.Debug("Server output", "line", line)
	if s.cfg.Lines != nil {
		s.cfg.Lines(line)
	}
	if strings.Contains(line, s.cfg.ReadyMarker) && s.lc.toRunning() {
		s.cfg.Logger.Info("Server startup complete")
	}
}

func (s *Server) exited(err error) {
	if s.lc.current() == StateStopping {
		s.cfg.Logger.Info("Server stopped")
		s.lc.toStopped()
		return
	}
	if err != nil {
		s.cfg.Logger.Error("Server exited", "err", err)
		s.lc.toFailed(fmt.Errorf("server exited: %w", err))
		return
	}
	s.cfg.Logger.Info("Server exited")
	s.lc.toStopped()
}

func lookupIn(env []string) func(string) string {
	return func(name string) string {
		for i := len(env) - 1; i >= 0; i-- {
			if k, v, ok := strings.Cut(env[i], "="); ok && k == name {
				return v
			}
		}
		return ""
	}
}

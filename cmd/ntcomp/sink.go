// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/docker/go-units"

	"github.com/nodetool-ai/ntcomp/internal/updater"
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// downloadStep is the download progress granularity printed per component.
const downloadStep = 25

// consoleSink prints boot messages and component progress. Download
// progress is throttled to every downloadStep percent so logs stay readable
// when output is not a terminal.
type consoleSink struct {
	mu   sync.Mutex
	w    io.Writer
	last map[component.Name]int
}

func newConsoleSink(w io.Writer) updater.Sink {
	s := &consoleSink{w: w, last: make(map[component.Name]int)}
	return updater.Funcs{
		OnBootMessage: s.bootMessage,
		OnProgress:    s.progress,
	}
}

func (s *consoleSink) bootMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, SubtitleStyle.Render(msg))
}

func (s *consoleSink) progress(p updater.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := CmdStyle.Render(fmt.Sprintf("%-11s", p.Name))
	switch p.Phase {
	case updater.PhaseDownloading:
		pct := p.Percent()
		if pct < 0 {
			return
		}
		step := int(pct) / downloadStep * downloadStep
		if prev, seen := s.last[p.Name]; seen && step <= prev {
			return
		}
		s.last[p.Name] = step
		fmt.Fprintf(s.w, "  %s downloading %3d%% (%s of %s)\n", name, step,
			units.HumanSize(float64(p.Downloaded)), units.HumanSize(float64(p.Total)))
	case updater.PhaseVerifying, updater.PhaseInstalling:
		fmt.Fprintf(s.w, "  %s %s\n", name, p.Phase)
	case updater.PhaseDone:
		delete(s.last, p.Name)
		if p.State.IsFailure() {
			fmt.Fprintf(s.w, "  %s %s\n", name, ErrorStyle.Render(markFail+" "+p.State.String()))
			return
		}
		fmt.Fprintf(s.w, "  %s %s\n", name, SuccessStyle.Render(markOK+" "+p.State.String()))
	}
}

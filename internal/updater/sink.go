// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

const (
	// PhaseDownloading reports bytes received for a component.
	PhaseDownloading Phase = "downloading"
	// PhaseVerifying is reported once when hashing starts.
	PhaseVerifying Phase = "verifying"
	// PhaseInstalling is reported once when rename and extraction start.
	PhaseInstalling Phase = "installing"
	// PhaseDone is reported once when a component reaches a terminal state.
	PhaseDone Phase = "done"
)

const (
	// EventBootMessage carries a BootMessage call.
	EventBootMessage EventKind = iota + 1
	// EventLog carries a Log call.
	EventLog
	// EventProgress carries a Progress call.
	EventProgress
	// EventFinished carries the run Summary.
	EventFinished
)

type (
	// Phase names the step a Progress event belongs to.
	Phase string

	// Progress is a per-component progress report. Total is -1 when the
	// size is unknown.
	Progress struct {
		Name       component.Name
		Phase      Phase
		State      State
		Downloaded int64
		Total      int64
	}

	// Sink receives user-facing events of a run. Implementations must be
	// safe for concurrent use when the worker pool runs more than one
	// component at a time.
	Sink interface {
		BootMessage(msg string)
		Log(line string)
		Progress(p Progress)
		Finished(s Summary)
	}

	// Funcs adapts plain callbacks to a Sink. Nil fields are ignored.
	Funcs struct {
		OnBootMessage func(string)
		OnLog         func(string)
		OnProgress    func(Progress)
		OnFinished    func(Summary)
	}

	// NopSink discards every event.
	NopSink struct{}

	// MultiSink forwards every event to each sink in order.
	MultiSink []Sink

	// EventKind discriminates Event.
	EventKind int

	// Event is one Sink call delivered through a ChannelSink.
	Event struct {
		Kind     EventKind
		Message  string   // EventBootMessage, EventLog
		Progress Progress // EventProgress
		Summary  *Summary // EventFinished
	}

	// ChannelSink delivers events as values on a channel. Progress events
	// are dropped when the buffer is full; all other events block until
	// received. Close it only after the run has returned.
	ChannelSink struct {
		ch chan Event
	}
)

// Percent returns completion in [0, 100], or -1 when Total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	pct := float64(p.Downloaded) / float64(p.Total) * 100
	return min(pct, 100)
}

// BootMessage implements Sink.
func (f Funcs) BootMessage(msg string) {
	if f.OnBootMessage != nil {
		f.OnBootMessage(msg)
	}
}

// Log implements Sink.
func (f Funcs) Log(line string) {
	if f.OnLog != nil {
		f.OnLog(line)
	}
}

// Progress implements Sink.
func (f Funcs) Progress(p Progress) {
	if f.OnProgress != nil {
		f.OnProgress(p)
	}
}

// Finished implements Sink.
func (f Funcs) Finished(s Summary) {
	if f.OnFinished != nil {
		f.OnFinished(s)
	}
}

func (NopSink) BootMessage(string) {}
func (NopSink) Log(string)         {}
func (NopSink) Progress(Progress)  {}
func (NopSink) Finished(Summary)   {}

// BootMessage implements Sink.
func (m MultiSink) BootMessage(msg string) {
	for _, s := range m {
		s.BootMessage(msg)
	}
}

// Log implements Sink.
func (m MultiSink) Log(line string) {
	for _, s := range m {
		s.Log(line)
	}
}

// Progress implements Sink.
func (m MultiSink) Progress(p Progress) {
	for _, s := range m {
		s.Progress(p)
	}
}

// Finished implements Sink.
func (m MultiSink) Finished(sum Summary) {
	for _, s := range m {
		s.Finished(sum)
	}
}

// NewChannelSink returns a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, max(buffer, 0))}
}

// Events returns the receive side of the event channel.
func (c *ChannelSink) Events() <-chan Event { return c.ch }

// Close closes the event channel.
func (c *ChannelSink) Close() { close(c.ch) }

// BootMessage implements Sink.
func (c *ChannelSink) BootMessage(msg string) {
	c.ch <- Event{Kind: EventBootMessage, Message: msg}
}

// Log implements Sink.
func (c *ChannelSink) Log(line string) {
	c.ch <- Event{Kind: EventLog, Message: line}
}

// Progress implements Sink.
func (c *ChannelSink) Progress(p Progress) {
	select {
	case c.ch <- Event{Kind: EventProgress, Progress: p}:
	default:
	}
}

// Finished implements Sink.
func (c *ChannelSink) Finished(s Summary) {
	c.ch <- Event{Kind: EventFinished, Summary: &s}
}

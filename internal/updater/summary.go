// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"fmt"
	"time"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

type (
	// Result is the outcome of one planned component.
	Result struct {
		Component component.Component
		State     State // Terminal state reached in this run
		Err       error // *Error when State is a failure
		Bytes     int64
		Duration  time.Duration
		Removed   []string // Superseded archives deleted after install
	}

	// Summary is the outcome of a run.
	Summary struct {
		RunID    string
		Release  string // Tag of the release the manifest came from
		Checked  int    // Components in the remote manifest
		Results  []Result
		Warnings []error // Skipped or duplicate registry assets, cache problems
		Err      error   // Run-level failure (registry, local scan); no Results when set
		Started  time.Time
		Duration time.Duration
	}
)

// Planned returns the number of components that needed an update.
func (s Summary) Planned() int { return len(s.Results) }

// Updated returns the number of components installed in this run.
func (s Summary) Updated() int {
	n := 0
	for _, r := range s.Results {
		if r.State == StateInstalled {
			n++
		}
	}
	return n
}

// Failed returns the number of components that ended in a failed state.
func (s Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if r.State.IsFailure() {
			n++
		}
	}
	return n
}

// Failures returns the failed results in plan order.
func (s Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.State.IsFailure() {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether the run completed without any failure.
func (s Summary) OK() bool {
	return s.Err == nil && s.Failed() == 0
}

// String returns the one-line description shown to the user, e.g.
// "2 of 5 components updated, 3 failed".
func (s Summary) String() string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("update check failed: %v", s.Err)
	case s.Planned() == 0:
		return "All components are up to date"
	default:
		return fmt.Sprintf("%d of %d components updated, %d failed", s.Updated(), s.Planned(), s.Failed())
	}
}

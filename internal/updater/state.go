// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"errors"
	"fmt"
)

const (
	// StatePending is the initial state of every planned component.
	StatePending State = iota
	// StateDownloading means the archive is streaming into its temp file.
	StateDownloading
	// StateDownloadFailed is terminal: the download did not complete.
	StateDownloadFailed
	// StateVerifying means the temp file is being hashed.
	StateVerifying
	// StateVerifyFailed is terminal: the hash did not match or could not be computed.
	StateVerifyFailed
	// StateVerified means the temp file matches the expected hash.
	StateVerified
	// StateInstalling means the archive is being renamed and extracted.
	StateInstalling
	// StateInstalled is terminal: the component is installed.
	StateInstalled
	// StateInstallFailed is terminal: rename or extraction failed.
	StateInstallFailed
)

// ErrInvalidTransition is returned for a state change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

type (
	// State is the lifecycle position of one component within a run.
	State int32

	// TransitionError reports a disallowed state change.
	// It wraps ErrInvalidTransition for errors.Is() compatibility.
	TransitionError struct {
		From State
		To   State
	}
)

var transitions = map[State][]State{
	StatePending:     {StateDownloading},
	StateDownloading: {StateDownloadFailed, StateVerifying},
	StateVerifying:   {StateVerifyFailed, StateVerified},
	StateVerified:    {StateInstalling},
	StateInstalling:  {StateInstalled, StateInstallFailed},
}

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDownloading:
		return "downloading"
	case StateDownloadFailed:
		return "download failed"
	case StateVerifying:
		return "verifying"
	case StateVerifyFailed:
		return "verify failed"
	case StateVerified:
		return "verified"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateInstallFailed:
		return "install failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible in this run.
func (s State) IsTerminal() bool {
	switch s {
	case StateDownloadFailed, StateVerifyFailed, StateInstalled, StateInstallFailed:
		return true
	default:
		return false
	}
}

// IsFailure reports whether s is one of the failed terminal states.
func (s State) IsFailure() bool {
	return s == StateDownloadFailed || s == StateVerifyFailed || s == StateInstallFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// machine tracks one component's state and reports every change.
type machine struct {
	state    State
	onChange func(from, to State)
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return &TransitionError{From: m.state, To: next}
	}
	from := m.state
	m.state = next
	if m.onChange != nil {
		m.onChange(from, next)
	}
	return nil
}

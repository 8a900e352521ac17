// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// StateCreated indicates the server was configured but Start() not called.
	StateCreated State = iota
	// StateStarting indicates the process is running but has not printed the ready marker.
	StateStarting
	// StateRunning indicates the server reported that startup is complete.
	StateRunning
	// StateStopping indicates Stop() was called and the process is shutting down.
	StateStopping
	// StateStopped is terminal: the process exited after Stop() or on its own with status 0.
	StateStopped
	// StateFailed is terminal: the process could not start or exited with an error.
	StateFailed
)

// State represents the lifecycle state of the server process.
type State int32

// String returns a human-readable representation of the server state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is a terminal state (Stopped or Failed).
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// lifecycle is the atomic state holder behind Server. Reads are lock-free;
// the mutex only guards lastErr.
type lifecycle struct {
	state   atomic.Int32
	mu      sync.Mutex
	lastErr error
	readyCh chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{readyCh: make(chan struct{})}
}

func (l *lifecycle) current() State { return State(l.state.Load()) }

func (l *lifecycle) toStarting() error {
	if !l.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", l.current())
	}
	return nil
}

// toRunning reports whether this call performed the Starting → Running change.
func (l *lifecycle) toRunning() bool {
	if l.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(l.readyCh)
		return true
	}
	return false
}

// toStopping reports whether the caller owns the shutdown.
func (l *lifecycle) toStopping() bool {
	for {
		cur := l.current()
		switch cur {
		case StateCreated:
			if l.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if l.state.CompareAndSwap(int32(cur), int32(StateStopping)) {
				return true
			}
		default:
			return false
		}
	}
}

func (l *lifecycle) toFailed(err error) {
	l.mu.Lock()
	l.lastErr = err
	l.mu.Unlock()
	l.state.Store(int32(StateFailed))
}

func (l *lifecycle) toStopped() {
	l.state.Store(int32(StateStopped))
}

func (l *lifecycle) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

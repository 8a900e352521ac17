// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"sync"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// nameLocks hands out one mutex per component name.
type nameLocks struct {
	mu    sync.Mutex
	locks map[component.Name]*sync.Mutex
}

func (l *nameLocks) lock(name component.Name) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[component.Name]*sync.Mutex)
	}
	m, ok := l.locks[name]
	if !ok {
		m = &sync.Mutex{}
		l.locks[name] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

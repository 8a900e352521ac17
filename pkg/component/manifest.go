// SPDX-License-Identifier: MPL-2.0

package component

import (
	"time"
)

type (
	// Component is a single named, independently-versioned payload.
	Component struct {
		Name      Name
		Hash      Hash
		SourceURL string // Remote download URL; empty for local entries
		Size      int64  // Remote archive size in bytes; 0 when unknown
		LocalPath string // Canonical archive path once installed
	}

	// Manifest is an ordered mapping from component name to Component.
	// Enumeration order is the order in which names were first added.
	Manifest struct {
		order   []Name
		entries map[Name]Component
	}

	// Installed describes one component found in the local store.
	Installed struct {
		Hash        Hash
		ArchivePath string
		ModTime     time.Time
		Size        int64
	}

	// LocalManifest maps component names to what is installed locally.
	LocalManifest map[Name]Installed
)

// NewManifest returns an empty Manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[Name]Component)}
}

// Set adds or replaces the entry for c.Name. A replacement keeps the original
// enumeration position (last match wins on content, first match on order).
// It reports whether an existing entry was replaced.
func (m *Manifest) Set(c Component) (replaced bool) {
	if m.entries == nil {
		m.entries = make(map[Name]Component)
	}
	if _, ok := m.entries[c.Name]; ok {
		replaced = true
	} else {
		m.order = append(m.order, c.Name)
	}
	m.entries[c.Name] = c
	return replaced
}

// Get returns the entry for name.
func (m *Manifest) Get(name Name) (Component, bool) {
	if m == nil {
		return Component{}, false
	}
	c, ok := m.entries[name]
	return c, ok
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Components returns the entries in enumeration order.
func (m *Manifest) Components() []Component {
	if m == nil {
		return nil
	}
	out := make([]Component, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.entries[n])
	}
	return out
}

// Names returns the entry names in enumeration order.
func (m *Manifest) Names() []Name {
	if m == nil {
		return nil
	}
	out := make([]Name, len(m.order))
	copy(out, m.order)
	return out
}

// Hash returns the installed hash for name, if any.
func (l LocalManifest) Hash(name Name) (Hash, bool) {
	in, ok := l[name]
	return in.Hash, ok
}

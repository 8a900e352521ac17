// SPDX-License-Identifier: MPL-2.0

// Package planner decides which remote components need to be installed.
package planner

import (
	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// Reason explains why a component is in a Plan.
type Reason string

const (
	// ReasonMissing means nothing is installed for the component.
	ReasonMissing Reason = "missing"
	// ReasonChanged means the installed hash differs from the remote hash.
	ReasonChanged Reason = "changed"
)

type (
	// Item is one planned component.
	Item struct {
		Component component.Component
		Reason    Reason
		Installed component.Hash // Currently installed hash; empty when missing
	}

	// Plan is the ordered list of components to fetch, in remote manifest order.
	Plan []Item
)

// Diff returns every component of remote that is absent from local or whose
// hash differs (case-insensitively). Order follows remote. Components present
// only in local are ignored.
func Diff(remote *component.Manifest, local component.LocalManifest) Plan {
	var plan Plan
	for _, c := range remote.Components() {
		installed, ok := local.Hash(c.Name)
		switch {
		case !ok:
			plan = append(plan, Item{Component: c, Reason: ReasonMissing})
		case !installed.Equal(c.Hash):
			plan = append(plan, Item{Component: c, Reason: ReasonChanged, Installed: installed})
		}
	}
	return plan
}

// Names returns the planned component names in order.
func (p Plan) Names() []component.Name {
	out := make([]component.Name, len(p))
	for i, it := range p {
		out[i] = it.Component.Name
	}
	return out
}

// TotalBytes sums the advertised sizes. Unknown sizes count as zero.
func (p Plan) TotalBytes() int64 {
	var n int64
	for _, it := range p {
		n += it.Component.Size
	}
	return n
}

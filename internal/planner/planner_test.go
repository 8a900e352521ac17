// SPDX-License-Identifier: MPL-2.0

package planner

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

func manifestOf(cs ...component.Component) *component.Manifest {
	m := component.NewManifest()
	for _, c := range cs {
		m.Set(c)
	}
	return m
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		remote *component.Manifest
		local  component.LocalManifest
		want   []component.Name
	}{
		{
			name:   "missing locally",
			remote: manifestOf(component.Component{Name: component.Web, Hash: "aaa"}),
			local:  component.LocalManifest{},
			want:   []component.Name{component.Web},
		},
		{
			name:   "same hash",
			remote: manifestOf(component.Component{Name: component.Web, Hash: "aaa"}),
			local:  component.LocalManifest{component.Web: {Hash: "aaa"}},
			want:   nil,
		},
		{
			name:   "hash comparison ignores case",
			remote: manifestOf(component.Component{Name: component.Web, Hash: "ABC"}),
			local:  component.LocalManifest{component.Web: {Hash: "abc"}},
			want:   nil,
		},
		{
			name: "changed and missing keep remote order",
			remote: manifestOf(
				component.Component{Name: component.Ollama, Hash: "o2"},
				component.Component{Name: component.Src, Hash: "s1"},
				component.Component{Name: component.PythonEnv, Hash: "p1"},
			),
			local: component.LocalManifest{
				component.Ollama: {Hash: "o1"},
				component.Src:    {Hash: "s1"},
			},
			want: []component.Name{component.Ollama, component.PythonEnv},
		},
		{
			name:   "orphans are ignored",
			remote: manifestOf(),
			local:  component.LocalManifest{component.FFmpeg: {Hash: "f1"}},
			want:   nil,
		},
		{
			name:   "nil remote",
			remote: nil,
			local:  component.LocalManifest{},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Diff(tt.remote, tt.local).Names()
			if len(got) != len(tt.want) {
				t.Fatalf("Diff() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Diff()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiff_Reasons(t *testing.T) {
	t.Parallel()

	plan := Diff(
		manifestOf(
			component.Component{Name: component.Web, Hash: "new"},
			component.Component{Name: component.Src, Hash: "s"},
		),
		component.LocalManifest{component.Web: {Hash: "old"}},
	)
	if len(plan) != 2 {
		t.Fatalf("expected 2 items, got %d", len(plan))
	}
	if plan[0].Reason != ReasonChanged || plan[0].Installed != "old" {
		t.Errorf("web item = %+v, want changed from old", plan[0])
	}
	if plan[1].Reason != ReasonMissing || plan[1].Installed != "" {
		t.Errorf("src item = %+v, want missing", plan[1])
	}
}

// TestDiff_Property checks on random inputs that the plan holds exactly the
// remote components whose local hash is missing or different.
func TestDiff_Property(t *testing.T) {
	t.Parallel()

	hashes := []component.Hash{"aa", "bb", "CC", "cc"}
	rng := rand.New(rand.NewPCG(1, 2))

	for range 500 {
		remote := component.NewManifest()
		local := component.LocalManifest{}
		for _, n := range component.All() {
			if rng.IntN(3) > 0 {
				remote.Set(component.Component{Name: n, Hash: hashes[rng.IntN(len(hashes))]})
			}
			if rng.IntN(2) == 0 {
				local[n] = component.Installed{Hash: hashes[rng.IntN(len(hashes))]}
			}
		}

		plan := Diff(remote, local)
		planned := make(map[component.Name]bool, len(plan))
		for _, it := range plan {
			planned[it.Component.Name] = true
		}

		for _, c := range remote.Components() {
			h, ok := local.Hash(c.Name)
			want := !ok || !strings.EqualFold(string(h), string(c.Hash))
			if planned[c.Name] != want {
				t.Fatalf("remote=%v local=%v: %s planned=%v, want %v", remote.Components(), local, c.Name, planned[c.Name], want)
			}
		}
		if len(plan) > remote.Len() {
			t.Fatalf("plan longer than remote manifest: %d > %d", len(plan), remote.Len())
		}
	}
}

func TestPlan_TotalBytes(t *testing.T) {
	t.Parallel()

	plan := Plan{
		{Component: component.Component{Name: component.Web, Size: 100}},
		{Component: component.Component{Name: component.Src}},
		{Component: component.Component{Name: component.Ollama, Size: 23}},
	}
	if got := plan.TotalBytes(); got != 123 {
		t.Errorf("TotalBytes() = %d, want 123", got)
	}
}

// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	// PythonEnv is the interpreter runtime (a relocatable Python environment).
	PythonEnv Name = "python_env"
	// Src is the application source tree placed on PYTHONPATH.
	Src Name = "src"
	// Web is the prebuilt web asset bundle served by the backend.
	Web Name = "web"
	// Ollama is the model runtime.
	Ollama Name = "ollama"
	// FFmpeg is the auxiliary media tool.
	FFmpeg Name = "ffmpeg"
)

// ErrUnknownComponent is returned when a name is not part of the closed component set.
var ErrUnknownComponent = errors.New("unknown component")

type (
	// Name identifies a component. Valid names form a closed, fixed set.
	Name string

	// UnknownComponentError is returned when a Name is not one of the known components.
	// It wraps ErrUnknownComponent for errors.Is() compatibility.
	UnknownComponentError struct {
		Value Name
		Known []Name // Set the name was checked against; nil means All()
	}
)

// All returns every known component name in canonical order.
func All() []Name {
	return []Name{PythonEnv, Src, Web, Ollama, FFmpeg}
}

// Error implements the error interface, naming a real component outside a
// restricted set as not managed rather than unknown.
func (e *UnknownComponentError) Error() string {
	known := e.Known
	if known == nil {
		known = All()
	}
	list := "none"
	if len(known) > 0 {
		parts := make([]string, len(known))
		for i, n := range known {
			parts[i] = string(n)
		}
		list = strings.Join(parts, ", ")
	}
	if slices.Contains(All(), e.Value) && !slices.Contains(known, e.Value) {
		return fmt.Sprintf("component %q is not managed (managed: %s)", string(e.Value), list)
	}
	return fmt.Sprintf("unknown component %q (valid: %s)", string(e.Value), list)
}

// Unwrap returns ErrUnknownComponent so callers can use errors.Is.
func (e *UnknownComponentError) Unwrap() error { return ErrUnknownComponent }

// Validate returns nil if the Name is one of the known components.
func (n Name) Validate() error {
	if slices.Contains(All(), n) {
		return nil
	}
	return &UnknownComponentError{Value: n}
}

// String returns the name as it appears in asset file names.
func (n Name) String() string { return string(n) }

// Description returns a short human-readable label for the component.
func (n Name) Description() string {
	switch n {
	case PythonEnv:
		return "interpreter runtime"
	case Src:
		return "source tree"
	case Web:
		return "web assets"
	case Ollama:
		return "model runtime"
	case FFmpeg:
		return "media tool"
	}
	return "unknown"
}

// ParseNames converts raw strings into validated Names, preserving order and
// dropping duplicates. An empty input yields All().
func ParseNames(raw []string) ([]Name, error) {
	if len(raw) == 0 {
		return All(), nil
	}
	names := make([]Name, 0, len(raw))
	for _, r := range raw {
		n := Name(r)
		if err := n.Validate(); err != nil {
			return nil, err
		}
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return names, nil
}

// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nodetool-ai/ntcomp/pkg/component"
	"github.com/nodetool-ai/ntcomp/pkg/platform"
)

// ErrPythonMissing is returned when the interpreter runtime is not installed.
var ErrPythonMissing = errors.New("python environment is not available")

// Layout is the runtime view of an installed component store.
type Layout struct {
	ComponentsDir string
	PythonEnvDir  string
	Python        string // Interpreter executable
	SitePackages  string // Empty when it cannot be located
	SrcDir        string
	WebDir        string
	OllamaDir     string
	FFmpegDir     string
	GOOS          string
}

// ResolveLayout derives the layout of the store at componentsDir for goos.
// pythonEnvDir overrides the interpreter runtime location when non-empty.
// It fails with ErrPythonMissing when the interpreter executable is absent.
func ResolveLayout(componentsDir, pythonEnvDir, goos string) (Layout, error) {
	if pythonEnvDir == "" {
		pythonEnvDir = filepath.Join(componentsDir, string(component.PythonEnv))
	}

	l := Layout{
		ComponentsDir: componentsDir,
		PythonEnvDir:  pythonEnvDir,
		SrcDir:        filepath.Join(componentsDir, string(component.Src)),
		WebDir:        filepath.Join(componentsDir, string(component.Web)),
		OllamaDir:     filepath.Join(componentsDir, string(component.Ollama)),
		FFmpegDir:     filepath.Join(componentsDir, string(component.FFmpeg)),
		GOOS:          goos,
	}

	if goos == platform.Windows {
		l.Python = filepath.Join(pythonEnvDir, "python"+platform.ExeSuffix(goos))
		l.SitePackages = filepath.Join(pythonEnvDir, "Lib", "site-packages")
	} else {
		l.Python = filepath.Join(pythonEnvDir, "bin", "python")
		l.SitePackages = findSitePackages(pythonEnvDir)
	}

	if _, err := os.Stat(l.Python); err != nil {
		return l, fmt.Errorf("%w: %s: %w", ErrPythonMissing, l.Python, err)
	}
	return l, nil
}

// findSitePackages picks the highest lib/python3.*/site-packages under dir.
func findSitePackages(dir string) string {
	matches, err := filepath.Glob(filepath.Join(dir, "lib", "python3.*", "site-packages"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	slices.SortFunc(matches, func(a, b string) int {
		return compareMinor(pythonMinor(a), pythonMinor(b))
	})
	return matches[len(matches)-1]
}

// pythonMinor extracts "11" from ".../lib/python3.11/site-packages".
func pythonMinor(p string) string {
	v := filepath.Base(filepath.Dir(p))
	return strings.TrimPrefix(v, "python3.")
}

func compareMinor(a, b string) int {
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// Vars returns the variables available to the server command line.
func (l Layout) Vars() map[string]string {
	return map[string]string{
		"COMPONENTS_DIR": l.ComponentsDir,
		"PYTHON":         l.Python,
		"SITE_PACKAGES":  l.SitePackages,
		"SRC_DIR":        l.SrcDir,
		"WEB_DIR":        l.WebDir,
		"OLLAMA_DIR":     l.OllamaDir,
		"FFMPEG_DIR":     l.FFmpegDir,
	}
}

// Env returns base with the server variables applied: PYTHONPATH points at
// the source tree, PATH is prefixed with the model runtime and media tool
// directories, and output is unbuffered. extra entries (KEY=VALUE) are
// applied last.
func (l Layout) Env(base, extra []string) []string {
	env := newEnvList(base)

	sep := platform.PathListSeparator(l.GOOS)
	path := strings.Join([]string{l.OllamaDir, l.FFmpegDir}, sep)
	if cur := env.get("PATH"); cur != "" {
		path += sep + cur
	}

	env.set("PYTHONPATH", l.SrcDir)
	env.set("PATH", path)
	env.set("PYTHONUNBUFFERED", "1")
	for _, kv := range extra {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env.set(k, v)
		}
	}
	return env.list()
}

// envList is an ordered KEY=VALUE list with last-write-wins updates.
type envList struct {
	keys []string
	vals map[string]string
}

func newEnvList(base []string) *envList {
	e := &envList{vals: make(map[string]string, len(base))}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			e.set(k, v)
		}
	}
	return e
}

func (e *envList) get(k string) string { return e.vals[k] }

func (e *envList) set(k, v string) {
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.vals[k] = v
}

func (e *envList) list() []string {
	out := make([]string, len(e.keys))
	for i, k := range e.keys {
		out[i] = k + "=" + e.vals[k]
	}
	return out
}

// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"path/filepath"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Host returns runtime.GOOS.
func Host() string { return runtime.GOOS }

// ExeSuffix returns ".exe" on Windows and "" elsewhere.
func ExeSuffix(goos string) string {
	if goos == Windows {
		return ".exe"
	}
	return ""
}

// PathListSeparator returns the PATH separator for goos.
func PathListSeparator(goos string) string {
	if goos == Windows {
		return ";"
	}
	return ":"
}

// DataDir returns the per-user application data directory for goos, given
// the user's home directory and the values of APPDATA and XDG_DATA_HOME.
//
//   - Windows: %APPDATA%
//   - macOS:   ~/Library/Application Support
//   - other:   $XDG_DATA_HOME or ~/.local/share
func DataDir(goos, home, appData, xdgDataHome string) string {
	switch goos {
	case Windows:
		if appData != "" {
			return appData
		}
		return filepath.Join(home, "AppData", "Roaming")
	case Darwin:
		return filepath.Join(home, "Library", "Application Support")
	default:
		if xdgDataHome != "" {
			return xdgDataHome
		}
		return filepath.Join(home, ".local", "share")
	}
}

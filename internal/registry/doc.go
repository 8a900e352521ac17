// SPDX-License-Identifier: MPL-2.0

// Package registry reads the release registry (the GitHub Releases API) and
// turns the latest release's asset list into a component manifest.
//
// The package is organized into two concerns:
//   - github.go: HTTP client for the latest-release endpoint and asset downloads
//   - manifest.go: asset-name parsing into a component.Manifest
package registry

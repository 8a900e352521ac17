// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform naming helpers for the component
// store and the server launcher: OS constants, executable suffixes, PATH list
// separators and per-OS user directories.
package platform

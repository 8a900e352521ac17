// SPDX-License-Identifier: MPL-2.0

// Package launch starts the long-running backend server from the installed
// components once the update check has resolved.
//
// ResolveLayout derives interpreter, source, web and tool locations from the
// component store. Server runs the configured command with that layout's
// environment, streams its output line by line, and tracks the process
// through a created → starting → running → stopping → stopped/failed
// lifecycle. The server counts as running once it prints the ready marker.
package launch

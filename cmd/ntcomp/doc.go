// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the ntcomp command line: update, status, verify,
// run and config. Commands receive an App carrying the configuration
// provider and output streams, so they can be exercised without a terminal.
package cmd

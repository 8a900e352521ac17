// SPDX-License-Identifier: MPL-2.0

// Package updater orchestrates one component update run: fetch the remote
// manifest, scan the local store, plan, then download, verify and install
// each planned component through a bounded worker pool.
//
// Every component moves through its own state machine and fails in
// isolation. A run never returns an error; the outcome is a Summary that the
// caller inspects to decide whether startup may proceed.
package updater

// SPDX-License-Identifier: MPL-2.0

// Package component defines the data model shared by every stage of the
// component update engine: the closed set of component names, content hashes,
// the `{name}_{hash}.tar` asset naming contract, and the remote and local
// manifests built from it.
package component

// SPDX-License-Identifier: MPL-2.0

// Package inventory discovers which component versions are installed in the
// local component store.
//
// The archive file names (`{name}_{hash}.tar`) are the source of truth. A
// `components.toml` file next to them caches install metadata for display; it
// is never consulted when deciding what to update.
package inventory

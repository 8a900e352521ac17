// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and Markdown guidance for failures
// the user can fix, such as an unreachable registry or an unwritable
// component store.
package issue

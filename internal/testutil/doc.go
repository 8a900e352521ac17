// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by ntcomp tests: in-memory component
// archives, digests, store fixtures and a controllable clock.
package testutil

// SPDX-License-Identifier: MPL-2.0

// Package integrity computes and compares SHA-256 content digests of
// component archives. Files are always streamed in bounded chunks so that
// multi-gigabyte archives never need to fit in memory.
package integrity

// SPDX-License-Identifier: MPL-2.0

// Package install promotes a verified download to its canonical archive name
// and unpacks it into the component store.
//
// Extraction is additive: files present in an older tree but absent from the
// new archive stay in place. Every regular file is written to a sibling temp
// file and renamed over its destination, so readers never see a partially
// written file and re-installing the same archive yields the same tree.
package install

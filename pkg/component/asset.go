// SPDX-License-Identifier: MPL-2.0

package component

import (
	"errors"
	"strings"
)

// ArchiveExt is the file extension of every component archive.
const ArchiveExt = ".tar"

// ErrNotComponentAsset indicates a file or asset name that does not follow the
// `{name}_{hash}.tar` grammar at all. Callers skip such names silently.
var ErrNotComponentAsset = errors.New("not a component asset")

// ArchiveName returns the canonical archive file name for a component version.
func ArchiveName(name Name, hash Hash) string {
	return string(name) + "_" + string(hash.Normalize()) + ArchiveExt
}

// ParseAssetName parses a release asset name of the form `{name}_{hash}.tar`.
//
// The name part must be one of known; the longest matching name wins so that
// names containing underscores (python_env) are never split early. The hash
// part must be a 64-digit hex SHA-256 and is returned lowercased.
//
// Errors:
//   - ErrNotComponentAsset when the grammar does not match at all
//   - *UnknownComponentError when the grammar matches but the name is not in known
//   - *InvalidHashError when the name is known but the hash is malformed
func ParseAssetName(asset string, known []Name) (Name, Hash, error) {
	name, rest, ok := splitArchiveName(asset, known)
	if !ok {
		stem, isTar := strings.CutSuffix(asset, ArchiveExt)
		if !isTar {
			return "", "", ErrNotComponentAsset
		}
		idx := strings.LastIndex(stem, "_")
		if idx <= 0 || idx == len(stem)-1 {
			return "", "", ErrNotComponentAsset
		}
		return "", "", &UnknownComponentError{Value: Name(stem[:idx]), Known: known}
	}

	hash := Hash(rest)
	if err := hash.Validate(); err != nil {
		return name, "", err
	}
	return name, hash.Normalize(), nil
}

// MatchArchive reports whether file is a local archive for one of known and
// returns its name and hash suffix. Unlike ParseAssetName the hash part is
// taken verbatim: any non-empty suffix is accepted.
func MatchArchive(file string, known []Name) (Name, Hash, bool) {
	name, rest, ok := splitArchiveName(file, known)
	if !ok {
		return "", "", false
	}
	return name, Hash(rest), true
}

// splitArchiveName splits `{name}_{rest}.tar` using the longest known name
// that prefixes the stem.
func splitArchiveName(file string, known []Name) (Name, string, bool) {
	stem, ok := strings.CutSuffix(file, ArchiveExt)
	if !ok {
		return "", "", false
	}

	var best Name
	for _, n := range known {
		prefix := string(n) + "_"
		if len(stem) > len(prefix) && strings.HasPrefix(stem, prefix) && len(n) > len(best) {
			best = n
		}
	}
	if best == "" {
		return "", "", false
	}
	return best, stem[len(best)+1:], true
}

// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/nodetool-ai/ntcomp/pkg/component"
)

// ErrDuplicateAsset is reported when a release lists the same component twice.
var ErrDuplicateAsset = errors.New("duplicate component asset")

type (
	// Warning describes a release asset that was skipped or overridden while
	// building a manifest. Err wraps one of component.ErrUnknownComponent,
	// component.ErrInvalidHash or ErrDuplicateAsset.
	Warning struct {
		Asset string
		Err   error
	}

	// Listing is the result of FetchManifest.
	Listing struct {
		Release  *Release
		Manifest *component.Manifest
		Warnings []Warning
	}
)

// Error implements the error interface.
func (w Warning) Error() string {
	return fmt.Sprintf("asset %q: %v", w.Asset, w.Err)
}

// Unwrap returns the underlying cause.
func (w Warning) Unwrap() error { return w.Err }

// FetchManifest fetches the latest release and builds the remote manifest of
// the known components from its asset names.
func (c *GitHubClient) FetchManifest(ctx context.Context, known []component.Name) (*Listing, error) {
	rel, err := c.LatestRelease(ctx)
	if err != nil {
		return nil, err
	}

	m, warnings := BuildManifest(rel.Assets, known)
	return &Listing{Release: rel, Manifest: m, Warnings: warnings}, nil
}

// BuildManifest parses assets into a Manifest of the known components.
//
// Names that are not of the `{name}_{hash}.tar` form are skipped silently.
// Unknown names and malformed hashes are skipped with a Warning. When a name
// appears more than once the last asset wins and a Warning is recorded; the
// entry keeps the position of its first appearance.
func BuildManifest(assets []Asset, known []component.Name) (*component.Manifest, []Warning) {
	m := component.NewManifest()
	var warnings []Warning

	for _, a := range assets {
		name, hash, err := component.ParseAssetName(a.Name, known)
		switch {
		case errors.Is(err, component.ErrNotComponentAsset):
			continue
		case err != nil:
			warnings = append(warnings, Warning{Asset: a.Name, Err: err})
			continue
		}

		replaced := m.Set(component.Component{
			Name:      name,
			Hash:      hash,
			SourceURL: a.BrowserDownloadURL,
			Size:      a.Size,
		})
		if replaced {
			warnings = append(warnings, Warning{
				Asset: a.Name,
				Err:   fmt.Errorf("%w: %s (last listed wins)", ErrDuplicateAsset, name),
			})
		}
	}

	return m, warnings
}

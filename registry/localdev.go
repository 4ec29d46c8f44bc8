// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/version"
)

// localDevFileName is the sidecar file a developer drops their
// in-progress package versions into. It is always plain V2 text,
// regardless of which protocol the real registry speaks, since that's
// the one format that can carry full dependency data.
const localDevFileName = "registry-local-dev.dat"

func localDevPath(home string) string {
	return filepath.Join(home, "0.19.1", "packages", localDevFileName)
}

// LoadLocalDev reads the local-dev overlay, if present. A missing file is
// not an error -- most installs never create one.
func LoadLocalDev(home string) (*V2, error) {
	idx, err := LoadV2FromText(localDevPath(home))
	if err != nil {
		return nil, errors.Wrap(err, "reading local-dev overlay")
	}
	if idx == nil {
		idx = NewV2()
	}
	return idx, nil
}

// AddLocalDev appends one (package, version) entry with its resolved
// dependencies to the local-dev overlay and writes it back. The overlay is
// append-only: an existing entry for the same package/version is left in
// place rather than replaced, and nothing is ever removed by this call.
func AddLocalDev(home string, author, name string, v version.Version, license string, deps []Dependency) error {
	idx, err := LoadLocalDev(home)
	if err != nil {
		return err
	}

	if _, ok := idx.FindVersion(author, name, v); ok {
		return nil
	}

	idx.add(author, name, &V2Version{
		Version: v,
		Status:  Valid,
		License: license,
		Deps:    deps,
	})

	path := localDevPath(home)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating local-dev directory")
	}
	return errors.Wrap(os.WriteFile(path, RenderV2Text(idx), 0o644), "writing local-dev overlay")
}

// MergeLocalDev layers the local-dev overlay's entries on top of idx,
// mutating idx in place. Overlay entries never displace a real registry
// entry for the same (package, version); they only fill in versions the
// real registry doesn't know about yet, which is the common case for a
// package under active local development.
func MergeLocalDev(idx *V2, overlay *V2) {
	if overlay == nil {
		return
	}
	for id, versions := range overlay.packages {
		for _, ov := range versions {
			if _, ok := idx.FindVersion(id.Author, id.Name, ov.Version); ok {
				continue
			}
			idx.add(id.Author, id.Name, ov)
		}
	}
}

// MergeLocalDevV1 layers the local-dev overlay on top of a V1 registry's
// flat version list, for installs still speaking the V1 protocol. Only the
// version number is usable here -- V1 has no per-version dependency slot of
// its own, so dependency data for a local-dev version is recovered later
// via ManifestFetcher, exactly as any other V1 version would be.
func MergeLocalDevV1(r *V1, overlay *V2) {
	if overlay == nil {
		return
	}
	for id, versions := range overlay.packages {
		for _, ov := range versions {
			r.AddVersion(id.Author, id.Name, ov.Version)
		}
	}
}

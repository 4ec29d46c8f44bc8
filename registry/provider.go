// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/version"
)

// RootID is the synthetic package id every provider reserves for the
// project being resolved, so the solver never has to special-case "the
// thing we're solving for" versus "a real dependency".
var RootID = PackageID{Author: "", Name: ""}

// RootVersion is the synthetic version assigned to RootID.
var RootVersion = version.Version{Major: 1, Minor: 0, Patch: 0}

// Provider is the solver's sole view of package data: given a package, what
// versions exist, and given a (package, version), what does it depend on
//. Both the V1 and V2 registry protocols implement it, so
// resolve.Solve never needs to know which protocol is in play.
type Provider interface {
	// Versions returns pkg's known versions, newest first.
	Versions(ctx context.Context, pkg PackageID) ([]version.Version, error)
	// Dependencies returns the dependency list declared by (pkg, v).
	Dependencies(ctx context.Context, pkg PackageID, v version.Version) ([]Dependency, error)
}

// V1Provider answers Provider queries against a V1 registry, fetching each
// version's dependency list on demand via a ManifestFetcher and caching the
// result in-process.
type V1Provider struct {
	reg     *V1
	overlay *V2
	fetch   ManifestFetcher

	mu    sync.Mutex
	cache map[PackageID]map[version.Version][]Dependency
}

// NewV1Provider builds a provider over reg, consulting overlay (if any) for
// local-dev versions reg doesn't know about, and using fetch to retrieve
// per-version dependency data.
func NewV1Provider(reg *V1, overlay *V2, fetch ManifestFetcher) *V1Provider {
	return &V1Provider{
		reg:     reg,
		overlay: overlay,
		fetch:   fetch,
		cache:   make(map[PackageID]map[version.Version][]Dependency),
	}
}

func (p *V1Provider) Versions(ctx context.Context, pkg PackageID) ([]version.Version, error) {
	if pkg == RootID {
		return []version.Version{RootVersion}, nil
	}

	var out []version.Version
	if e, ok := p.reg.Find(pkg.Author, pkg.Name); ok {
		out = append(out, e.Versions...)
	}
	if p.overlay != nil {
		if vs, ok := p.overlay.Find(pkg.Author, pkg.Name); ok {
			for _, vv := range vs {
				if !containsVersion(out, vv.Version) {
					out = append(out, vv.Version)
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("unknown package %s", pkg)
	}

	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

func (p *V1Provider) Dependencies(ctx context.Context, pkg PackageID, v version.Version) ([]Dependency, error) {
	if pkg == RootID {
		return nil, errors.New("Dependencies called on the synthetic root package")
	}

	if p.overlay != nil {
		if ov, ok := p.overlay.FindVersion(pkg.Author, pkg.Name, v); ok {
			return ov.Deps, nil
		}
	}

	p.mu.Lock()
	if byVersion, ok := p.cache[pkg]; ok {
		if deps, ok := byVersion[v]; ok {
			p.mu.Unlock()
			return deps, nil
		}
	}
	p.mu.Unlock()

	deps, err := p.fetch.FetchManifestDeps(ctx, pkg.Author, pkg.Name, v)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching manifest for %s@%s", pkg, v)
	}

	p.mu.Lock()
	if p.cache[pkg] == nil {
		p.cache[pkg] = make(map[version.Version][]Dependency)
	}
	p.cache[pkg][v] = deps
	p.mu.Unlock()

	return deps, nil
}

func containsVersion(vs []version.Version, v version.Version) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// V2Provider answers Provider queries directly from a fully-loaded V2
// index, which already carries every version's dependency graph.
// Obsolete/Missing entries are excluded from Versions: only Valid
// versions are ever offered to the solver.
type V2Provider struct {
	idx     *V2
	overlay *V2
}

// NewV2Provider builds a provider over idx, with overlay (if any) supplying
// additional local-dev versions.
func NewV2Provider(idx *V2, overlay *V2) *V2Provider {
	return &V2Provider{idx: idx, overlay: overlay}
}

func (p *V2Provider) Versions(ctx context.Context, pkg PackageID) ([]version.Version, error) {
	if pkg == RootID {
		return []version.Version{RootVersion}, nil
	}

	var out []version.Version
	if vs, ok := p.idx.Find(pkg.Author, pkg.Name); ok {
		for _, vv := range vs {
			if vv.Status == Valid {
				out = append(out, vv.Version)
			}
		}
	}
	if p.overlay != nil {
		if vs, ok := p.overlay.Find(pkg.Author, pkg.Name); ok {
			for _, vv := range vs {
				if !containsVersion(out, vv.Version) {
					out = append(out, vv.Version)
				}
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("unknown package %s", pkg)
	}

	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out, nil
}

func (p *V2Provider) Dependencies(ctx context.Context, pkg PackageID, v version.Version) ([]Dependency, error) {
	if pkg == RootID {
		return nil, errors.New("Dependencies called on the synthetic root package")
	}

	if p.overlay != nil {
		if ov, ok := p.overlay.FindVersion(pkg.Author, pkg.Name, v); ok {
			return ov.Deps, nil
		}
	}

	vv, ok := p.idx.FindVersion(pkg.Author, pkg.Name, v)
	if !ok {
		return nil, errors.Errorf("unknown version %s@%s", pkg, v)
	}
	return vv.Deps, nil
}

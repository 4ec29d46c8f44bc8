// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// Request is everything resolve.Solve needs to re-derive a project's
// dependency set: its existing declared constraints, turned into solver
// root dependencies, plus the currently-installed versions to prefer
// under a Conservative strategy.
type Request struct {
	RootDeps []registry.Dependency
	Locked   map[registry.PackageID]version.Version
}

// BuildRequest reads doc's existing dependency sections and folds in one
// extra (package, range) edge for the operation's target -- the package
// being installed, upgraded, or widened. For an application, every
// already-declared dependency in all four sections is re-asserted as an
// exact pin so packages the caller isn't touching don't move; a package
// manifest's declared ranges are passed through as they are.
func BuildRequest(doc *ManifestDoc, target registry.PackageID, targetRange version.Range, testTarget bool) (Request, error) {
	locked := make(map[registry.PackageID]version.Version)
	var rootDeps []registry.Dependency

	addPinned := func(pkg registry.PackageID, v version.Version) {
		if pkg == target {
			return
		}
		locked[pkg] = v
		rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: version.Exact(v)})
	}

	if doc.IsApplication() {
		deps, err := doc.ApplicationDependencies()
		if err != nil {
			return Request{}, err
		}
		for pkg, v := range deps.Direct {
			addPinned(pkg, v)
		}
		for pkg, v := range deps.Indirect {
			addPinned(pkg, v)
		}
		for pkg, v := range deps.TestDirect {
			addPinned(pkg, v)
		}
		for pkg, v := range deps.TestIndirect {
			addPinned(pkg, v)
		}
	} else {
		deps, err := doc.PackageDependencies()
		if err != nil {
			return Request{}, err
		}
		for pkg, r := range deps.Deps {
			if pkg == target {
				continue
			}
			rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
		}
		for pkg, r := range deps.TestDeps {
			if pkg == target {
				continue
			}
			rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
		}
	}

	rootDeps = append(rootDeps, registry.Dependency{Pkg: target, Range: targetRange})

	return Request{RootDeps: rootDeps, Locked: locked}, nil
}

// RemoveRequest builds the root dependency set for dropping target
// entirely: every other already-declared dependency is kept (pinned, for
// an application; as its existing range, for a package), and target is
// simply never added.
func RemoveRequest(doc *ManifestDoc, target registry.PackageID) (Request, error) {
	locked := make(map[registry.PackageID]version.Version)
	var rootDeps []registry.Dependency

	if doc.IsApplication() {
		deps, err := doc.ApplicationDependencies()
		if err != nil {
			return Request{}, err
		}
		add := func(pkg registry.PackageID, v version.Version) {
			if pkg == target {
				return
			}
			locked[pkg] = v
			rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: version.Exact(v)})
		}
		for pkg, v := range deps.Direct {
			add(pkg, v)
		}
		for pkg, v := range deps.TestDirect {
			add(pkg, v)
		}
		// Indirect packages aren't re-asserted as root deps -- if target
		// was the only thing requiring one, it should now be free to drop
		// out of the solution -- but their current version is still
		// offered to the Conservative strategy as a preference in case
		// something else still needs them.
		for pkg, v := range deps.Indirect {
			if pkg != target {
				locked[pkg] = v
			}
		}
		for pkg, v := range deps.TestIndirect {
			if pkg != target {
				locked[pkg] = v
			}
		}
	} else {
		deps, err := doc.PackageDependencies()
		if err != nil {
			return Request{}, err
		}
		for pkg, r := range deps.Deps {
			if pkg == target {
				continue
			}
			rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
		}
		for pkg, r := range deps.TestDeps {
			if pkg == target {
				continue
			}
			rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
		}
	}

	return Request{RootDeps: rootDeps, Locked: locked}, nil
}

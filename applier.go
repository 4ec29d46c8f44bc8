// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// Plan is a resolved dependency set together with the request that
// produced it, ready to be written back into a manifest.
type Plan struct {
	// Solution is the resolver's output: every package the project
	// needs, at the one version chosen for it.
	Solution map[registry.PackageID]version.Version
	// Target is the package the operation is actually about --
	// the argument to install/upgrade/remove. Every other package in
	// Solution is there only because Target (transitively) needs it.
	Target registry.PackageID
	// TestTarget is true when Target belongs in a test-dependency
	// section rather than a production one (`install --test`).
	TestTarget bool
}

// ApplyApplication applies plan to an application manifest's dependency
// sections in place: the target goes into direct/test-direct, anything
// already present keeps its existing section, and anything new lands in
// the matching indirect section.
func ApplyApplication(doc *ManifestDoc, plan Plan) error {
	prev, err := doc.ApplicationDependencies()
	if err != nil {
		return err
	}

	next := newAppDependencies()

	for pkg, v := range plan.Solution {
		if pkg == registry.RootID {
			continue
		}

		if pkg == plan.Target {
			if plan.TestTarget {
				next.TestDirect[pkg] = v
			} else {
				next.Direct[pkg] = v
			}
			continue
		}

		switch {
		case hasPkg(prev.Direct, pkg):
			next.Direct[pkg] = v
		case hasPkg(prev.Indirect, pkg):
			next.Indirect[pkg] = v
		case hasPkg(prev.TestDirect, pkg):
			next.TestDirect[pkg] = v
		case hasPkg(prev.TestIndirect, pkg):
			next.TestIndirect[pkg] = v
		case plan.TestTarget:
			next.TestIndirect[pkg] = v
		default:
			next.Indirect[pkg] = v
		}
	}

	return doc.SetApplicationDependencies(next)
}

// ApplyPackage applies plan to a library manifest's dependency sections:
// every package in the solution other than Target is written into
// `dependencies`, and Target goes into whichever section the caller
// directed, each as a range bounded by the next major version -- the
// project's convention is "X.Y.Z <= v < X+1.0.0" wherever the resolver
// actually pinned a version.
func ApplyPackage(doc *ManifestDoc, plan Plan) error {
	next := PackageDependencies{
		Deps:     make(map[registry.PackageID]version.Range),
		TestDeps: make(map[registry.PackageID]version.Range),
	}

	for pkg, v := range plan.Solution {
		if pkg == registry.RootID {
			continue
		}
		r := nextMajorRange(v)

		if pkg == plan.Target && plan.TestTarget {
			next.TestDeps[pkg] = r
			continue
		}
		next.Deps[pkg] = r
	}

	return doc.SetPackageDependencies(next)
}

// nextMajorRange builds the half-open range an installed version is
// recorded under: "v <= x < v.NextMajor()".
func nextMajorRange(v version.Version) version.Range {
	return version.Closed(v, v.NextMajor())
}

func hasPkg(m map[registry.PackageID]version.Version, pkg registry.PackageID) bool {
	_, ok := m[pkg]
	return ok
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// Remove re-solves against remainingRootDeps (the root dependency list
// with one direct dependency dropped), using prior as the lock set so
// every package that is still reachable keeps its existing version.
// Packages that become unreachable simply don't appear in the returned
// solution -- Solve only ever decides packages with a
// non-empty accumulated range, and nothing derives a range for a package
// no remaining dependency edge points at.
func Remove(ctx context.Context, provider registry.Provider, remainingRootDeps []registry.Dependency, prior map[registry.PackageID]version.Version) (map[registry.PackageID]version.Version, error) {
	return Solve(ctx, provider, remainingRootDeps, prior, Conservative)
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"fmt"
	"strings"

	"github.com/dsimunic/elm-wrap/registry"
)

// Explain renders a conflict's derivation as a sequence of numbered
// statements, in the style PubGrub-derived tools use to report why
// resolution failed. Shared nodes in the derivation tree (a candidate
// that was excluded more than once for unrelated reasons) are only
// rendered the first time they're reached; a combining "because" line
// refers to the statements it joins by their numbers.
func Explain(conflict *Incompatibility) string {
	var lines []string
	seen := make(map[*Incompatibility]int)

	var walk func(ic *Incompatibility) string
	walk = func(ic *Incompatibility) string {
		if _, ok := seen[ic]; ok {
			return describeTerms(ic.Terms)
		}
		defer func() { seen[ic] = len(lines) }()

		switch c := ic.Cause.(type) {
		case RootCause:
			line := fmt.Sprintf("your project directly requires %s", describeTerms(ic.Terms))
			lines = append(lines, line)
			return line

		case NoVersionsCause:
			line := fmt.Sprintf("no version of %s matches %s", c.Pkg, c.Range)
			lines = append(lines, line)
			return line

		case DependencyCause:
			line := fmt.Sprintf("%s@%s requires %s", c.From, c.FromVersion, c.Dep)
			lines = append(lines, line)
			return line

		case ConflictCause:
			walk(c.Left)
			walk(c.Right)
			line := fmt.Sprintf("because (%d) and (%d), no solution was found satisfying %s", seen[c.Left], seen[c.Right], describeTerms(ic.Terms))
			lines = append(lines, line)
			return line

		default:
			line := describeTerms(ic.Terms)
			lines = append(lines, line)
			return line
		}
	}

	walk(conflict)

	if pkg, ok := SmallestBlockingPackage(conflict); ok {
		lines = append(lines, fmt.Sprintf("resolution is blocked on the availability of %s", pkg))
	}

	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l)
	}
	return b.String()
}

func describeTerms(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// SmallestBlockingPackage walks the conflict's derivation and returns the
// single package identity a user would most plausibly need to change --
// the narrowest-scoped NoVersionsCause leaf, since that's a dead end no
// alternate candidate elsewhere in the tree can route around. Falls back
// to the first DependencyCause leaf if the conflict never bottoms out at
// a missing version (e.g. the root's own requirements directly collide).
func SmallestBlockingPackage(conflict *Incompatibility) (registry.PackageID, bool) {
	visited := make(map[*Incompatibility]bool)

	var bestNoVersions *registry.PackageID
	var firstDependency *registry.PackageID

	var walk func(ic *Incompatibility)
	walk = func(ic *Incompatibility) {
		if visited[ic] {
			return
		}
		visited[ic] = true

		switch c := ic.Cause.(type) {
		case NoVersionsCause:
			if bestNoVersions == nil || c.Pkg.String() < bestNoVersions.String() {
				pkg := c.Pkg
				bestNoVersions = &pkg
			}
		case DependencyCause:
			if firstDependency == nil {
				pkg := c.Dep.Pkg
				firstDependency = &pkg
			}
		case ConflictCause:
			walk(c.Left)
			walk(c.Right)
		}
	}
	walk(conflict)

	if bestNoVersions != nil {
		return *bestNoVersions, true
	}
	if firstDependency != nil {
		return *firstDependency, true
	}
	return registry.PackageID{}, false
}

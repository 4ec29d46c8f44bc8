// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// decision is one package the search has committed to a specific version
// for, recorded at the decision level it was made at so conflicts can
// unwind precisely to the decision responsible.
type decision struct {
	pkg     registry.PackageID
	version version.Version
	level   int
}

// rangeEntry is one Term asserted against a package, tagged with the
// decision level active when it was derived. Root-level assertions carry
// level 0 and are never unwound.
type rangeEntry struct {
	r     version.Range
	level int
}

// PartialSolution is the solver's working state: for every package the
// search has touched, the set of terms asserted against it so far (each
// tagged with the decision level that produced it, so backtracking can
// discard exactly the ones that no longer apply), plus the subset of
// those packages that have been assigned a concrete decided version.
type PartialSolution struct {
	entries   map[registry.PackageID][]rangeEntry
	decisions []decision
	decided   map[registry.PackageID]version.Version
	level     int
}

func newPartialSolution() *PartialSolution {
	return &PartialSolution{
		entries: make(map[registry.PackageID][]rangeEntry),
		decided: make(map[registry.PackageID]version.Version),
	}
}

// derive records a new term against pkg at the given decision level and
// returns the package's updated effective range.
func (ps *PartialSolution) derive(pkg registry.PackageID, r version.Range, level int) version.Range {
	ps.entries[pkg] = append(ps.entries[pkg], rangeEntry{r: r, level: level})
	return ps.computeRange(pkg)
}

func (ps *PartialSolution) computeRange(pkg registry.PackageID) version.Range {
	r := version.Any()
	for _, e := range ps.entries[pkg] {
		r = version.Intersect(r, e.r)
	}
	return r
}

func (ps *PartialSolution) rangeFor(pkg registry.PackageID) version.Range {
	return ps.computeRange(pkg)
}

// levelOf returns the decision level pkg was decided at, or 0 if pkg was
// never decided (the root, or a package only ever derived against).
func (ps *PartialSolution) levelOf(pkg registry.PackageID) int {
	for _, d := range ps.decisions {
		if d.pkg == pkg {
			return d.level
		}
	}
	return 0
}

// decide commits pkg to v at a new decision level, returning that level.
func (ps *PartialSolution) decide(pkg registry.PackageID, v version.Version) int {
	ps.level++
	ps.decisions = append(ps.decisions, decision{pkg: pkg, version: v, level: ps.level})
	ps.decided[pkg] = v
	return ps.level
}

// backtrackTo discards every decision made at or after level (inclusive),
// together with every derived term that was asserted at or after that
// level, so a package's effective range reverts to exactly what it would
// have been had the discarded decisions never been made. It returns every
// package whose decision was unwound, so the caller can also forget that
// it already expanded that package's dependencies (solver.go's
// `expanded` cache) -- otherwise a package re-decided to the same
// version would be treated as already-propagated and its dependency
// terms, just discarded above, would never be re-derived.
func (ps *PartialSolution) backtrackTo(level int) []registry.PackageID {
	var unwound []registry.PackageID
	keptDecisions := ps.decisions[:0]
	for _, d := range ps.decisions {
		if d.level < level {
			keptDecisions = append(keptDecisions, d)
		} else {
			delete(ps.decided, d.pkg)
			unwound = append(unwound, d.pkg)
		}
	}
	ps.decisions = keptDecisions

	for pkg, entries := range ps.entries {
		kept := entries[:0]
		for _, e := range entries {
			if e.level < level {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			// No surviving term: the package is untouched again, not
			// merely unconstrained.
			delete(ps.entries, pkg)
			continue
		}
		ps.entries[pkg] = kept
	}

	ps.level = level - 1
	return unwound
}

// isComplete reports whether every package with a non-trivial accumulated
// range has been decided.
func (ps *PartialSolution) isComplete() bool {
	for pkg := range ps.entries {
		if _, ok := ps.decided[pkg]; !ok {
			return false
		}
	}
	return true
}

// undecidedPackages returns every undecided package with a non-empty
// accumulated range, in order, so the caller can rank them.
func (ps *PartialSolution) undecidedPackages(order []registry.PackageID) []registry.PackageID {
	var out []registry.PackageID
	for _, pkg := range order {
		if _, ok := ps.decided[pkg]; ok {
			continue
		}
		if _, ok := ps.entries[pkg]; ok && !ps.computeRange(pkg).IsEmpty() {
			out = append(out, pkg)
		}
	}
	return out
}

// solution extracts the final package/version map once isComplete is true.
func (ps *PartialSolution) solution() map[registry.PackageID]version.Version {
	out := make(map[registry.PackageID]version.Version, len(ps.decided))
	for pkg, v := range ps.decided {
		if pkg == registry.RootID {
			continue
		}
		out[pkg] = v
	}
	return out
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"context"

	radix "github.com/armon/go-radix"
	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// Strategy controls which candidate version the solver tries first for a
// package it must decide. All strategies still
// only ever choose a version within the constraints already derived; they
// differ only in tie-breaking preference.
type Strategy int

const (
	// Conservative prefers a package's currently-locked version when it
	// still satisfies every derived constraint, minimizing unrelated
	// churn. Used by `remove` and by the first attempt of `install`.
	Conservative Strategy = iota
	// Upgrade always prefers the newest version satisfying the derived
	// constraints, ignoring the lock. Used by `upgrade`, by `check`, and
	// by `install` once its pinned attempt has failed.
	Upgrade
	// MajorUpgrade behaves like Upgrade; the actual major-version
	// widening happens one layer up, in the root dependency range the
	// caller constructs for the package(s) being major-upgraded, not in
	// the solver's per-candidate ordering.
	MajorUpgrade
)

// NoSolutionError is returned when no assignment of versions satisfies
// every dependency. Conflict carries the terminal
// incompatibility for Explain to render.
type NoSolutionError struct {
	Conflict *Incompatibility
}

func (e *NoSolutionError) Error() string {
	return "no solution satisfies every dependency"
}

type solver struct {
	ctx      context.Context
	provider registry.Provider
	strategy Strategy
	locked   map[registry.PackageID]version.Version

	ps       *PartialSolution
	names    *radix.Tree
	expanded map[registry.PackageID]version.Version
	excluded map[registry.PackageID][]version.Version
	history  []*Incompatibility
}

// Solve finds one version assignment satisfying rootDeps under provider,
// or returns a *NoSolutionError wrapping the conflict that made it
// impossible.
func Solve(ctx context.Context, provider registry.Provider, rootDeps []registry.Dependency, locked map[registry.PackageID]version.Version, strategy Strategy) (map[registry.PackageID]version.Version, error) {
	s := &solver{
		ctx:      ctx,
		provider: provider,
		strategy: strategy,
		locked:   locked,
		ps:       newPartialSolution(),
		names:    radix.New(),
		expanded: make(map[registry.PackageID]version.Version),
		excluded: make(map[registry.PackageID][]version.Version),
	}
	return s.run(rootDeps)
}

func (s *solver) addName(pkg registry.PackageID) {
	key := pkg.String()
	if _, had := s.names.Get(key); !had {
		s.names.Insert(key, pkg)
	}
}

func (s *solver) orderedNames() []registry.PackageID {
	out := make([]registry.PackageID, 0, s.names.Len())
	s.names.Walk(func(k string, v interface{}) bool {
		out = append(out, v.(registry.PackageID))
		return false
	})
	return out
}

func (s *solver) run(rootDeps []registry.Dependency) (map[registry.PackageID]version.Version, error) {
	s.ps.decided[registry.RootID] = registry.RootVersion

	for _, dep := range rootDeps {
		s.addName(dep.Pkg)
		if r := s.ps.derive(dep.Pkg, dep.Range, 0); r.IsEmpty() {
			return nil, &NoSolutionError{Conflict: newIncompatibility(RootCause{}, Term{Pkg: dep.Pkg, Range: dep.Range})}
		}
	}

	for {
		conflict, changed, err := s.propagateOnce()
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			if ok := s.backjump(conflict); !ok {
				return nil, &NoSolutionError{Conflict: s.finalConflict(conflict)}
			}
			continue
		}
		if changed {
			continue
		}

		pkg, ok := s.pickNextUndecided()
		if !ok {
			return s.ps.solution(), nil
		}

		conflict, err = s.decidePackage(pkg)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			if ok := s.backjump(conflict); !ok {
				return nil, &NoSolutionError{Conflict: s.finalConflict(conflict)}
			}
		}
	}
}

// propagateOnce expands the dependency terms of every decided-but-not-yet-
// expanded package. It returns a conflict as soon as a derived term either
// empties a package's accumulated range or excludes a version that has
// already been decided. Each conflict carries both sides of the edge --
// the deciding package at its chosen version and the dependency term it
// asserted -- so backjump can unwind whichever decision is actually the
// deepest one implicated, not just the constrained package.
func (s *solver) propagateOnce() (conflict *Incompatibility, changed bool, err error) {
	for _, pkg := range s.orderedNames() {
		v, ok := s.ps.decided[pkg]
		if !ok {
			continue
		}
		if ev, ok := s.expanded[pkg]; ok && ev == v {
			continue
		}

		deps, err := s.provider.Dependencies(s.ctx, pkg, v)
		if err != nil {
			return nil, false, errors.Wrapf(err, "fetching dependencies of %s@%s", pkg, v)
		}

		level := s.ps.levelOf(pkg)
		decidingTerm := Term{Pkg: pkg, Range: version.Exact(v)}
		for _, d := range deps {
			s.addName(d.Pkg)
			r := s.ps.derive(d.Pkg, d.Range, level)
			changed = true

			depTerm := Term{Pkg: d.Pkg, Range: d.Range}
			conflicted := r.IsEmpty()
			if !conflicted {
				// A decided package must stay inside every term derived
				// after its decision, not just keep a non-empty range.
				if dv, decided := s.ps.decided[d.Pkg]; decided && !d.Range.Contains(dv) {
					conflicted = true
				}
			}
			if conflicted {
				cause := DependencyCause{From: pkg, FromVersion: v, Dep: depTerm}
				return newIncompatibility(cause, decidingTerm, depTerm), changed, nil
			}
		}
		s.expanded[pkg] = v
	}
	return nil, changed, nil
}

// decidePackage commits pkg to a candidate version chosen per s.strategy,
// or returns a NoVersionsCause conflict if none remain.
func (s *solver) decidePackage(pkg registry.PackageID) (*Incompatibility, error) {
	candidates, err := s.provider.Versions(s.ctx, pkg)
	if err != nil {
		return newIncompatibility(NoVersionsCause{Pkg: pkg, Range: s.ps.rangeFor(pkg)}, Term{Pkg: pkg, Range: s.ps.rangeFor(pkg)}), nil
	}

	r := s.ps.rangeFor(pkg)
	excl := s.excluded[pkg]

	pick := func() (version.Version, bool) {
		if s.strategy == Conservative {
			if locked, ok := s.locked[pkg]; ok && r.Contains(locked) && !versionExcluded(excl, locked) {
				return locked, true
			}
		}
		for _, v := range candidates {
			if r.Contains(v) && !versionExcluded(excl, v) {
				return v, true
			}
		}
		return version.Version{}, false
	}

	v, ok := pick()
	if !ok {
		return newIncompatibility(NoVersionsCause{Pkg: pkg, Range: r}, Term{Pkg: pkg, Range: r}), nil
	}

	s.ps.decide(pkg, v)
	return nil, nil
}

// pickNextUndecided chooses the undecided package with the fewest
// candidate versions still satisfying its accumulated range,
// breaking ties by the deterministic radix-walk order so the same input
// always explores in the same sequence. Deciding the most constrained
// package first fails fast on it instead of burning propagation cycles on
// easier packages in between. A package whose version list can't be
// fetched is left at the back of the ranking; decidePackage reports the
// real error once it's actually chosen.
func (s *solver) pickNextUndecided() (registry.PackageID, bool) {
	candidates := s.ps.undecidedPackages(s.orderedNames())
	if len(candidates) == 0 {
		return registry.PackageID{}, false
	}

	best := candidates[0]
	bestCount := -1
	for _, pkg := range candidates {
		count, err := s.remainingCandidateCount(pkg)
		if err != nil {
			continue
		}
		if bestCount == -1 || count < bestCount {
			best = pkg
			bestCount = count
		}
	}
	return best, true
}

// remainingCandidateCount reports how many of pkg's versions still satisfy
// its accumulated range and haven't already been excluded by a prior
// conflict.
func (s *solver) remainingCandidateCount(pkg registry.PackageID) (int, error) {
	versions, err := s.provider.Versions(s.ctx, pkg)
	if err != nil {
		return 0, err
	}
	r := s.ps.rangeFor(pkg)
	excl := s.excluded[pkg]
	n := 0
	for _, v := range versions {
		if r.Contains(v) && !versionExcluded(excl, v) {
			n++
		}
	}
	return n, nil
}

func versionExcluded(excl []version.Version, v version.Version) bool {
	for _, x := range excl {
		if x == v {
			return true
		}
	}
	return false
}

// backjump unwinds the decision responsible for conflict, excludes the
// version it chose, and rewinds the partial solution to just before that
// decision so the next propagate/decide cycle tries the next candidate.
// Returns false if there is no decision left to unwind (the conflict
// implicates the root itself).
func (s *solver) backjump(conflict *Incompatibility) bool {
	target := -1
	var targetPkg registry.PackageID

	for _, t := range conflict.Terms {
		for _, d := range s.ps.decisions {
			if d.pkg == t.Pkg && d.level > target {
				target = d.level
				targetPkg = d.pkg
			}
		}
	}
	if target == -1 {
		// No term in the conflict names a decided package directly; back
		// up the single most recent decision instead.
		if len(s.ps.decisions) == 0 {
			return false
		}
		last := s.ps.decisions[len(s.ps.decisions)-1]
		target = last.level
		targetPkg = last.pkg
	}

	failedVersion := s.ps.decided[targetPkg]
	s.excluded[targetPkg] = append(s.excluded[targetPkg], failedVersion)
	unwound := s.ps.backtrackTo(target)
	for _, pkg := range unwound {
		// Every one of these packages had its decision (and the
		// dependency terms that decision derived) discarded by
		// backtrackTo; forget that we've already expanded it so
		// propagateOnce re-derives those terms even if it's re-decided
		// to the exact same version.
		delete(s.expanded, pkg)
	}
	s.history = append(s.history, conflict)
	return true
}

// finalConflict folds every conflict seen during the run (each one ruled
// out a candidate, which is itself evidence toward the final verdict)
// into a single ConflictCause chain, so Explain has a real derivation
// history to walk instead of just the last, most proximate cause.
func (s *solver) finalConflict(last *Incompatibility) *Incompatibility {
	if len(s.history) == 0 {
		return last
	}
	chain := s.history[0]
	for _, next := range s.history[1:] {
		chain = newIncompatibility(ConflictCause{Left: chain, Right: next}, next.Terms...)
	}
	return newIncompatibility(ConflictCause{Left: chain, Right: last}, last.Terms...)
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolve implements the PubGrub-style version solver: it turns
// a root dependency list plus a registry.Provider into a single concrete
// version per package, or a conflict explanation when no such solution
// exists.
package resolve

import (
	"fmt"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// Term is one atomic constraint of an Incompatibility: "pkg's selected
// version must fall in Range".
type Term struct {
	Pkg   registry.PackageID
	Range version.Range
}

func (t Term) String() string {
	return fmt.Sprintf("%s %s", t.Pkg, t.Range)
}

// Cause records why an Incompatibility exists, so a conflict can later be
// explained in terms a user recognizes rather than as raw clause algebra.
type Cause interface {
	isCause()
}

// RootCause marks the incompatibility asserting the root package's own
// identity and version.
type RootCause struct{}

// DependencyCause marks an incompatibility derived directly from a
// package version's declared dependency edge.
type DependencyCause struct {
	From        registry.PackageID
	FromVersion version.Version
	Dep         Term
}

// NoVersionsCause marks an incompatibility asserting that no version of a
// package exists to satisfy a term (the provider returned nothing, or
// nothing in range).
type NoVersionsCause struct {
	Pkg   registry.PackageID
	Range version.Range
}

// ConflictCause marks an incompatibility derived by resolving two others
// against each other during conflict-driven backtracking.
type ConflictCause struct {
	Left, Right *Incompatibility
}

func (RootCause) isCause()       {}
func (DependencyCause) isCause() {}
func (NoVersionsCause) isCause() {}
func (ConflictCause) isCause()   {}

// Incompatibility is a set of terms that cannot all simultaneously hold
// in any valid solution. An empty-Terms incompatibility means "no
// solution exists at all".
type Incompatibility struct {
	Terms []Term
	Cause Cause
}

func newIncompatibility(cause Cause, terms ...Term) *Incompatibility {
	return &Incompatibility{Terms: terms, Cause: cause}
}

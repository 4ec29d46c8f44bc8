// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolve

import (
	"strings"
	"testing"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

func mustRange(t *testing.T, s string) version.Range {
	t.Helper()
	r, err := version.ParseRange(s)
	if err != nil {
		t.Fatalf("ParseRange(%q): %v", s, err)
	}
	return r
}

func TestExplainRootCause(t *testing.T) {
	core := registry.PackageID{Author: "elm", Name: "core"}
	term := Term{Pkg: core, Range: mustRange(t, "3.0.0 <= v < 4.0.0")}
	ic := newIncompatibility(RootCause{}, term)

	out := Explain(ic)
	if !strings.Contains(out, "your project directly requires") {
		t.Fatalf("expected root-cause line, got:\n%s", out)
	}
	if !strings.Contains(out, "elm/core") {
		t.Fatalf("expected package name in output, got:\n%s", out)
	}
}

func TestExplainNoVersionsCause(t *testing.T) {
	json := registry.PackageID{Author: "elm", Name: "json"}
	r := mustRange(t, "2.0.0 <= v < 3.0.0")
	ic := newIncompatibility(NoVersionsCause{Pkg: json, Range: r}, Term{Pkg: json, Range: r})

	out := Explain(ic)
	if !strings.Contains(out, "no version of elm/json matches") {
		t.Fatalf("expected no-versions line, got:\n%s", out)
	}

	pkg, ok := SmallestBlockingPackage(ic)
	if !ok || pkg != json {
		t.Fatalf("expected elm/json as blocking package, got %v (ok=%v)", pkg, ok)
	}
}

func TestExplainDependencyCause(t *testing.T) {
	json := registry.PackageID{Author: "elm", Name: "json"}
	core := registry.PackageID{Author: "elm", Name: "core"}
	depTerm := Term{Pkg: core, Range: mustRange(t, "2.0.0 <= v < 3.0.0")}
	ic := newIncompatibility(DependencyCause{From: json, FromVersion: version.Version{Major: 1}, Dep: depTerm}, depTerm)

	out := Explain(ic)
	if !strings.Contains(out, "elm/json@1.0.0 requires") {
		t.Fatalf("expected dependency-cause line, got:\n%s", out)
	}
}

// TestExplainConflictChainDedupes builds a ConflictCause tree that shares a
// leaf on both sides, mirroring how finalConflict folds repeated history
// entries, and checks the shared leaf is only rendered once.
func TestExplainConflictChainDedupes(t *testing.T) {
	json := registry.PackageID{Author: "elm", Name: "json"}
	core := registry.PackageID{Author: "elm", Name: "core"}

	sharedRange := mustRange(t, "2.0.0 <= v < 3.0.0")
	shared := newIncompatibility(NoVersionsCause{Pkg: core, Range: sharedRange}, Term{Pkg: core, Range: sharedRange})

	jsonRange := mustRange(t, "1.0.0 <= v < 2.0.0")
	jsonLeaf := newIncompatibility(RootCause{}, Term{Pkg: json, Range: jsonRange})

	left := newIncompatibility(ConflictCause{Left: jsonLeaf, Right: shared}, Term{Pkg: core, Range: sharedRange})
	top := newIncompatibility(ConflictCause{Left: left, Right: shared}, Term{Pkg: core, Range: sharedRange})

	out := Explain(top)
	count := strings.Count(out, "no version of elm/core matches")
	if count != 1 {
		t.Fatalf("expected the shared NoVersionsCause line to render exactly once, got %d in:\n%s", count, out)
	}
	if !strings.Contains(out, "because") {
		t.Fatalf("expected a combining line for the conflict chain, got:\n%s", out)
	}

	pkg, ok := SmallestBlockingPackage(top)
	if !ok || pkg != core {
		t.Fatalf("expected elm/core as blocking package, got %v (ok=%v)", pkg, ok)
	}
}

func TestSmallestBlockingPackagePrefersNoVersionsOverDependency(t *testing.T) {
	a := registry.PackageID{Author: "acme", Name: "a"}
	b := registry.PackageID{Author: "acme", Name: "b"}

	depTerm := Term{Pkg: b, Range: version.Any()}
	depLeaf := newIncompatibility(DependencyCause{From: a, FromVersion: version.Version{Major: 1}, Dep: depTerm}, depTerm)

	noVersionsRange := mustRange(t, "1.0.0 <= v < 2.0.0")
	noVersionsLeaf := newIncompatibility(NoVersionsCause{Pkg: a, Range: noVersionsRange}, Term{Pkg: a, Range: noVersionsRange})

	top := newIncompatibility(ConflictCause{Left: depLeaf, Right: noVersionsLeaf}, depTerm)

	pkg, ok := SmallestBlockingPackage(top)
	if !ok || pkg != a {
		t.Fatalf("expected the NoVersionsCause package to win over the DependencyCause one, got %v (ok=%v)", pkg, ok)
	}
}

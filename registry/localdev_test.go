// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"testing"

	"github.com/dsimunic/elm-wrap/version"
)

func TestAddLocalDevIsAppendOnlyAndIdempotent(t *testing.T) {
	home := t.TempDir()

	r, err := version.ParseRange("1.0.0 <= v < 2.0.0")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	dep := []Dependency{{Pkg: PackageID{Author: "elm", Name: "core"}, Range: r}}
	if err := AddLocalDev(home, "me", "widget", v(1, 0, 0), "BSD-3-Clause", dep); err != nil {
		t.Fatalf("AddLocalDev: %v", err)
	}
	// Adding the same version again must be a no-op, not a duplicate entry.
	if err := AddLocalDev(home, "me", "widget", v(1, 0, 0), "BSD-3-Clause", dep); err != nil {
		t.Fatalf("AddLocalDev (second call): %v", err)
	}

	idx, err := LoadLocalDev(home)
	if err != nil {
		t.Fatalf("LoadLocalDev: %v", err)
	}
	vs, ok := idx.Find("me", "widget")
	if !ok {
		t.Fatal("expected me/widget in overlay")
	}
	if len(vs) != 1 {
		t.Fatalf("expected exactly one version after duplicate add, got %d", len(vs))
	}
}

func TestMergeLocalDevDoesNotOverrideRealEntries(t *testing.T) {
	real := NewV2()
	real.add("me", "widget", &V2Version{Version: v(1, 0, 0), Status: Valid, License: "real"})

	overlay := NewV2()
	overlay.add("me", "widget", &V2Version{Version: v(1, 0, 0), Status: Valid, License: "overlay-should-not-win"})
	overlay.add("me", "widget", &V2Version{Version: v(1, 1, 0), Status: Valid, License: "overlay-only"})

	MergeLocalDev(real, overlay)

	got, _ := real.FindVersion("me", "widget", v(1, 0, 0))
	if got.License != "real" {
		t.Fatalf("expected real entry to win, got license %q", got.License)
	}

	added, ok := real.FindVersion("me", "widget", v(1, 1, 0))
	if !ok || added.License != "overlay-only" {
		t.Fatalf("expected overlay-only version to be merged in, got %+v ok=%v", added, ok)
	}
}

func TestMergeLocalDevV1(t *testing.T) {
	r := NewV1()
	r.AddVersion("elm", "core", v(1, 0, 0))

	overlay := NewV2()
	overlay.add("me", "widget", &V2Version{Version: v(1, 0, 0), Status: Valid})

	MergeLocalDevV1(r, overlay)

	if _, ok := r.Find("me", "widget"); !ok {
		t.Fatal("expected me/widget to be merged into the V1 registry")
	}
}

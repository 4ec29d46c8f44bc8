// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import "testing"

func TestParseRange(t *testing.T) {
	r, err := ParseRange("any")
	if err != nil || !r.IsAny() {
		t.Fatalf("ParseRange(any) = %v, %v", r, err)
	}

	r, err = ParseRange("1.0.0 <= v < 2.0.0")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if !r.Contains(MustParse("1.5.0")) {
		t.Error("expected 1.5.0 in range")
	}
	if r.Contains(MustParse("2.0.0")) {
		t.Error("upper bound must be exclusive")
	}
	if r.Contains(MustParse("0.9.9")) {
		t.Error("lower bound is inclusive, not below it")
	}

	if _, err := ParseRange("1.0.0"); err == nil {
		t.Error("bare version must be rejected by ParseRange")
	}
	if _, err := ParseRange("garbage"); err == nil {
		t.Error("garbage range must be rejected")
	}
}

func TestParsePin(t *testing.T) {
	r, err := ParsePin("1.0.0")
	if err != nil {
		t.Fatalf("ParsePin: %v", err)
	}
	if !r.Contains(MustParse("1.0.0")) {
		t.Error("pin must contain the pinned version")
	}
	if r.Contains(MustParse("1.0.1")) {
		t.Error("pin must not contain any other version")
	}
}

func TestRangeStringRoundTrip(t *testing.T) {
	for _, s := range []string{"any", "1.0.0 <= v < 2.0.0", "0.19.0 <= v < 0.19.1"} {
		r, err := ParseRange(s)
		if err != nil {
			t.Fatalf("ParseRange(%q): %v", s, err)
		}
		if got := r.String(); got != s {
			t.Errorf("String() = %q, want %q", got, s)
		}
		r2, err := ParseRange(r.String())
		if err != nil {
			t.Fatalf("re-parse: %v", err)
		}
		if r2.String() != r.String() {
			t.Errorf("round trip mismatch: %q != %q", r2.String(), r.String())
		}
	}
}

func TestUnionMergesAdjacentAndOverlapping(t *testing.T) {
	a, _ := ParseRange("1.0.0 <= v < 2.0.0")
	b, _ := ParseRange("2.0.0 <= v < 3.0.0")
	u := Union(a, b)
	if got, want := u.String(), "1.0.0 <= v < 3.0.0"; got != want {
		t.Errorf("adjacent union = %q, want %q", got, want)
	}

	c, _ := ParseRange("1.5.0 <= v < 2.5.0")
	u2 := Union(a, c)
	if got, want := u2.String(), "1.0.0 <= v < 2.5.0"; got != want {
		t.Errorf("overlapping union = %q, want %q", got, want)
	}
}

func TestUnionDisjoint(t *testing.T) {
	a, _ := ParseRange("1.0.0 <= v < 2.0.0")
	b, _ := ParseRange("3.0.0 <= v < 4.0.0")
	u := Union(a, b)
	if u.Contains(MustParse("2.5.0")) {
		t.Error("gap between disjoint intervals must not be contained")
	}
	if !u.Contains(MustParse("1.5.0")) || !u.Contains(MustParse("3.5.0")) {
		t.Error("both disjoint intervals must be contained")
	}
}

func TestIntersect(t *testing.T) {
	a, _ := ParseRange("1.0.0 <= v < 3.0.0")
	b, _ := ParseRange("2.0.0 <= v < 4.0.0")
	i := Intersect(a, b)
	if got, want := i.String(), "2.0.0 <= v < 3.0.0"; got != want {
		t.Errorf("Intersect = %q, want %q", got, want)
	}

	c, _ := ParseRange("5.0.0 <= v < 6.0.0")
	if !Intersect(a, c).IsEmpty() {
		t.Error("disjoint ranges must intersect to empty")
	}
}

func TestComplement(t *testing.T) {
	r, _ := ParseRange("1.0.0 <= v < 2.0.0")
	comp := Complement(r)
	if comp.Contains(MustParse("1.5.0")) {
		t.Error("complement must not contain what r contains")
	}
	if !comp.Contains(MustParse("0.5.0")) || !comp.Contains(MustParse("5.0.0")) {
		t.Error("complement must contain everything outside r")
	}
	if !Complement(Complement(r)).Contains(MustParse("1.5.0")) {
		t.Error("double complement must restore containment")
	}

	if !Complement(Empty()).IsAny() {
		t.Error("complement of empty must be any")
	}
	if !Complement(Any()).IsEmpty() {
		t.Error("complement of any must be empty")
	}
}

func TestEmptyRangeContainsNothing(t *testing.T) {
	if Empty().Contains(MustParse("0.0.0")) {
		t.Error("empty range must contain nothing")
	}
	if !Empty().IsEmpty() {
		t.Error("Empty() must report IsEmpty")
	}
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// interval is a half-open [lo, hi) span of versions. hi == nil means
// unbounded above (used only by the universe range).
type interval struct {
	lo Version
	hi *Version
}

// Range is a normalized set of version intervals: sorted by lo, no two
// intervals overlap or touch. The zero Range is the
// empty range.
type Range struct {
	ivs []interval
}

// Any returns the universe range ("any" in the source grammar).
func Any() Range {
	return Range{ivs: []interval{{lo: Version{}}}}
}

// Empty returns the empty range.
func Empty() Range {
	return Range{}
}

// Exact returns the range containing only v, expressed as the half-open
// pin interval [v, v+patch) the V1 bare-version manifest form uses.
func Exact(v Version) Range {
	hi := v.NextPatch()
	return Range{ivs: []interval{{lo: v, hi: &hi}}}
}

// Closed returns the half-open range [lo, hi).
func Closed(lo, hi Version) Range {
	if !lo.Less(hi) {
		return Empty()
	}
	h := hi
	return Range{ivs: []interval{{lo: lo, hi: &h}}}
}

var rangeGrammar = regexp.MustCompile(`^([0-9]+\.[0-9]+\.[0-9]+) <= v < ([0-9]+\.[0-9]+\.[0-9]+)$`)

// ParseRange parses the canonical range grammar: "any", or exactly
// "<lo> <= v < <hi>". Unknown syntaxes -- including a bare
// version, which is only legal in a V1 application manifest's direct
// dependency pin via ParsePin -- are rejected.
func ParseRange(s string) (Range, error) {
	if s == "any" {
		return Any(), nil
	}

	m := rangeGrammar.FindStringSubmatch(s)
	if m == nil {
		return Range{}, errors.Errorf("invalid range %q", s)
	}

	lo, err := Parse(m[1])
	if err != nil {
		return Range{}, err
	}
	hi, err := Parse(m[2])
	if err != nil {
		return Range{}, err
	}
	return Closed(lo, hi), nil
}

// ParsePin returns the exact-equality pin range for a bare version
// string. A bare "X.Y.Z" is only legal in an application manifest's
// dependency maps; package manifests must reject it outright and go
// through ParseRange instead.
func ParsePin(s string) (Range, error) {
	v, err := Parse(s)
	if err != nil {
		return Range{}, err
	}
	return Exact(v), nil
}

// String renders the canonical grammar. ParseRange(r.String()) == r for
// every normalized single-interval r; a union of more
// than one interval renders as "||"-joined intervals, which ParseRange does
// not accept back -- such ranges only ever arise from in-memory algebra
// (Union/Intersect/Complement) during solving, never from a manifest file.
func (r Range) String() string {
	if len(r.ivs) == 0 {
		return "none"
	}
	parts := make([]string, len(r.ivs))
	for i, iv := range r.ivs {
		if iv.hi == nil {
			parts[i] = "any"
		} else {
			parts[i] = fmt.Sprintf("%s <= v < %s", iv.lo, *iv.hi)
		}
	}
	return strings.Join(parts, " || ")
}

// IsEmpty reports whether r has zero intervals.
func (r Range) IsEmpty() bool { return len(r.ivs) == 0 }

// IsAny reports whether r is exactly the universe.
func (r Range) IsAny() bool {
	return len(r.ivs) == 1 && r.ivs[0].lo == (Version{}) && r.ivs[0].hi == nil
}

// Contains reports whether v falls within one of r's intervals.
func (r Range) Contains(v Version) bool {
	for _, iv := range r.ivs {
		if v.Less(iv.lo) {
			continue
		}
		if iv.hi == nil || v.Less(*iv.hi) {
			return true
		}
	}
	return false
}

// normalize sorts and merges a raw (possibly overlapping/adjacent,
// possibly unsorted) interval list into the canonical form.
func normalize(ivs []interval) Range {
	if len(ivs) == 0 {
		return Empty()
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].lo.Less(ivs[j].lo) })

	out := make([]interval, 0, len(ivs))
	cur := ivs[0]
	for _, next := range ivs[1:] {
		touches := cur.hi == nil || next.lo.Compare(*cur.hi) <= 0
		if !touches {
			out = append(out, cur)
			cur = next
			continue
		}
		// next starts at-or-before cur's end: merge, keeping the further hi.
		switch {
		case cur.hi == nil:
			// cur already unbounded; nothing to extend.
		case next.hi == nil:
			cur.hi = nil
		case cur.hi.Less(*next.hi):
			cur.hi = next.hi
		}
	}
	out = append(out, cur)
	return Range{ivs: out}
}

// Union returns the set union of a and b.
func Union(a, b Range) Range {
	merged := make([]interval, 0, len(a.ivs)+len(b.ivs))
	merged = append(merged, a.ivs...)
	merged = append(merged, b.ivs...)
	return normalize(merged)
}

// Intersect returns the set intersection of a and b.
func Intersect(a, b Range) Range {
	var out []interval
	for _, x := range a.ivs {
		for _, y := range b.ivs {
			lo := x.lo
			if y.lo.Compare(lo) > 0 {
				lo = y.lo
			}

			var hi *Version
			switch {
			case x.hi == nil && y.hi == nil:
				hi = nil
			case x.hi == nil:
				h := *y.hi
				hi = &h
			case y.hi == nil:
				h := *x.hi
				hi = &h
			default:
				h := *x.hi
				if y.hi.Less(h) {
					h = *y.hi
				}
				hi = &h
			}

			if hi != nil && !lo.Less(*hi) {
				continue // empty intersection of this pair
			}
			out = append(out, interval{lo: lo, hi: hi})
		}
	}
	return normalize(out)
}

// Complement returns the set complement of r within the universe of all
// versions >= 0.0.0.
func Complement(r Range) Range {
	if r.IsEmpty() {
		return Any()
	}
	if r.IsAny() {
		return Empty()
	}

	var out []interval
	cursor := Version{} // 0.0.0
	haveCursor := true
	for _, iv := range r.ivs {
		if haveCursor && cursor.Less(iv.lo) {
			lo := cursor
			hi := iv.lo
			out = append(out, interval{lo: lo, hi: &hi})
		}
		if iv.hi == nil {
			haveCursor = false
			break
		}
		cursor = *iv.hi
		haveCursor = true
	}
	if haveCursor {
		out = append(out, interval{lo: cursor, hi: nil})
	}
	return normalize(out)
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version implements the package manager's version and range
// algebra: strict major.minor.patch triples and the half-open interval
// ranges built on top of them.
package version

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// Version is a three-component version triple. It is a value type and is
// safe to use as a map key.
type Version struct {
	Major, Minor, Patch uint16
}

// Dev is the sentinel version identifying a locally injected development
// build. The zero Version is otherwise a legitimate,
// if unusual, published version, so callers that need to distinguish a dev
// build from a real 0.0.0 must carry that out of band (e.g. a bool on the
// registry entry or cache record) and use IsDev only as a best-effort check.
var Dev = Version{0, 0, 0}

// IsDev reports whether v is the dev sentinel triple.
func IsDev(v Version) bool { return v == Dev }

var strict = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// Parse parses a strict "major.minor.patch" triple. Anything else --
// leading "v", prerelease/build metadata suffixes, missing components --
// is rejected.
func Parse(s string) (Version, error) {
	if !strict.MatchString(s) {
		return Version{}, errors.Errorf("invalid version %q: want exactly major.minor.patch", s)
	}

	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, errors.Errorf("invalid version %q: prerelease/build metadata not allowed", s)
	}

	maj, min, pat := sv.Major(), sv.Minor(), sv.Patch()
	if maj > 0xffff || min > 0xffff || pat > 0xffff {
		return Version{}, errors.Errorf("invalid version %q: component out of range", s)
	}

	return Version{Major: uint16(maj), Minor: uint16(min), Patch: uint16(pat)}, nil
}

// MustParse is Parse but panics on error; intended for literals in tests and
// init-time tables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the canonical "major.minor.patch" form. Parse(v.String())
// always returns v unchanged.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// o, using total lexicographic order over (major, minor, patch). The
// comparison is delegated to Masterminds/semver so that the total order
// this package exposes stays consistent with the wider Go semver
// ecosystem's notion of version precedence.
func (v Version) Compare(o Version) int {
	sv, _ := semver.NewVersion(v.String())
	so, _ := semver.NewVersion(o.String())
	return sv.Compare(so)
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// NextPatch returns the successor patch version, used to build the
// exact-equality pin range `[v, v+patch)` for V1 application bare-version
// pins.
func (v Version) NextPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// NextMajor returns the version with major+1, minor and patch reset to
// zero -- the conventional upper bound used when the plan applier renders
// a package-manifest range constraint.
func (v Version) NextMajor() Version {
	return Version{Major: v.Major + 1}
}

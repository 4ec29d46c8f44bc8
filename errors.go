// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"fmt"
	"strings"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// This file rounds out the error taxonomy with the members that have no
// natural owner further down the stack. ChecksumMismatch,
// CorruptRegistry, and OfflineRequired are already concrete types in
// cache.IntegrityError, registry.CorruptRegistryError, and
// registry.OfflineRequiredError respectively, and NoSolution is
// resolve.NoSolutionError -- callers should type-switch on those
// directly rather than re-wrapping them here. A corrupt cache entry has
// no error type: cache.Fetcher.FetchIfNeeded removes it and downloads it
// again.

// NotFoundError reports that a named package does not exist in the
// registry at all.
type NotFoundError struct {
	Pkg registry.PackageID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %s was not found in the registry", e.Pkg)
}

// VersionNotAvailableError reports that a package exists but not at the
// requested version. Available carries the versions that do exist so the
// message can enumerate them.
type VersionNotAvailableError struct {
	Pkg       registry.PackageID
	Version   string
	Available []version.Version
}

func (e *VersionNotAvailableError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("%s has no version %s", e.Pkg, e.Version)
	}
	parts := make([]string, len(e.Available))
	for i, v := range e.Available {
		parts[i] = v.String()
	}
	return fmt.Sprintf("%s has no version %s; available: %s", e.Pkg, e.Version, strings.Join(parts, ", "))
}

// InvalidPackageNameError reports a malformed "author/name" argument.
type InvalidPackageNameError struct {
	Given string
	Cause error
}

func (e *InvalidPackageNameError) Error() string {
	return fmt.Sprintf("%q is not a valid package name: %v", e.Given, e.Cause)
}

func (e *InvalidPackageNameError) Unwrap() error { return e.Cause }

// ManifestWriteError reports that the resolved plan could not be
// persisted back to elm.json. It always wraps
// the underlying filesystem error; the manifest on disk is left
// untouched because SafeWriter only renames into place after every
// write succeeds.
type ManifestWriteError struct {
	Path  string
	Cause error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("could not write %s: %v", e.Path, e.Cause)
}

func (e *ManifestWriteError) Unwrap() error { return e.Cause }

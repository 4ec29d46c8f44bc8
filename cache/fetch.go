// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// packageManifestSubset is the part of a package elm.json this package
// actually needs to read: its own identity plus its dependency lists.
type packageManifestSubset struct {
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	License      string            `json:"license"`
	Dependencies map[string]string `json:"dependencies"`
	TestDeps     map[string]string `json:"test-dependencies"`
}

func parsePackageManifest(b []byte) (*packageManifestSubset, []registry.Dependency, error) {
	var m packageManifestSubset
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, nil, errors.Wrap(err, "parsing elm.json")
	}

	deps := make([]registry.Dependency, 0, len(m.Dependencies))
	for an, rng := range m.Dependencies {
		pkg, err := registry.ParsePackageID(an)
		if err != nil {
			return nil, nil, err
		}
		r, err := version.ParseRange(rng)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "dependency %s", an)
		}
		deps = append(deps, registry.Dependency{Pkg: pkg, Range: r})
	}

	return &m, deps, nil
}

// Fetcher downloads package archives from a registry's configured archive
// server into the cache Store. It also implements
// registry.ManifestFetcher, so a V1 provider can ask it for a version's
// dependency list without the registry package importing this one.
type Fetcher struct {
	Store          *Store
	HTTP           registry.HTTPClient
	ArchiveBaseURL string
	// ExpectedSHA1, if non-nil, is consulted after download: archiveURL
	// ->sha1 hex digest. A mismatch is retried once; a second mismatch is
	// a fatal IntegrityError.
	ExpectedSHA1 map[string]string
}

// NewFetcher returns a Fetcher backed by store, downloading archives from
// baseURL via http.
func NewFetcher(store *Store, http registry.HTTPClient, baseURL string) *Fetcher {
	return &Fetcher{Store: store, HTTP: http, ArchiveBaseURL: baseURL}
}

func (f *Fetcher) archiveURL(author, name string, v version.Version) string {
	return fmt.Sprintf("%s/packages/%s/%s/%s/endpoint.zip", strings.TrimRight(f.ArchiveBaseURL, "/"), author, name, v)
}

// fetchArchive places the archive for (author, name, v) at zipPath. When
// the configured base is an http(s) origin the archive is downloaded;
// when it is an on-disk repository the archive is copied straight out of
// its layout, no network involved.
func (f *Fetcher) fetchArchive(ctx context.Context, author, name string, v version.Version, zipPath string) (string, error) {
	if isURL(f.ArchiveBaseURL) {
		u := f.archiveURL(author, name, v)
		if err := f.HTTP.DownloadToFile(ctx, u, zipPath); err != nil {
			return u, errors.Wrapf(err, "downloading %s", u)
		}
		return u, nil
	}

	src := filepath.Join(f.ArchiveBaseURL, "packages", author, name, v.String(), "endpoint.zip")
	if _, err := shutil.Copy(src, zipPath, false); err != nil {
		return src, errors.Wrapf(err, "copying %s", src)
	}
	return src, nil
}

// IntegrityError reports that a downloaded archive's checksum did not
// match the expected value.
type IntegrityError struct {
	URL      string
	Expected string
	Got      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected sha1 %s, got %s", e.URL, e.Expected, e.Got)
}

// FetchIfNeeded ensures (author, name, v) is present and complete in the
// cache, downloading and extracting it if not.
func (f *Fetcher) FetchIfNeeded(ctx context.Context, author, name string, v version.Version) error {
	ok, err := f.Store.IsFullyDownloaded(author, name, v)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// A partially-written entry is treated as absent and replaced.
	if err := f.Store.RemoveBrokenEntry(author, name, v); err != nil {
		return err
	}

	tmpDir, err := ioutil.TempDir("", "elm-wrap-fetch-")
	if err != nil {
		return errors.Wrap(err, "creating temp download directory")
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, "archive.zip")

	// A checksum mismatch gets one retry before it's fatal: a truncated or
	// garbled transfer is far more likely than a genuinely wrong archive.
	var archiveSrc string
	for attempt := 0;; attempt++ {
		src, err := f.fetchArchive(ctx, author, name, v, zipPath)
		if err != nil {
			return err
		}
		archiveSrc = src

		expected, ok := f.ExpectedSHA1[f.archiveURL(author, name, v)]
		if !ok {
			break
		}
		got, err := sha1File(zipPath)
		if err != nil {
			return err
		}
		if got == expected {
			break
		}
		if attempt > 0 {
			return &IntegrityError{URL: archiveSrc, Expected: expected, Got: got}
		}
	}

	extractedDir := filepath.Join(tmpDir, "extracted")
	if err := extractZip(zipPath, extractedDir); err != nil {
		return errors.Wrapf(err, "extracting %s", archiveSrc)
	}

	root, err := findPackageRoot(extractedDir)
	if err != nil {
		return err
	}

	return f.Store.InstallFromDir(root, author, name, v)
}

// FetchManifestDeps implements registry.ManifestFetcher: fetch the
// package version if needed, then read its dependency list out of the
// cached elm.json.
func (f *Fetcher) FetchManifestDeps(ctx context.Context, author, name string, v version.Version) ([]registry.Dependency, error) {
	if err := f.FetchIfNeeded(ctx, author, name, v); err != nil {
		return nil, err
	}
	b, err := ioutil.ReadFile(filepath.Join(f.Store.EntryDir(author, name, v), "elm.json"))
	if err != nil {
		return nil, errors.Wrap(err, "reading cached elm.json")
	}
	_, deps, err := parsePackageManifest(b)
	return deps, err
}

func sha1File(path string) (string, error) {
	fp, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s for integrity check", path)
	}
	defer fp.Close()

	h := sha1.New()
	if _, err := io.Copy(h, fp); err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SideloadResult describes a package pulled in via Sideload: enough to
// both register it in the local-dev overlay (registry.AddLocalDev) and
// report what happened to the user.
type SideloadResult struct {
	ID      registry.PackageID
	Version version.Version
	License string
	Deps    []registry.Dependency
	// Warning is non-empty when pin named a different package than the
	// one actually declared by the sideloaded manifest.
	Warning string
}

// Sideload installs a local directory, local zip file, or http(s) URL as
// a package into the cache; registering it in the local-dev overlay is
// left to the caller (registry.AddLocalDev). If pin names the package the
// caller expects to be installing and the manifest declares a different
// name, the result's Warning is non-empty and the install still proceeds
// against the manifest's own declared name. A non-nil pin also writes a
// PIN file for the installed version.
func (f *Fetcher) Sideload(ctx context.Context, src string, pin *registry.PackageID) (result SideloadResult, err error) {
	srcDir := src
	var cleanup func()

	switch {
	case isURL(src):
		tmpDir, terr := ioutil.TempDir("", "elm-wrap-sideload-")
		if terr != nil {
			return result, errors.Wrap(terr, "creating temp sideload directory")
		}
		cleanup = func() { os.RemoveAll(tmpDir) }
		zipPath := filepath.Join(tmpDir, "sideload.zip")
		if err := f.HTTP.DownloadToFile(ctx, src, zipPath); err != nil {
			cleanup()
			return result, errors.Wrapf(err, "downloading %s", src)
		}
		extractedDir := filepath.Join(tmpDir, "extracted")
		if err := extractZip(zipPath, extractedDir); err != nil {
			cleanup()
			return result, err
		}
		root, err := findPackageRoot(extractedDir)
		if err != nil {
			cleanup()
			return result, err
		}
		srcDir = root

	case strings.HasSuffix(src, ".zip"):
		tmpDir, terr := ioutil.TempDir("", "elm-wrap-sideload-")
		if terr != nil {
			return result, errors.Wrap(terr, "creating temp sideload directory")
		}
		cleanup = func() { os.RemoveAll(tmpDir) }
		if err := extractZip(src, tmpDir); err != nil {
			cleanup()
			return result, err
		}
		root, err := findPackageRoot(tmpDir)
		if err != nil {
			cleanup()
			return result, err
		}
		srcDir = root

	default:
		cleanup = func() {}
	}
	defer cleanup()

	b, err := ioutil.ReadFile(filepath.Join(srcDir, "elm.json"))
	if err != nil {
		return result, errors.Wrap(err, "reading elm.json")
	}
	m, deps, err := parsePackageManifest(b)
	if err != nil {
		return result, err
	}

	id, err := registry.ParsePackageID(m.Name)
	if err != nil {
		return result, errors.Wrapf(err, "package declares invalid name %q", m.Name)
	}
	v, err := version.Parse(m.Version)
	if err != nil {
		return result, errors.Wrapf(err, "package declares invalid version %q", m.Version)
	}

	result = SideloadResult{ID: id, Version: v, License: m.License, Deps: deps}
	if pin != nil && *pin != id {
		result.Warning = fmt.Sprintf("sideloaded package declares %s but was pinned as %s; installing as %s", id, *pin, id)
	}

	if err := f.Store.InstallFromDir(srcDir, id.Author, id.Name, v); err != nil {
		return result, err
	}

	// A pinned sideload also records which version the user meant to stay
	// on, as a PIN file next to the version directories.
	if pin != nil {
		if err := f.Store.WritePin(id.Author, id.Name, v); err != nil {
			return result, err
		}
	}

	return result, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsimunic/elm-wrap/registry"
)

type fakeDownloadHTTP struct {
	archives map[string]string // url -> manifest JSON to bake into a fresh archive
}

func (f *fakeDownloadHTTP) GetBytes(ctx context.Context, url string) ([]byte, error) { return nil, nil }
func (f *fakeDownloadHTTP) GetBytesIfNoneMatch(ctx context.Context, url, etag string) ([]byte, string, bool, error) {
	return nil, "", false, nil
}
func (f *fakeDownloadHTTP) HeadETag(ctx context.Context, url, etag string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeDownloadHTTP) DownloadToFile(ctx context.Context, url, destPath string) error {
	return writeArchiveForTest(destPath, f.archives[url])
}

func writeArchiveForTest(destPath, manifestJSON string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("elm-pkg-1.0.0/elm.json")
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(manifestJSON)); err != nil {
		return err
	}
	w2, err := zw.Create("elm-pkg-1.0.0/src/Main.elm")
	if err != nil {
		return err
	}
	if _, err := w2.Write([]byte("module Main exposing (..)")); err != nil {
		return err
	}
	return zw.Close()
}

const samplePackageManifest = `{
	"type": "package",
	"name": "elm/json",
	"version": "1.1.0",
	"license": "BSD-3-Clause",
	"dependencies": {
		"elm/core": "1.0.0 <= v < 2.0.0"
	}
}`

func TestFetchIfNeededDownloadsAndInstalls(t *testing.T) {
	store := NewStore(t.TempDir())
	http := &fakeDownloadHTTP{archives: map[string]string{}}
	fetcher := NewFetcher(store, http, "https://example.test")
	http.archives[fetcher.archiveURL("elm", "json", testVersion())] = samplePackageManifest

	if err := fetcher.FetchIfNeeded(context.Background(), "elm", "json", testVersion()); err != nil {
		t.Fatalf("FetchIfNeeded: %v", err)
	}

	ok, err := store.IsFullyDownloaded("elm", "json", testVersion())
	if err != nil {
		t.Fatalf("IsFullyDownloaded: %v", err)
	}
	if !ok {
		t.Fatal("expected package to be fully downloaded after fetch")
	}

	// A second call must be a no-op against an already-populated cache:
	// wiping the fake server's archive map must not break it.
	http.archives = map[string]string{}
	if err := fetcher.FetchIfNeeded(context.Background(), "elm", "json", testVersion()); err != nil {
		t.Fatalf("FetchIfNeeded (cached): %v", err)
	}
}

func TestFetchManifestDeps(t *testing.T) {
	store := NewStore(t.TempDir())
	http := &fakeDownloadHTTP{archives: map[string]string{}}
	fetcher := NewFetcher(store, http, "https://example.test")
	http.archives[fetcher.archiveURL("elm", "json", testVersion())] = samplePackageManifest

	deps, err := fetcher.FetchManifestDeps(context.Background(), "elm", "json", testVersion())
	if err != nil {
		t.Fatalf("FetchManifestDeps: %v", err)
	}
	if len(deps) != 1 || deps[0].Pkg.String() != "elm/core" {
		t.Fatalf("unexpected deps: %+v", deps)
	}
}

func TestFetchIntegrityMismatch(t *testing.T) {
	store := NewStore(t.TempDir())
	http := &fakeDownloadHTTP{archives: map[string]string{}}
	fetcher := NewFetcher(store, http, "https://example.test")
	u := fetcher.archiveURL("elm", "json", testVersion())
	http.archives[u] = samplePackageManifest
	fetcher.ExpectedSHA1 = map[string]string{u: "0000000000000000000000000000000000000"}

	err := fetcher.FetchIfNeeded(context.Background(), "elm", "json", testVersion())
	if err == nil {
		t.Fatal("expected an integrity error")
	}
	if _, ok := err.(*IntegrityError); !ok {
		t.Fatalf("expected *IntegrityError, got %T: %v", err, err)
	}
}

func TestSideloadLocalDirectory(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "elm.json"), []byte(samplePackageManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "src", "Main.elm"), []byte("module Main exposing (..)"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(t.TempDir())
	fetcher := NewFetcher(store, &fakeDownloadHTTP{}, "https://example.test")

	result, err := fetcher.Sideload(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatalf("Sideload: %v", err)
	}
	if result.ID.String() != "elm/json" {
		t.Fatalf("expected elm/json, got %s", result.ID)
	}
	if result.Version.String() != "1.1.0" {
		t.Fatalf("unexpected version %s", result.Version)
	}
	if result.Warning != "" {
		t.Fatalf("expected no warning, got %q", result.Warning)
	}
}

func TestSideloadNameMismatchWarns(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "elm.json"), []byte(samplePackageManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := NewStore(t.TempDir())
	fetcher := NewFetcher(store, &fakeDownloadHTTP{}, "https://example.test")

	pinned := registry.PackageID{Author: "someone", Name: "else"}
	result, err := fetcher.Sideload(context.Background(), srcDir, &pinned)
	if err != nil {
		t.Fatalf("Sideload: %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected a name-mismatch warning")
	}

	// The package installs under its own declared name, not the pin's.
	if result.ID.String() != "elm/json" {
		t.Fatalf("expected install under the declared name, got %s", result.ID)
	}
}

func TestSideloadPinWritesPinFile(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "elm.json"), []byte(samplePackageManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := NewStore(t.TempDir())
	fetcher := NewFetcher(store, &fakeDownloadHTTP{}, "https://example.test")

	pinned := registry.PackageID{Author: "elm", Name: "json"}
	if _, err := fetcher.Sideload(context.Background(), srcDir, &pinned); err != nil {
		t.Fatalf("Sideload: %v", err)
	}

	pinPath := filepath.Join(store.Home, "0.19.1", "packages", "elm", "json", "PIN")
	b, err := os.ReadFile(pinPath)
	if err != nil {
		t.Fatalf("expected a PIN file: %v", err)
	}
	if got := string(b); got != "1.1.0\n" {
		t.Fatalf("PIN contents = %q, want %q", got, "1.1.0\n")
	}
}

func TestFetchFromOnDiskRepository(t *testing.T) {
	repo := t.TempDir()
	archiveDir := filepath.Join(repo, "packages", "elm", "json", "1.0.0")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writeArchiveForTest(filepath.Join(archiveDir, "endpoint.zip"), samplePackageManifest); err != nil {
		t.Fatal(err)
	}

	store := NewStore(t.TempDir())
	fetcher := NewFetcher(store, &fakeDownloadHTTP{}, repo)

	if err := fetcher.FetchIfNeeded(context.Background(), "elm", "json", testVersion()); err != nil {
		t.Fatalf("FetchIfNeeded: %v", err)
	}
	ok, err := store.IsFullyDownloaded("elm", "json", testVersion())
	if err != nil {
		t.Fatalf("IsFullyDownloaded: %v", err)
	}
	if !ok {
		t.Fatal("expected package to install from the on-disk repository")
	}
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dsimunic/elm-wrap/version"
)

func v(major, minor, patch uint16) version.Version {
	return version.Version{Major: major, Minor: minor, Patch: patch}
}

func TestV1EncodeDecodeRoundTrip(t *testing.T) {
	r := NewV1()
	r.AddVersion("elm", "core", v(1, 0, 0))
	r.AddVersion("elm", "core", v(1, 0, 2))
	r.AddVersion("elm", "core", v(1, 0, 2)) // duplicate, must not double-count
	r.AddVersion("rtfeldman", "elm-css", v(14, 0, 0))

	encoded := r.encode()
	decoded, err := decodeV1(encoded)
	if err != nil {
		t.Fatalf("decodeV1: %v", err)
	}

	if decoded.TotalVersions() != r.TotalVersions() {
		t.Fatalf("total versions: got %d want %d", decoded.TotalVersions(), r.TotalVersions())
	}

	e, ok := decoded.Find("elm", "core")
	if !ok {
		t.Fatal("expected elm/core to round-trip")
	}
	if len(e.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(e.Versions))
	}
	if e.Versions[0] != v(1, 0, 2) {
		t.Fatalf("expected newest-first, got %v first", e.Versions[0])
	}
}

func TestDecodeV1RejectsBadMagic(t *testing.T) {
	_, err := decodeV1([]byte("not a registry file at all"))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoadV1MissingFileIsNotAnError(t *testing.T) {
	r, err := LoadV1(filepath.Join(t.TempDir(), "registry.dat"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatal("expected nil registry for missing file")
	}
}

func TestLoadV1CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.dat")
	if err := writeFile(path, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	_, err := LoadV1(path)
	var cerr *CorruptRegistryError
	if !asCorrupt(err, &cerr) {
		t.Fatalf("expected CorruptRegistryError, got %v", err)
	}
}

func TestV1WriteAtomicThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.dat")

	r := NewV1()
	r.AddVersion("elm", "core", v(1, 0, 0))

	if err := r.WriteAtomic(path); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	loaded, err := LoadV1(path)
	if err != nil {
		t.Fatalf("LoadV1: %v", err)
	}
	if loaded.TotalVersions() != 1 {
		t.Fatalf("expected 1 version, got %d", loaded.TotalVersions())
	}
	if loaded.Since != 1 {
		t.Fatalf("expected Since=1, got %d", loaded.Since)
	}
}

func TestLoadV1RepairsSinceFromSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.dat")

	r := NewV1()
	r.AddVersion("elm", "core", v(1, 0, 0))
	r.AddVersion("elm", "core", v(1, 0, 2))
	if err := r.WriteAtomic(path); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	// Simulate a malformed incremental write: sidecar says 5, header says 2.
	if err := writeFile(registrySinceCountPath(path), []byte("5")); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadV1(path)
	if err != nil {
		t.Fatalf("LoadV1: %v", err)
	}
	if loaded.Since != 5 {
		t.Fatalf("expected Since repaired to the sidecar's 5, got %d", loaded.Since)
	}

	// The repair must also have rewritten the file itself.
	reloaded, err := LoadV1(path)
	if err != nil {
		t.Fatalf("LoadV1 (after repair): %v", err)
	}
	if reloaded.Since != 5 {
		t.Fatalf("expected rewritten header to carry 5, got %d", reloaded.Since)
	}
}

func TestLoadV1RepairsSinceSmallerThanVersionSum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.dat")

	r := NewV1()
	r.AddVersion("elm", "core", v(1, 0, 0))
	r.AddVersion("elm", "core", v(1, 0, 2))
	r.Since = 2
	if err := r.WriteAtomic(path); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	// Corrupt the sidecar downward, below the file's version sum of 2.
	if err := writeFile(registrySinceCountPath(path), []byte("1")); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadV1(path)
	if err != nil {
		t.Fatalf("LoadV1: %v", err)
	}
	if loaded.Since != 2 {
		t.Fatalf("expected Since repaired up to the version sum 2, got %d", loaded.Since)
	}
}

type fakeHTTP struct {
	bodies map[string][]byte
	etags  map[string]string
}

func (f *fakeHTTP) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return f.bodies[url], nil
}

func (f *fakeHTTP) GetBytesIfNoneMatch(ctx context.Context, url, etag string) ([]byte, string, bool, error) {
	return f.bodies[url], f.etags[url], false, nil
}

func (f *fakeHTTP) HeadETag(ctx context.Context, url, etag string) (string, bool, error) {
	cur := f.etags[url]
	return cur, cur == etag, nil
}

func (f *fakeHTTP) DownloadToFile(ctx context.Context, url, destPath string) error {
	return writeFile(destPath, f.bodies[url])
}

func TestFetchAll(t *testing.T) {
	http := &fakeHTTP{
		bodies: map[string][]byte{
			"https://example.test/all-packages": []byte(`{"elm/core":["1.0.0","1.0.2"],"elm/json":["1.1.0"]}`),
		},
		etags: map[string]string{"https://example.test/all-packages": "abc"},
	}

	r, etag, err := FetchAll(context.Background(), http, "https://example.test")
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if etag != "abc" {
		t.Fatalf("expected etag abc, got %q", etag)
	}
	if r.TotalVersions() != 3 {
		t.Fatalf("expected 3 versions, got %d", r.TotalVersions())
	}
	if r.Since != 3 {
		t.Fatalf("expected Since=3, got %d", r.Since)
	}
}

func TestFetchSinceAdvancesSinceByResponseLength(t *testing.T) {
	http := &fakeHTTP{
		bodies: map[string][]byte{
			"https://example.test/all-packages/since/2": []byte(`["elm/json@1.1.0","elm/json@1.1.1"]`),
		},
	}

	cur := NewV1()
	cur.AddVersion("elm", "core", v(1, 0, 0))
	cur.AddVersion("elm", "core", v(1, 0, 2))
	cur.Since = 2

	updated, _, err := FetchSince(context.Background(), http, "https://example.test", cur)
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if updated.Since != 4 {
		t.Fatalf("expected Since=4, got %d", updated.Since)
	}
	e, ok := updated.Find("elm", "json")
	if !ok || len(e.Versions) != 2 {
		t.Fatalf("expected elm/json to have 2 versions, got %v", e)
	}
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type failingHTTP struct{}

func (failingHTTP) GetBytes(ctx context.Context, url string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (failingHTTP) GetBytesIfNoneMatch(ctx context.Context, url, etag string) ([]byte, string, bool, error) {
	return nil, "", false, errors.New("connection refused")
}

func (failingHTTP) HeadETag(ctx context.Context, url, etag string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingHTTP) DownloadToFile(ctx context.Context, url, destPath string) error {
	return errors.New("connection refused")
}

func TestOpenV1FallsBackToCachedRegistryOnNetworkFailure(t *testing.T) {
	dir := t.TempDir()
	path := registryPath(dir)

	seed := NewV1()
	seed.AddVersion("elm", "core", v(1, 0, 0))
	if err := seed.WriteAtomic(path); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	cfg := Config{Home: dir, BaseURL: "https://example.test", Protocol: ProtocolV1, HTTP: failingHTTP{}}
	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected fallback to cached registry, got error: %v", err)
	}

	vs, err := provider.Versions(context.Background(), PackageID{Author: "elm", Name: "core"})
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 1 || vs[0] != v(1, 0, 0) {
		t.Fatalf("expected the cached version to survive the fallback, got %v", vs)
	}
}

func TestOpenV1FailsWithNoCacheAndNoNetwork(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Home: dir, BaseURL: "https://example.test", Protocol: ProtocolV1, HTTP: failingHTTP{}}

	_, err := Open(context.Background(), cfg)
	var offlineErr *OfflineRequiredError
	if !errors.As(err, &offlineErr) {
		t.Fatalf("expected *OfflineRequiredError, got %T: %v", err, err)
	}
}

func TestOpenV1OfflineSkipsNetworkEntirely(t *testing.T) {
	dir := t.TempDir()
	path := registryPath(dir)

	seed := NewV1()
	seed.AddVersion("elm", "core", v(1, 0, 0))
	if err := seed.WriteAtomic(path); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	cfg := Config{Home: dir, BaseURL: "https://example.test", Protocol: ProtocolV1, Offline: true, HTTP: failingHTTP{}}
	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a provider even offline")
	}
}

func TestOpenV1SkipRegistryUpdateSkipsNetworkEntirely(t *testing.T) {
	dir := t.TempDir()
	path := registryPath(dir)

	seed := NewV1()
	seed.AddVersion("elm", "core", v(1, 0, 0))
	if err := seed.WriteAtomic(path); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}

	cfg := Config{Home: dir, BaseURL: "https://example.test", Protocol: ProtocolV1, SkipRegistryUpdate: true, HTTP: failingHTTP{}}
	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	vs, err := provider.Versions(context.Background(), PackageID{Author: "elm", Name: "core"})
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 1 || vs[0] != v(1, 0, 0) {
		t.Fatalf("expected the cached version with no network call, got %v", vs)
	}
}

func TestOpenV1SkipRegistryUpdateWithNoCacheStillSucceeds(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Home: dir, BaseURL: "https://example.test", Protocol: ProtocolV1, SkipRegistryUpdate: true, HTTP: failingHTTP{}}

	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SkipRegistryUpdate must not require a network or a cache: %v", err)
	}
	if provider == nil {
		t.Fatal("expected a provider backed by an empty registry")
	}
}

func TestV2IndexPath(t *testing.T) {
	got := v2IndexPath("/home/x/.elm")
	want := filepath.Join("/home/x/.elm", "0.19.1", "packages", "index.dat")
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestOpenV2FromOnDiskRepository(t *testing.T) {
	repo := t.TempDir()
	if err := writeIndexZip(filepath.Join(repo, "index.dat"), sampleV2Text); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Home: t.TempDir(), BaseURL: repo, Protocol: ProtocolV2, HTTP: failingHTTP{}}
	provider, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	vs, err := provider.Versions(context.Background(), PackageID{Author: "elm", Name: "core"})
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(vs) != 1 || vs[0] != v(1, 0, 0) {
		t.Fatalf("expected elm/core 1.0.0 from the repository index, got %v", vs)
	}
}

func writeIndexZip(path, text string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	w, err := zw.Create("index.txt")
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(text)); err != nil {
		return err
	}
	return zw.Close()
}

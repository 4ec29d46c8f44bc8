// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeTestZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractZipSkipsNonSelectedEntries(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"pkg-1.0.0/elm.json":        `{"type":"package"}`,
		"pkg-1.0.0/src/Main.elm":    "module Main exposing (..)",
		"pkg-1.0.0/tests/Tests.elm": "should not be extracted",
		"pkg-1.0.0/Makefile":        "should not be extracted",
	})

	dest := t.TempDir()
	if err := extractZip(zipPath, dest); err != nil {
		t.Fatalf("extractZip: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "pkg-1.0.0", "elm.json")); err != nil {
		t.Fatalf("expected elm.json to be extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "pkg-1.0.0", "src", "Main.elm")); err != nil {
		t.Fatalf("expected src/Main.elm to be extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "pkg-1.0.0", "tests")); !os.IsNotExist(err) {
		t.Fatal("expected tests/ to be skipped")
	}
	if _, err := os.Stat(filepath.Join(dest, "pkg-1.0.0", "Makefile")); !os.IsNotExist(err) {
		t.Fatal("expected Makefile to be skipped")
	}
}

func TestExtractZipUnwrappedArchive(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"elm.json":     `{"type":"package"}`,
		"src/Main.elm": "module Main exposing (..)",
	})

	dest := t.TempDir()
	if err := extractZip(zipPath, dest); err != nil {
		t.Fatalf("extractZip: %v", err)
	}

	root, err := findPackageRoot(dest)
	if err != nil {
		t.Fatalf("findPackageRoot: %v", err)
	}
	if root != dest {
		t.Fatalf("expected the destination itself as root, got %q", root)
	}
}

func TestExtractZipRejectsPathTraversal(t *testing.T) {
	zipPath := writeTestZip(t, map[string]string{
		"../escape.txt": "must not land outside dest",
	})

	if err := extractZip(zipPath, t.TempDir()); err == nil {
		t.Fatal("expected an error for a path-traversal entry")
	}
}

func TestFindPackageRootWithWrapperDirectory(t *testing.T) {
	dest := t.TempDir()
	wrapper := filepath.Join(dest, "pkg-1.0.0")
	if err := os.MkdirAll(filepath.Join(wrapper, "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(wrapper, "elm.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	root, err := findPackageRoot(dest)
	if err != nil {
		t.Fatalf("findPackageRoot: %v", err)
	}
	if root != wrapper {
		t.Fatalf("expected wrapper directory as root, got %q", root)
	}
}

func TestFindPackageRootNoManifest(t *testing.T) {
	if _, err := findPackageRoot(t.TempDir()); err == nil {
		t.Fatal("expected an error for an archive with no elm.json")
	}
}

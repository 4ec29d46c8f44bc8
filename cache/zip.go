// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// extractZip extracts the package-relevant entries of the archive at
// zipPath into destDir: elm.json, docs.json, LICENSE, README.md, and the
// src/ tree, at the archive root or under a single wrapper directory
// (GitHub-style "name-version/..." archives). Everything else is skipped.
// Any entry whose name would escape destDir via a ".." path segment is
// rejected outright -- a malicious or malformed archive must never write
// outside the destination directory.
func extractZip(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.Wrap(err, "opening archive")
	}
	defer zr.Close()

	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return errors.Errorf("archive entry %q escapes destination directory", f.Name)
		}

		if !selectedEntry(f.Name, f.FileInfo().IsDir()) {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "creating directory %s", target)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Wrapf(err, "creating directory %s", filepath.Dir(target))
		}

		if err := extractZipFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "opening archive entry %s", f.Name)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return errors.Wrapf(err, "creating %s", target)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrapf(err, "writing %s", target)
	}
	return nil
}

// selectedEntry reports whether an archive entry belongs to the fixed set
// of files a package install keeps (entryFiles plus src/), either at the
// archive root or one wrapper directory down. Bare directory entries at
// wrapper depth are kept so the wrapper itself gets created.
func selectedEntry(name string, isDir bool) bool {
	parts := strings.Split(strings.TrimSuffix(name, "/"), "/")

	keep := func(seg string) bool {
		if seg == "src" {
			return true
		}
		for _, f := range entryFiles {
			if seg == f {
				return true
			}
		}
		return false
	}

	if keep(parts[0]) {
		return true
	}
	if len(parts) >= 2 && keep(parts[1]) {
		return true
	}
	// The wrapper directory entry itself.
	return isDir && len(parts) == 1
}

// findPackageRoot locates the single top-level directory a registry
// archive wraps its contents in (GitHub-style "author-name-sha/..."
// archives) by finding the directory that contains elm.json.
func findPackageRoot(extractedDir string) (string, error) {
	entries, err := ioutil.ReadDir(extractedDir)
	if err != nil {
		return "", errors.Wrap(err, "reading extracted archive")
	}

	if _, err := os.Stat(filepath.Join(extractedDir, "elm.json")); err == nil {
		return extractedDir, nil
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(extractedDir, e.Name())
		if _, err := os.Stat(filepath.Join(candidate, "elm.json")); err == nil {
			return candidate, nil
		}
	}

	return "", errors.New("extracted archive contains no elm.json")
}

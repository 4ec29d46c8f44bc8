// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache implements the on-disk package cache and the
// fetcher that populates it from a registry.
package cache

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"

	"github.com/dsimunic/elm-wrap/version"
)

// entryFiles are the files copied out of a downloaded package into its
// cache slot; everything else in the source tree is ignored.
var entryFiles = []string{"elm.json", "docs.json", "LICENSE", "README.md"}

// Store is the content-addressed package cache:
// <home>/0.19.1/packages/<author>/<name>/<version>/ holding elm.json,
// docs.json, LICENSE, README.md and a src/ directory.
type Store struct {
	Home string
}

// NewStore returns a Store rooted at home ($ELM_HOME).
func NewStore(home string) *Store {
	return &Store{Home: home}
}

// EntryDir returns the cache directory for one specific package version.
func (s *Store) EntryDir(author, name string, v version.Version) string {
	return filepath.Join(s.Home, "0.19.1", "packages", author, name, v.String())
}

// IsFullyDownloaded reports whether the entry for (author, name, v) is
// present and structurally complete: it exists, it has a non-empty src/
// directory, and elm.json is present.
func (s *Store) IsFullyDownloaded(author, name string, v version.Version) (bool, error) {
	dir := s.EntryDir(author, name, v)

	if _, err := os.Stat(filepath.Join(dir, "elm.json")); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat %s", dir)
	}

	srcDir := filepath.Join(dir, "src")
	if fi, err := os.Stat(srcDir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat %s", srcDir)
	} else if !fi.IsDir() {
		return false, nil
	}

	nonEmpty := false
	err := godirwalk.Walk(srcDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname != srcDir && !de.IsDir() {
				nonEmpty = true
			}
			return nil
		},
	})
	if err != nil {
		return false, errors.Wrapf(err, "walking %s", srcDir)
	}

	return nonEmpty, nil
}

// WritePin records v as the pinned version for (author, name): a PIN file
// alongside the package's version directories holding the version string.
func (s *Store) WritePin(author, name string, v version.Version) error {
	dir := filepath.Join(s.Home, "0.19.1", "packages", author, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating package directory")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, "PIN"), []byte(v.String()+"\n"), 0o644), "writing PIN file")
}

// RemoveBrokenEntry deletes a partially-written cache entry so a later
// fetch starts clean.
func (s *Store) RemoveBrokenEntry(author, name string, v version.Version) error {
	return errors.Wrap(os.RemoveAll(s.EntryDir(author, name, v)), "removing broken cache entry")
}

// InstallFromDir atomically installs srcDir (an extracted package archive
// or a sideloaded local package) as the cache entry for (author, name, v).
// It copies only the recognized package files plus src/, builds the result
// in a sibling temp directory, and renames it into place so a concurrent
// reader never observes a partial entry.
func (s *Store) InstallFromDir(srcDir, author, name string, v version.Version) error {
	finalDir := s.EntryDir(author, name, v)
	tmpDir := finalDir + ".tmp"

	_ = os.RemoveAll(tmpDir)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return errors.Wrap(err, "creating temp install directory")
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range entryFiles {
		from := filepath.Join(srcDir, name)
		if _, err := os.Stat(from); err != nil {
			continue // README.md/LICENSE are optional in some archives
		}
		if _, err := shutil.Copy(from, filepath.Join(tmpDir, name), false); err != nil {
			return errors.Wrapf(err, "copying %s", name)
		}
	}

	srcSrc := filepath.Join(srcDir, "src")
	if _, err := os.Stat(srcSrc); err == nil {
		cfg := &shutil.CopyTreeOptions{
			Symlinks:     true,
			CopyFunction: shutil.Copy,
		}
		if err := shutil.CopyTree(srcSrc, filepath.Join(tmpDir, "src"), cfg); err != nil {
			return errors.Wrap(err, "copying src/")
		}
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "elm.json")); err != nil {
		return errors.New("installed package is missing elm.json")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "src")); err != nil {
		return errors.New("installed package is missing src/")
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return errors.Wrap(err, "clearing previous entry")
	}
	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return errors.Wrap(err, "creating package directory")
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return errors.Wrap(err, "renaming into place")
	}

	return nil
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// SafeWriter transactionalizes a manifest rewrite into a pseudo-atomic
// action: render to a temp file in the same directory, then rename over
// the original. A reader can never observe a half-written elm.json.
//
// There is no lock file in this model -- the application manifest's own
// exact-version maps serve that role -- so Prepare/Write carry only the
// manifest payload.
type SafeWriter struct {
	path string
	doc  *ManifestDoc
}

// Prepare stages doc for writing to path. Write performs no I/O until
// called.
func (sw *SafeWriter) Prepare(path string, doc *ManifestDoc) {
	sw.path = path
	sw.doc = doc
}

// Write renders the staged manifest and swaps it into place. On any
// failure the original file, if any, is left untouched.
func (sw *SafeWriter) Write() error {
	if sw.doc == nil {
		return errors.New("manifest: Write called before Prepare")
	}

	b, err := sw.doc.Render()
	if err != nil {
		return &ManifestWriteError{Path: sw.path, Cause: err}
	}

	dir := filepath.Dir(sw.path)
	tmp, err := ioutil.TempFile(dir, filepath.Base(sw.path)+".tmp")
	if err != nil {
		return &ManifestWriteError{Path: sw.path, Cause: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return &ManifestWriteError{Path: sw.path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return &ManifestWriteError{Path: sw.path, Cause: err}
	}

	if err := renameWithFallback(tmpPath, sw.path); err != nil {
		return &ManifestWriteError{Path: sw.path, Cause: err}
	}
	return nil
}

// renameWithFallback attempts to rename a file, falling back to a copy
// when src and dest live on different devices.
func renameWithFallback(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	var cerr error
	if isCrossDevice(terr) {
		cerr = copyFile(src, dest)
	} else {
		return terr
	}

	if cerr != nil {
		return cerr
	}
	return os.Remove(src)
}

func isCrossDevice(terr *os.LinkError) bool {
	if runtime.GOOS == "windows" {
		noerr, ok := terr.Err.(syscall.Errno)
		return ok && noerr == 0x11 // ERROR_NOT_SAME_DEVICE
	}
	return terr.Err == syscall.EXDEV
}

func copyFile(src, dest string) error {
	b, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(dest, b, 0o644)
}

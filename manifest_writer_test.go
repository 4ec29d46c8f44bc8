// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeWriterWritesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestName)
	if err := ioutil.WriteFile(path, []byte(`{"type":"application"}`), 0o644); err != nil {
		t.Fatalf("seeding elm.json: %v", err)
	}

	doc, err := ParseManifestDoc([]byte(`{"type":"application","name":"example/app"}`))
	if err != nil {
		t.Fatalf("ParseManifestDoc: %v", err)
	}

	var sw SafeWriter
	sw.Prepare(path, doc)
	if err := sw.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back %s: %v", path, err)
	}
	if !strings.Contains(string(got), `"name": "example/app"`) {
		t.Fatalf("expected the new manifest contents, got:\n%s", got)
	}

	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the temp file to be cleaned up, found %d entries", len(entries))
	}
}

func TestSafeWriterRequiresPrepare(t *testing.T) {
	var sw SafeWriter
	if err := sw.Write(); err == nil {
		t.Fatal("expected an error calling Write before Prepare")
	}
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"archive/zip"
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/version"
)

// V2Version is one published version of a package under the V2 protocol:
// unlike V1, the full dependency list travels with the index.
type V2Version struct {
	Version version.Version
	Status  Status
	License string
	Deps    []Dependency
}

// V2 is the in-memory form of a parsed V2 index: a complete dependency
// graph for every package/version pair the index describes.
type V2 struct {
	packages map[PackageID][]*V2Version
}

// NewV2 returns an empty V2 index.
func NewV2() *V2 { return &V2{packages: make(map[PackageID][]*V2Version)} }

// Find returns every recorded version of (author, name), in the order the
// index listed them.
func (idx *V2) Find(author, name string) ([]*V2Version, bool) {
	vs, ok := idx.packages[PackageID{Author: author, Name: name}]
	return vs, ok
}

// FindVersion returns one specific version record, if present.
func (idx *V2) FindVersion(author, name string, v version.Version) (*V2Version, bool) {
	for _, vv := range idx.packages[PackageID{Author: author, Name: name}] {
		if vv.Version == v {
			return vv, true
		}
	}
	return nil, false
}

func (idx *V2) add(author, name string, vv *V2Version) {
	id := PackageID{Author: author, Name: name}
	idx.packages[id] = append(idx.packages[id], vv)
}

// LoadV2FromZip reads the single text member of a V2 index zip archive.
func LoadV2FromZip(path string) (*V2, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return nil, &CorruptRegistryError{Path: path, Cause: errors.New("empty zip archive")}
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	defer f.Close()

	body, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}

	idx, err := parseV2Text(body)
	if err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	return idx, nil
}

// LoadV2FromText reads a plain-text V2-format file directly -- used for
// the local-dev overlay sidecar, which is never zipped.
func LoadV2FromText(path string) (*V2, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	idx, err := parseV2Text(b)
	if err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}
	return idx, nil
}

// parseV2Text parses the line-based, indentation-sensitive V2 format
//. Indentation is literal 0/4/8 spaces; CRLF and a missing
// trailing newline are both tolerated.
func parseV2Text(body []byte) (*V2, error) {
	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	idx := NewV2()

	var (
		curAuthor, curName string
		curVersion         *V2Version
		inDeps             bool
		sawFormat          bool
		lineNo             int
	)

	flush := func() {
		if curVersion != nil && curAuthor != "" {
			idx.add(curAuthor, curName, curVersion)
		}
	}

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		switch {
		case !sawFormat:
			if !strings.HasPrefix(raw, "format ") {
				return nil, errors.Errorf("line %d: expected format header, got %q", lineNo, raw)
			}
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(raw, "format ")))
			if err != nil || n != 2 {
				return nil, errors.Errorf("line %d: unsupported format %q (only format 2 is accepted)", lineNo, raw)
			}
			sawFormat = true

		case strings.HasPrefix(raw, "package: "):
			flush()
			curVersion = nil
			inDeps = false
			an := strings.TrimPrefix(raw, "package: ")
			author, name, ok := cutOnce(an, '/')
			if !ok {
				return nil, errors.Errorf("line %d: malformed package id %q", lineNo, an)
			}
			curAuthor, curName = author, name

		case strings.HasPrefix(raw, "    version: "):
			flush()
			v, err := version.Parse(strings.TrimPrefix(raw, "    version: "))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			curVersion = &V2Version{Version: v}
			inDeps = false

		case strings.HasPrefix(raw, "    status: "):
			if curVersion == nil {
				return nil, errors.Errorf("line %d: status outside of a version block", lineNo)
			}
			curVersion.Status = Status(strings.TrimPrefix(raw, "    status: "))
			inDeps = false

		case strings.HasPrefix(raw, "    license: "):
			if curVersion == nil {
				return nil, errors.Errorf("line %d: license outside of a version block", lineNo)
			}
			curVersion.License = strings.TrimPrefix(raw, "    license: ")
			inDeps = false

		case strings.TrimSpace(raw) == "dependencies:" && strings.HasPrefix(raw, "    "):
			if curVersion == nil {
				return nil, errors.Errorf("line %d: dependencies outside of a version block", lineNo)
			}
			inDeps = true

		case strings.HasPrefix(raw, "        ") && inDeps:
			dep, err := parseV2Dependency(strings.TrimSpace(raw))
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			curVersion.Deps = append(curVersion.Deps, dep)

		default:
			// Unrecognized line at the top (compiler name/version banner,
			// etc.) is tolerated before the first package block, but not
			// once we're inside one.
			if curAuthor != "" {
				return nil, errors.Errorf("line %d: unexpected content %q", lineNo, raw)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if !sawFormat {
		return nil, errors.New("missing format header")
	}

	return idx, nil
}

func parseV2Dependency(s string) (Dependency, error) {
	fields := strings.SplitN(s, "  ", 2)
	if len(fields) != 2 {
		// Tolerate single-space separation too.
		fields = strings.SplitN(s, " ", 2)
	}
	if len(fields) != 2 {
		return Dependency{}, errors.Errorf("malformed dependency line %q", s)
	}
	pkg, err := ParsePackageID(strings.TrimSpace(fields[0]))
	if err != nil {
		return Dependency{}, err
	}
	r, err := version.ParseRange(strings.TrimSpace(fields[1]))
	if err != nil {
		return Dependency{}, err
	}
	return Dependency{Pkg: pkg, Range: r}, nil
}

// RenderV2Text renders idx back into the canonical V2 text format. It's
// used only to write the local-dev overlay file; the main V2 index is
// always upstream-produced and read-only.
func RenderV2Text(idx *V2) []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "format 2")
	fmt.Fprintln(&buf, "elm-wrap 1.0.0")

	ids := make([]PackageID, 0, len(idx.packages))
	for id := range idx.packages {
		ids = append(ids, id)
	}
	sortPackageIDs(ids)

	for _, id := range ids {
		fmt.Fprintf(&buf, "\npackage: %s\n", id)
		for _, vv := range idx.packages[id] {
			fmt.Fprintf(&buf, "    version: %s\n", vv.Version)
			fmt.Fprintf(&buf, "    status: %s\n", vv.Status)
			fmt.Fprintf(&buf, "    license: %s\n", vv.License)
			fmt.Fprintln(&buf, "    dependencies:")
			for _, d := range vv.Deps {
				fmt.Fprintf(&buf, "        %s  %s\n", d.Pkg, d.Range)
			}
		}
	}

	return buf.Bytes()
}

func sortPackageIDs(ids []PackageID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && less(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func less(a, b PackageID) bool {
	if a.Author != b.Author {
		return a.Author < b.Author
	}
	return a.Name < b.Name
}

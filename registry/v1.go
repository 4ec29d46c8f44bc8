// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"

	"github.com/dsimunic/elm-wrap/version"
)

const (
	v1Magic      = "ELMR"
	v1FileFormat = byte(1)
)

// V1 is the legacy registry protocol's persistent, incrementally-updated
// list of known package versions. It does not carry
// dependency information; that must be fetched per-version from each
// package's own manifest (see ManifestFetcher).
type V1 struct {
	entries map[PackageID]*Entry
	// Since is the canonical total version count across all packages at
	// the moment this registry was last written or incrementally updated.
	Since uint64
}

// NewV1 returns an empty V1 registry.
func NewV1() *V1 {
	return &V1{entries: make(map[PackageID]*Entry)}
}

// Find looks up a package's entry. The bool is false if the package is
// unknown.
func (r *V1) Find(author, name string) (*Entry, bool) {
	e, ok := r.entries[PackageID{Author: author, Name: name}]
	return e, ok
}

// AddVersion idempotently records v as known for (author, name),
// preserving the newest-first, duplicate-free invariant.
func (r *V1) AddVersion(author, name string, v version.Version) {
	id := PackageID{Author: author, Name: name}
	e, ok := r.entries[id]
	if !ok {
		e = &Entry{Author: author, Name: name}
		r.entries[id] = e
	}
	for _, existing := range e.Versions {
		if existing == v {
			return
		}
	}
	e.Versions = append(e.Versions, v)
	sort.Slice(e.Versions, func(i, j int) bool { return e.Versions[j].Less(e.Versions[i]) })
}

// sortedEntries returns entries sorted ascending by (author, name), the
// order the on-disk format requires.
func (r *V1) sortedEntries() []*Entry {
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Author != out[j].Author {
			return out[i].Author < out[j].Author
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TotalVersions sums |versions| over all entries.
func (r *V1) TotalVersions() uint64 {
	var n uint64
	for _, e := range r.entries {
		n += uint64(len(e.Versions))
	}
	return n
}

func registryPath(home string) string        { return filepath.Join(home, "0.19.1", "packages", "registry.dat") }
func registryEtagPath(p string) string       { return p + ".etag" }
func registrySinceCountPath(p string) string { return p + ".since-count" }

// LoadV1 loads the registry file at path. A missing file returns
// (nil, nil); a malformed file returns a CorruptRegistry error.
func LoadV1(path string) (*V1, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading registry %s", path)
	}

	r, err := decodeV1(b)
	if err != nil {
		return nil, &CorruptRegistryError{Path: path, Cause: err}
	}

	// Reconcile against the since-count sidecar: the sidecar holds the
	// canonical count, so a header that disagrees is repaired to match and
	// the file rewritten. A header smaller than the file's own
	// version sum is likewise repaired -- that state can only come from a
	// malformed write.
	repaired := false
	if sc, err := ioutil.ReadFile(registrySinceCountPath(path)); err == nil {
		if n, perr := strconv.ParseUint(strings.TrimSpace(string(sc)), 10, 64); perr == nil && n != r.Since {
			r.Since = n
			repaired = true
		}
	}
	if total := r.TotalVersions(); r.Since < total {
		r.Since = total
		repaired = true
	}
	if repaired {
		if err := r.WriteAtomic(path); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// CorruptRegistryError reports that a registry file on disk failed to
// parse.
type CorruptRegistryError struct {
	Path  string
	Cause error
}

func (e *CorruptRegistryError) Error() string {
	return fmt.Sprintf("registry file %s is corrupt: %v", e.Path, e.Cause)
}
func (e *CorruptRegistryError) Unwrap() error { return e.Cause }

func decodeV1(b []byte) (*V1, error) {
	if len(b) < len(v1Magic)+1+8 {
		return nil, errors.New("truncated registry header")
	}
	if string(b[:4]) != v1Magic {
		return nil, errors.Errorf("bad magic %q", b[:4])
	}
	if b[4] != v1FileFormat {
		return nil, errors.Errorf("unsupported registry format %d", b[4])
	}
	since := binary.LittleEndian.Uint64(b[5:13])

	r := &V1{entries: make(map[PackageID]*Entry), Since: since}
	buf := bytes.NewReader(b[13:])

	for buf.Len() > 0 {
		author, err := readVarString(buf)
		if err != nil {
			return nil, errors.Wrap(err, "reading author")
		}
		name, err := readVarString(buf)
		if err != nil {
			return nil, errors.Wrap(err, "reading name")
		}
		count, err := binary.ReadUvarint(buf)
		if err != nil {
			return nil, errors.Wrap(err, "reading version count")
		}

		versions := make([]version.Version, 0, count)
		for i := uint64(0); i < count; i++ {
			var raw [6]byte
			if _, err := buf.Read(raw[:]); err != nil {
				return nil, errors.Wrap(err, "reading version triple")
			}
			versions = append(versions, version.Version{
				Major: binary.LittleEndian.Uint16(raw[0:2]),
				Minor: binary.LittleEndian.Uint16(raw[2:4]),
				Patch: binary.LittleEndian.Uint16(raw[4:6]),
			})
		}

		id := PackageID{Author: author, Name: name}
		r.entries[id] = &Entry{Author: author, Name: name, Versions: versions}
	}

	return r, nil
}

func readVarString(buf *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(buf)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := buf.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *V1) encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(v1Magic)
	buf.WriteByte(v1FileFormat)

	var sinceBuf [8]byte
	binary.LittleEndian.PutUint64(sinceBuf[:], r.Since)
	buf.Write(sinceBuf[:])

	for _, e := range r.sortedEntries() {
		writeVarString(&buf, e.Author)
		writeVarString(&buf, e.Name)

		var cbuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(cbuf[:], uint64(len(e.Versions)))
		buf.Write(cbuf[:n])

		for _, v := range e.Versions {
			var raw [6]byte
			binary.LittleEndian.PutUint16(raw[0:2], v.Major)
			binary.LittleEndian.PutUint16(raw[2:4], v.Minor)
			binary.LittleEndian.PutUint16(raw[4:6], v.Patch)
			buf.Write(raw[:])
		}
	}

	return buf.Bytes()
}

func writeVarString(buf *bytes.Buffer, s string) {
	var lbuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lbuf[:], uint64(len(s)))
	buf.Write(lbuf[:n])
	buf.WriteString(s)
}

// WriteAtomic writes r to path via a temp-file-then-rename, so a crash
// mid-write never leaves a partially written registry file on disk. The
// header's since count and the .since-count sidecar are written from the
// same value, so the two can only diverge through a failed write --
// which LoadV1 then repairs.
func (r *V1) WriteAtomic(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating registry directory")
	}

	fl := flock.NewFlock(path + ".lock")
	if err := fl.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", path+".lock")
	}
	defer fl.Unlock()

	// A registry assembled purely through AddVersion (a fresh full fetch,
	// a test fixture) has never had Since advanced; the version sum is the
	// canonical count in that case.
	if total := r.TotalVersions(); r.Since < total {
		r.Since = total
	}

	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, r.encode(), 0o644); err != nil {
		return errors.Wrap(err, "writing temp registry file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "renaming registry file into place")
	}

	since := strconv.FormatUint(r.Since, 10)
	_ = ioutil.WriteFile(registrySinceCountPath(path), []byte(since), 0o644)

	return nil
}

// allPackagesResponse is the JSON shape of GET /all-packages.
type allPackagesResponse map[string][]string

// FetchUpdate drives the incremental update protocol:
// if an ETag is cached, issue a conditional HEAD first; a 304 means the
// registry is already current and no body fetch is needed. Otherwise
// fall back to FetchSince using the cached Since count, or FetchAll if
// there's no usable prior state.
func FetchUpdate(ctx context.Context, http HTTPClient, baseURL string, cur *V1, etag string) (*V1, string, error) {
	url := strings.TrimRight(baseURL, "/") + "/all-packages"

	if etag != "" {
		newETag, notModified, err := http.HeadETag(ctx, url, etag)
		if err != nil {
			return cur, etag, errors.Wrap(err, "checking registry freshness")
		}
		if notModified {
			return cur, etag, nil
		}
		etag = newETag
	}

	if cur == nil {
		return FetchAll(ctx, http, baseURL)
	}
	return FetchSince(ctx, http, baseURL, cur)
}

// FetchAll performs the full GET /all-packages fetch and replaces the
// registry's contents wholesale.
func FetchAll(ctx context.Context, http HTTPClient, baseURL string) (*V1, string, error) {
	url := strings.TrimRight(baseURL, "/") + "/all-packages"
	body, etag, _, err := http.GetBytesIfNoneMatch(ctx, url, "")
	if err != nil {
		return nil, "", errors.Wrap(err, "fetching all-packages")
	}

	var raw allPackagesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, "", errors.Wrap(err, "parsing all-packages response")
	}

	r := NewV1()
	for an, versions := range raw {
		author, name, ok := cutOnce(an, '/')
		if !ok {
			continue
		}
		for _, vs := range versions {
			v, err := version.Parse(vs)
			if err != nil {
				continue
			}
			r.AddVersion(author, name, v)
		}
	}
	r.Since = r.TotalVersions()
	return r, etag, nil
}

// FetchSince drives GET /all-packages/since/<N>, merging the incremental
// result into cur and advancing Since by exactly the response length.
func FetchSince(ctx context.Context, http HTTPClient, baseURL string, cur *V1) (*V1, string, error) {
	url := fmt.Sprintf("%s/all-packages/since/%d", strings.TrimRight(baseURL, "/"), cur.Since)
	body, err := http.GetBytes(ctx, url)
	if err != nil {
		return cur, "", errors.Wrap(err, "fetching incremental update")
	}

	var added []string
	if err := json.Unmarshal(body, &added); err != nil {
		return cur, "", errors.Wrap(err, "parsing incremental update response")
	}

	for _, s := range added {
		an, vs, ok := cutOnce(s, '@')
		if !ok {
			continue
		}
		author, name, ok := cutOnce(an, '/')
		if !ok {
			continue
		}
		v, err := version.Parse(vs)
		if err != nil {
			continue
		}
		cur.AddVersion(author, name, v)
	}
	cur.Since += uint64(len(added))

	return cur, "", nil
}

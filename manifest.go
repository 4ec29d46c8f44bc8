// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

const (
	keyType             = "type"
	keyDependencies     = "dependencies"
	keyTestDependencies = "test-dependencies"

	typeApplication = "application"
	typePackage     = "package"
)

// ManifestDoc is elm.json parsed just far enough to edit the dependency
// sections while leaving every other field untouched, in the exact
// top-level key order it was read in.
type ManifestDoc struct {
	order  []string
	fields map[string]json.RawMessage
	Kind   string
}

// ParseManifestDoc reads an elm.json document, capturing its top-level key
// order via manual token scanning so Render can reproduce it later.
func ParseManifestDoc(b []byte) (*ManifestDoc, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "reading elm.json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("elm.json: expected a top-level object")
	}

	doc := &ManifestDoc{fields: make(map[string]json.RawMessage)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(err, "reading elm.json")
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("elm.json: expected a string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, errors.Wrapf(err, "reading elm.json field %q", key)
		}
		if _, dup := doc.fields[key]; !dup {
			doc.order = append(doc.order, key)
		}
		doc.fields[key] = raw
	}

	var kind string
	if raw, ok := doc.fields[keyType]; ok {
		_ = json.Unmarshal(raw, &kind)
	}
	doc.Kind = kind
	return doc, nil
}

// IsApplication reports whether this manifest declares
// `"type": "application"`.
func (doc *ManifestDoc) IsApplication() bool { return doc.Kind == typeApplication }

// AppDependencies is the parsed contents of an application manifest's four
// dependency sections -- every value an exact pinned version.
type AppDependencies struct {
	Direct       map[registry.PackageID]version.Version
	Indirect     map[registry.PackageID]version.Version
	TestDirect   map[registry.PackageID]version.Version
	TestIndirect map[registry.PackageID]version.Version
}

func newAppDependencies() AppDependencies {
	return AppDependencies{
		Direct:       make(map[registry.PackageID]version.Version),
		Indirect:     make(map[registry.PackageID]version.Version),
		TestDirect:   make(map[registry.PackageID]version.Version),
		TestIndirect: make(map[registry.PackageID]version.Version),
	}
}

type appDependenciesRaw struct {
	Direct   map[string]string `json:"direct"`
	Indirect map[string]string `json:"indirect"`
}

// ApplicationDependencies decodes the application manifest's
// `dependencies`/`test-dependencies` sections.
func (doc *ManifestDoc) ApplicationDependencies() (AppDependencies, error) {
	out := newAppDependencies()

	if raw, ok := doc.fields[keyDependencies]; ok {
		var parsed appDependenciesRaw
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return out, errors.Wrap(err, "parsing elm.json dependencies")
		}
		if err := fillVersionMap(out.Direct, parsed.Direct); err != nil {
			return out, err
		}
		if err := fillVersionMap(out.Indirect, parsed.Indirect); err != nil {
			return out, err
		}
	}

	if raw, ok := doc.fields[keyTestDependencies]; ok {
		var parsed appDependenciesRaw
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return out, errors.Wrap(err, "parsing elm.json test-dependencies")
		}
		if err := fillVersionMap(out.TestDirect, parsed.Direct); err != nil {
			return out, err
		}
		if err := fillVersionMap(out.TestIndirect, parsed.Indirect); err != nil {
			return out, err
		}
	}

	return out, nil
}

func fillVersionMap(dst map[registry.PackageID]version.Version, src map[string]string) error {
	for name, raw := range src {
		pkg, err := registry.ParsePackageID(name)
		if err != nil {
			return err
		}
		v, err := version.Parse(raw)
		if err != nil {
			return errors.Wrapf(err, "parsing version for %s", name)
		}
		dst[pkg] = v
	}
	return nil
}

// SetApplicationDependencies replaces the manifest's dependency sections
// with d, re-serialized as plain author/name -> version strings. Render
// sorts object keys independently, so the maps need not be pre-sorted.
func (doc *ManifestDoc) SetApplicationDependencies(d AppDependencies) error {
	direct, err := versionMapToStrings(d.Direct)
	if err != nil {
		return err
	}
	indirect, err := versionMapToStrings(d.Indirect)
	if err != nil {
		return err
	}
	testDirect, err := versionMapToStrings(d.TestDirect)
	if err != nil {
		return err
	}
	testIndirect, err := versionMapToStrings(d.TestIndirect)
	if err != nil {
		return err
	}

	if err := doc.setField(keyDependencies, appDependenciesRaw{Direct: direct, Indirect: indirect}); err != nil {
		return err
	}
	return doc.setField(keyTestDependencies, appDependenciesRaw{Direct: testDirect, Indirect: testIndirect})
}

func versionMapToStrings(m map[registry.PackageID]version.Version) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for pkg, v := range m {
		out[pkg.String()] = v.String()
	}
	return out, nil
}

// PackageDependencies is a library manifest's two flat dependency sections
// -- every value a range constraint.
type PackageDependencies struct {
	Deps     map[registry.PackageID]version.Range
	TestDeps map[registry.PackageID]version.Range
}

// PackageDependencies decodes a package manifest's `dependencies` and
// `test-dependencies` sections.
func (doc *ManifestDoc) PackageDependencies() (PackageDependencies, error) {
	out := PackageDependencies{
		Deps:     make(map[registry.PackageID]version.Range),
		TestDeps: make(map[registry.PackageID]version.Range),
	}

	if raw, ok := doc.fields[keyDependencies]; ok {
		var parsed map[string]string
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return out, errors.Wrap(err, "parsing elm.json dependencies")
		}
		if err := fillRangeMap(out.Deps, parsed); err != nil {
			return out, err
		}
	}
	if raw, ok := doc.fields[keyTestDependencies]; ok {
		var parsed map[string]string
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return out, errors.Wrap(err, "parsing elm.json test-dependencies")
		}
		if err := fillRangeMap(out.TestDeps, parsed); err != nil {
			return out, err
		}
	}

	return out, nil
}

func fillRangeMap(dst map[registry.PackageID]version.Range, src map[string]string) error {
	for name, raw := range src {
		pkg, err := registry.ParsePackageID(name)
		if err != nil {
			return err
		}
		r, err := version.ParseRange(raw)
		if err != nil {
			return errors.Wrapf(err, "parsing range for %s", name)
		}
		dst[pkg] = r
	}
	return nil
}

// SetPackageDependencies replaces a library manifest's dependency
// sections, rendering each range in the project's usual
// `"X.Y.Z <= v < X+1.0.0"` convention.
func (doc *ManifestDoc) SetPackageDependencies(d PackageDependencies) error {
	if err := doc.setField(keyDependencies, rangeMapToStrings(d.Deps)); err != nil {
		return err
	}
	return doc.setField(keyTestDependencies, rangeMapToStrings(d.TestDeps))
}

func rangeMapToStrings(m map[registry.PackageID]version.Range) map[string]string {
	out := make(map[string]string, len(m))
	for pkg, r := range m {
		out[pkg.String()] = r.String()
	}
	return out
}

func (doc *ManifestDoc) setField(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding elm.json field %q", key)
	}
	if _, had := doc.fields[key]; !had {
		doc.order = append(doc.order, key)
	}
	doc.fields[key] = raw
	return nil
}

// Render re-serializes the document with the manifest pretty-printer's
// fixed conventions: top-level keys in their original read order, nested
// object keys sorted ascending, 4-space indentation, `{}` for empty
// nested objects, trailing newline.
func (doc *ManifestDoc) Render() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range doc.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString("\n    ")

		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteString(": ")

		var v interface{}
		if err := json.Unmarshal(doc.fields[key], &v); err != nil {
			return nil, errors.Wrapf(err, "rendering elm.json field %q", key)
		}
		var vb bytes.Buffer
		enc := json.NewEncoder(&vb)
		enc.SetEscapeHTML(false)
		enc.SetIndent("    ", "    ")
		if err := enc.Encode(v); err != nil {
			return nil, errors.Wrapf(err, "rendering elm.json field %q", key)
		}
		buf.Write(bytes.TrimSuffix(vb.Bytes(), []byte("\n")))
	}
	if len(doc.order) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	wrap "github.com/dsimunic/elm-wrap"
	"github.com/dsimunic/elm-wrap/cache"
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/version"
)

// cliCtx is the per-invocation context every command builds once, at the
// top of Run: the resolved environment, loggers, the manifest it's about
// to edit, and the registry/cache collaborators the resolver needs.
type cliCtx struct {
	Loggers Loggers
	Env     *wrap.Env

	ProjectRoot string
	ManifestDoc *wrap.ManifestDoc

	Provider registry.Provider
	Fetcher  *cache.Fetcher
}

// newCLICtx resolves ELM_HOME/registry settings, locates and parses the
// project's elm.json, and opens the registry protocol gate -- the setup
// every install/remove/upgrade/check/cache command needs before it can do
// anything else.
func newCLICtx(ctx context.Context, loggers Loggers, startDir string) (*cliCtx, error) {
	env, err := wrap.NewEnv()
	if err != nil {
		return nil, err
	}
	env.Verbose = loggers.Verbose

	root, err := wrap.FindProjectRoot(startDir)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(root, wrap.ManifestName)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", manifestPath)
	}
	doc, err := wrap.ParseManifestDoc(b)
	if err != nil {
		return nil, err
	}

	http := wrap.NewHTTPClient()
	store := cache.NewStore(env.ElmHome)
	fetcher := cache.NewFetcher(store, http, env.RegistryURL)

	protocol := registry.ProtocolV1
	if isV2Repository(env.RegistryURL) {
		protocol = registry.ProtocolV2
	}

	provider, err := registry.Open(ctx, registry.Config{
		Home:               env.ElmHome,
		BaseURL:            env.RegistryURL,
		Protocol:           protocol,
		Offline:            env.Offline,
		SkipRegistryUpdate: env.SkipRegistryUpdate,
		HTTP:               http,
		Fetch:              fetcher,
		ErrLogger:          loggers.Err,
	})
	if err != nil {
		return nil, err
	}

	return &cliCtx{
		Loggers:     loggers,
		Env:         env,
		ProjectRoot: root,
		ManifestDoc: doc,
		Provider:    provider,
		Fetcher:     fetcher,
	}, nil
}

// isV2Repository reports whether url names an on-disk V2 repository path
// rather than an http(s) origin.
func isV2Repository(url string) bool {
	if url == "" {
		return false
	}
	if _, err := os.Stat(url); err == nil {
		return true
	}
	return false
}

// confirmPlan prints the packages that solution would add or change
// relative to before and asks the user to proceed before anything is
// downloaded or written. assumeYes (-y/--yes) skips the prompt entirely.
// A declined prompt is reported to the caller as ok=false, not an error
// -- the caller should leave the manifest untouched and exit 0.
func confirmPlan(loggers Loggers, assumeYes bool, solution, before map[registry.PackageID]version.Version) (bool, error) {
	pkgs := make([]registry.PackageID, 0, len(solution))
	for pkg := range solution {
		if pkg == registry.RootID {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].String() < pkgs[j].String() })

	any := false
	for _, pkg := range pkgs {
		v := solution[pkg]
		prev, had := before[pkg]
		switch {
		case !had:
			loggers.Out.Printf("  add %s %s\n", pkg, v)
			any = true
		case prev != v:
			loggers.Out.Printf("  change %s %s -> %s\n", pkg, prev, v)
			any = true
		}
	}
	if !any {
		return true, nil
	}

	if assumeYes {
		return true, nil
	}

	loggers.Out.Print("Proceed? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "reading confirmation")
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// writeManifest renders and atomically swaps doc into the project's
// elm.json.
func (c *cliCtx) writeManifest(doc *wrap.ManifestDoc) error {
	path := filepath.Join(c.ProjectRoot, wrap.ManifestName)
	var sw wrap.SafeWriter
	sw.Prepare(path, doc)
	return sw.Write()
}

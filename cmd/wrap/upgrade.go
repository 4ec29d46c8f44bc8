// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"

	"github.com/pkg/errors"

	wrap "github.com/dsimunic/elm-wrap"
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/resolve"
	"github.com/dsimunic/elm-wrap/version"
)

const upgradeShortHelp = `Bring dependencies to newer compatible versions`
const upgradeLongHelp = `
Upgrade re-solves the project's dependencies, preferring the newest
version available for each one instead of the currently-locked version.

With no argument, every dependency is eligible. Given a package name,
only that package (and whatever it newly requires) moves. -major allows
crossing a major version boundary, which Elm treats as a breaking change;
without it, upgrades stay within each package's current major version.
-major-ignore-test excludes test-dependencies from the major-version
search when upgrading everything.

Exits with status 100, not 1, when the project is already at the newest
versions the current constraints allow.
`

type upgradeCommand struct {
	major           bool
	majorIgnoreTest bool
	assumeYes       bool
}

func (cmd *upgradeCommand) Name() string      { return "upgrade" }
func (cmd *upgradeCommand) Args() string      { return "[author/name]" }
func (cmd *upgradeCommand) ShortHelp() string { return upgradeShortHelp }
func (cmd *upgradeCommand) LongHelp() string  { return upgradeLongHelp }
func (cmd *upgradeCommand) Hidden() bool      { return false }

func (cmd *upgradeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.major, "major", false, "allow crossing a major version boundary")
	fs.BoolVar(&cmd.majorIgnoreTest, "major-ignore-test", false, "when upgrading everything, exclude test-dependencies from -major")
	fs.BoolVar(&cmd.assumeYes, "y", false, "don't ask for confirmation")
	fs.BoolVar(&cmd.assumeYes, "yes", false, "don't ask for confirmation")
}

func (cmd *upgradeCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) > 1 {
		return errors.New("upgrade takes at most one package argument")
	}

	var target *registry.PackageID
	if len(args) == 1 && args[0] != "all" {
		pkg, err := registry.ParsePackageID(args[0])
		if err != nil {
			return &wrap.InvalidPackageNameError{Given: args[0], Cause: err}
		}
		target = &pkg
	}

	cliCtx, err := newCLICtx(ctx, loggers, "")
	if err != nil {
		return err
	}

	before, err := currentVersions(cliCtx.ManifestDoc)
	if err != nil {
		return err
	}

	rootDeps, err := upgradeRootDeps(cliCtx.ManifestDoc, target, cmd.major, cmd.majorIgnoreTest)
	if err != nil {
		return err
	}

	solution, err := resolve.Solve(ctx, cliCtx.Provider, rootDeps, before, resolve.Upgrade)
	if err != nil {
		return err
	}

	changed := false
	for pkg, v := range solution {
		if pkg == registry.RootID {
			continue
		}
		if prev, ok := before[pkg]; !ok || prev != v {
			changed = true
			break
		}
	}
	if !changed {
		loggers.Out.Println("already at the newest versions your constraints allow")
		return &exitError{err: errors.New("no upgrades available"), code: 100}
	}

	proceed, err := confirmPlan(loggers, cmd.assumeYes, solution, before)
	if err != nil {
		return err
	}
	if !proceed {
		loggers.Out.Println("aborted")
		return nil
	}

	for pkg, v := range solution {
		if pkg == registry.RootID {
			continue
		}
		if err := cliCtx.Fetcher.FetchIfNeeded(ctx, pkg.Author, pkg.Name, v); err != nil {
			return err
		}
	}

	if target == nil {
		target = &registry.RootID
	}
	plan := wrap.Plan{Solution: solution, Target: *target}
	if cliCtx.ManifestDoc.IsApplication() {
		err = wrap.ApplyApplication(cliCtx.ManifestDoc, plan)
	} else {
		err = wrap.ApplyPackage(cliCtx.ManifestDoc, plan)
	}
	if err != nil {
		return err
	}

	if err := cliCtx.writeManifest(cliCtx.ManifestDoc); err != nil {
		return err
	}

	for pkg, v := range solution {
		if pkg == registry.RootID {
			continue
		}
		if prev, ok := before[pkg]; !ok || prev != v {
			loggers.Out.Printf("%s: %s -> %s\n", pkg, before[pkg], v)
		}
	}
	return nil
}

// currentVersions collects every version presently recorded in doc, keyed
// by package, for use as the Upgrade strategy's locked map.
func currentVersions(doc *wrap.ManifestDoc) (map[registry.PackageID]version.Version, error) {
	out := make(map[registry.PackageID]version.Version)
	if !doc.IsApplication() {
		return out, nil
	}
	deps, err := doc.ApplicationDependencies()
	if err != nil {
		return nil, err
	}
	for pkg, v := range deps.Direct {
		out[pkg] = v
	}
	for pkg, v := range deps.Indirect {
		out[pkg] = v
	}
	for pkg, v := range deps.TestDirect {
		out[pkg] = v
	}
	for pkg, v := range deps.TestIndirect {
		out[pkg] = v
	}
	return out, nil
}

// upgradeRootDeps builds the solver's root edges for an upgrade: the
// targeted package (or every direct/test-direct package, if none was
// named) gets a wide range so Upgrade can move it; with a target, every
// other package in the application's four sections stays pinned to its
// current version so an unrelated package never shifts as a side effect
// of someone else's upgrade. A package manifest's declared ranges are
// passed through unchanged, target included.
func upgradeRootDeps(doc *wrap.ManifestDoc, target *registry.PackageID, major, majorIgnoreTest bool) ([]registry.Dependency, error) {
	var rootDeps []registry.Dependency

	widen := func(pkg registry.PackageID, cur version.Version, isTest bool) version.Range {
		if major && !(isTest && majorIgnoreTest) {
			return version.Any()
		}
		return version.Closed(version.Version{Major: cur.Major}, cur.NextMajor())
	}

	if doc.IsApplication() {
		deps, err := doc.ApplicationDependencies()
		if err != nil {
			return nil, err
		}
		addSection := func(section map[registry.PackageID]version.Version, isTest bool) {
			for pkg, v := range section {
				var r version.Range
				switch {
				case target != nil && pkg == *target:
					r = widen(pkg, v, isTest)
				case target != nil:
					r = version.Exact(v)
				default:
					r = widen(pkg, v, isTest)
				}
				rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
			}
		}
		addSection(deps.Direct, false)
		addSection(deps.TestDirect, true)
		if target != nil {
			addSection(deps.Indirect, false)
			addSection(deps.TestIndirect, true)
		}
	} else {
		deps, err := doc.PackageDependencies()
		if err != nil {
			return nil, err
		}
		addSection := func(section map[registry.PackageID]version.Range) {
			for pkg, r := range section {
				rootDeps = append(rootDeps, registry.Dependency{Pkg: pkg, Range: r})
			}
		}
		addSection(deps.Deps)
		addSection(deps.TestDeps)
	}

	return rootDeps, nil
}

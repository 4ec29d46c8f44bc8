// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"strings"

	"github.com/pkg/errors"

	wrap "github.com/dsimunic/elm-wrap"
	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/resolve"
	"github.com/dsimunic/elm-wrap/version"
)

const installShortHelp = `Add a dependency to the project`
const installLongHelp = `
Install resolves a new package into the project's dependency set and
records it in elm.json. Every other already-resolved version is first
held where it is; only if that admits no solution may the others move
within their current major versions, and, with -major, beyond them.

By default the newest version compatible with everything else already in
the project is chosen. -major widens the search across a major version
boundary for the named package. -from-file and -from-url sideload a
package from a local directory/zip or an http(s) URL instead of the
registry.
`

type installCommand struct {
	test      bool
	major     bool
	fromFile  string
	fromURL   string
	pin       bool
	assumeYes bool
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "<author/name[@version]>" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.test, "test", false, "install as a test-only dependency")
	fs.BoolVar(&cmd.major, "major", false, "allow a major version bump for this package")
	fs.StringVar(&cmd.fromFile, "from-file", "", "install from a local directory or zip file")
	fs.StringVar(&cmd.fromURL, "from-url", "", "install from an http(s) URL")
	fs.BoolVar(&cmd.pin, "pin", false, "verify the sideloaded package declares the expected name")
	fs.BoolVar(&cmd.assumeYes, "y", false, "don't ask for confirmation")
	fs.BoolVar(&cmd.assumeYes, "yes", false, "don't ask for confirmation")
}

func (cmd *installCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) != 1 {
		return errors.New("install requires exactly one package argument")
	}

	// "author/name" or "author/name@X.Y.Z" for a specific version.
	arg := args[0]
	var exactVersion *version.Version
	if at := strings.LastIndexByte(arg, '@'); at >= 0 {
		v, err := version.Parse(arg[at+1:])
		if err != nil {
			return errors.Wrapf(err, "parsing version in %q", arg)
		}
		exactVersion = &v
		arg = arg[:at]
	}

	target, err := registry.ParsePackageID(arg)
	if err != nil {
		return &wrap.InvalidPackageNameError{Given: args[0], Cause: err}
	}

	cliCtx, err := newCLICtx(ctx, loggers, "")
	if err != nil {
		return err
	}

	if cmd.fromFile != "" || cmd.fromURL != "" {
		src := cmd.fromFile
		if src == "" {
			src = cmd.fromURL
		}
		var pin *registry.PackageID
		if cmd.pin {
			pin = &target
		}
		result, err := cliCtx.Fetcher.Sideload(ctx, src, pin)
		if err != nil {
			return err
		}
		if result.Warning != "" {
			loggers.Err.Println("warning:", result.Warning)
		}
		target = result.ID
		if err := registry.AddLocalDev(cliCtx.Env.ElmHome, target.Author, target.Name, result.Version, result.License, result.Deps); err != nil {
			return err
		}
		// The registry provider opened above was built before this
		// overlay entry existed; reopen so the solver can see it.
		cliCtx, err = newCLICtx(ctx, loggers, cliCtx.ProjectRoot)
		if err != nil {
			return err
		}
	}

	targetRange := version.Any()
	switch {
	case exactVersion != nil:
		versions, err := cliCtx.Provider.Versions(ctx, target)
		if err != nil {
			return &wrap.NotFoundError{Pkg: target}
		}
		if !versionInList(versions, *exactVersion) {
			return &wrap.VersionNotAvailableError{Pkg: target, Version: exactVersion.String(), Available: versions}
		}
		targetRange = version.Exact(*exactVersion)
	case !cmd.major:
		if versions, err := cliCtx.Provider.Versions(ctx, target); err == nil && len(versions) > 0 {
			newest := versions[0]
			targetRange = version.Closed(version.Version{Major: newest.Major}, newest.NextMajor())
		}
	}

	req, err := wrap.BuildRequest(cliCtx.ManifestDoc, target, targetRange, cmd.test)
	if err != nil {
		return err
	}

	solution, err := solveWithFallbacks(ctx, cliCtx, req, target, cmd.major)
	if err != nil {
		return err
	}

	proceed, err := confirmPlan(loggers, cmd.assumeYes, solution, req.Locked)
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

	plan := wrap.Plan{Solution: solution, Target: target, TestTarget: cmd.test}
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

	loggers.Out.Printf("installed %s %s\n", target, solution[target])
	return nil
}

// solveWithFallbacks runs the solver's escalation ladder: first hold every
// already-installed sibling at its exact pinned version; if that admits no
// solution, relax the siblings to their current major lines; with -major,
// finally free them entirely. Each rung only runs when the previous one
// failed with a genuine no-solution verdict, so an unrelated error (a
// registry fetch failure, say) surfaces immediately.
func solveWithFallbacks(ctx context.Context, c *cliCtx, req wrap.Request, target registry.PackageID, allowMajor bool) (map[registry.PackageID]version.Version, error) {
	solution, err := resolve.Solve(ctx, c.Provider, req.RootDeps, req.Locked, resolve.Conservative)
	if err == nil {
		return solution, nil
	}
	if _, ok := err.(*resolve.NoSolutionError); !ok {
		return nil, err
	}

	relaxed := relaxedRootDeps(req, target, func(cur version.Version) version.Range {
		return version.Closed(version.Version{Major: cur.Major}, cur.NextMajor())
	})
	solution, relaxedErr := resolve.Solve(ctx, c.Provider, relaxed, req.Locked, resolve.Upgrade)
	if relaxedErr == nil {
		return solution, nil
	}
	if _, ok := relaxedErr.(*resolve.NoSolutionError); !ok || !allowMajor {
		return nil, relaxedErr
	}

	wide := relaxedRootDeps(req, target, func(version.Version) version.Range { return version.Any() })
	return resolve.Solve(ctx, c.Provider, wide, req.Locked, resolve.MajorUpgrade)
}

// relaxedRootDeps rebuilds req's root edges with every pinned sibling's
// exact range replaced by widen(current version); the target's own edge
// passes through untouched.
func relaxedRootDeps(req wrap.Request, target registry.PackageID, widen func(version.Version) version.Range) []registry.Dependency {
	out := make([]registry.Dependency, 0, len(req.RootDeps))
	for _, d := range req.RootDeps {
		if d.Pkg != target {
			if cur, ok := req.Locked[d.Pkg]; ok {
				out = append(out, registry.Dependency{Pkg: d.Pkg, Range: widen(cur)})
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func versionInList(vs []version.Version, v version.Version) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

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
)

const removeShortHelp = `Remove a dependency from the project`
const removeLongHelp = `
Remove drops a package from the project's dependency set and re-solves
the remaining dependencies. Any transitive dependency that only the
removed package needed is also dropped; one still required by something
else stays, pinned to its current version.
`

type removeCommand struct {
	assumeYes bool
}

func (cmd *removeCommand) Name() string      { return "remove" }
func (cmd *removeCommand) Args() string      { return "<author/name>" }
func (cmd *removeCommand) ShortHelp() string { return removeShortHelp }
func (cmd *removeCommand) LongHelp() string  { return removeLongHelp }
func (cmd *removeCommand) Hidden() bool      { return false }

func (cmd *removeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.assumeYes, "y", false, "don't ask for confirmation")
	fs.BoolVar(&cmd.assumeYes, "yes", false, "don't ask for confirmation")
}

func (cmd *removeCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) != 1 {
		return errors.New("remove requires exactly one package argument")
	}

	target, err := registry.ParsePackageID(args[0])
	if err != nil {
		return &wrap.InvalidPackageNameError{Given: args[0], Cause: err}
	}

	cliCtx, err := newCLICtx(ctx, loggers, "")
	if err != nil {
		return err
	}

	present, err := packagePresent(cliCtx.ManifestDoc, target)
	if err != nil {
		return err
	}
	if !present {
		return &wrap.NotFoundError{Pkg: target}
	}

	req, err := wrap.RemoveRequest(cliCtx.ManifestDoc, target)
	if err != nil {
		return err
	}

	solution, err := resolve.Solve(ctx, cliCtx.Provider, req.RootDeps, req.Locked, resolve.Conservative)
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

	plan := wrap.Plan{Solution: solution, Target: target}
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

	loggers.Out.Printf("removed %s\n", target)
	return nil
}

// packagePresent reports whether target appears anywhere in doc's declared
// dependency sections.
func packagePresent(doc *wrap.ManifestDoc, target registry.PackageID) (bool, error) {
	if doc.IsApplication() {
		deps, err := doc.ApplicationDependencies()
		if err != nil {
			return false, err
		}
		if _, ok := deps.Direct[target]; ok {
			return true, nil
		}
		if _, ok := deps.Indirect[target]; ok {
			return true, nil
		}
		if _, ok := deps.TestDirect[target]; ok {
			return true, nil
		}
		if _, ok := deps.TestIndirect[target]; ok {
			return true, nil
		}
		return false, nil
	}

	deps, err := doc.PackageDependencies()
	if err != nil {
		return false, err
	}
	if _, ok := deps.Deps[target]; ok {
		return true, nil
	}
	if _, ok := deps.TestDeps[target]; ok {
		return true, nil
	}
	return false, nil
}

// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/dsimunic/elm-wrap/registry"
	"github.com/dsimunic/elm-wrap/resolve"
	"github.com/dsimunic/elm-wrap/version"
)

const checkShortHelp = `Report which dependencies have newer versions available`
const checkLongHelp = `
Check re-solves the project's dependencies the same way upgrade would,
but never writes elm.json -- it only reports what would change. Against
a V1 registry, solving may still download package archives into the
cache to read their dependency lists.

Exits 0 when at least one dependency could move, 100 when the project is
already at the newest versions its constraints allow.
`

type checkCommand struct{}

func (cmd *checkCommand) Name() string      { return "check" }
func (cmd *checkCommand) Args() string      { return "[path]" }
func (cmd *checkCommand) ShortHelp() string { return checkShortHelp }
func (cmd *checkCommand) LongHelp() string  { return checkLongHelp }
func (cmd *checkCommand) Hidden() bool      { return false }

func (cmd *checkCommand) Register(fs *flag.FlagSet) {}

func (cmd *checkCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) > 1 {
		return errors.New("check takes at most one path argument")
	}

	// An explicit path may name either the project directory or the
	// manifest file itself.
	startDir := ""
	if len(args) == 1 {
		startDir = args[0]
		if fi, err := os.Stat(startDir); err == nil && !fi.IsDir() {
			startDir = filepath.Dir(startDir)
		}
	}

	cliCtx, err := newCLICtx(ctx, loggers, startDir)
	if err != nil {
		return err
	}

	before, err := currentVersions(cliCtx.ManifestDoc)
	if err != nil {
		return err
	}

	rootDeps, err := upgradeRootDeps(cliCtx.ManifestDoc, nil, false, false)
	if err != nil {
		return err
	}

	solution, err := resolve.Solve(ctx, cliCtx.Provider, rootDeps, before, resolve.Upgrade)
	if err != nil {
		return err
	}

	type move struct {
		pkg  registry.PackageID
		from version.Version
		to   version.Version
	}
	var moves []move
	for pkg, v := range solution {
		if pkg == registry.RootID {
			continue
		}
		if prev, ok := before[pkg]; !ok || prev != v {
			moves = append(moves, move{pkg: pkg, from: before[pkg], to: v})
		}
	}

	if len(moves) == 0 {
		loggers.Out.Println("already at the newest versions your constraints allow")
		return &exitError{err: errors.New("no upgrades available"), code: 100}
	}

	sort.Slice(moves, func(i, j int) bool { return moves[i].pkg.String() < moves[j].pkg.String() })
	for _, m := range moves {
		loggers.Out.Printf("%s: %s -> %s\n", m.pkg, m.from, m.to)
	}
	return nil
}

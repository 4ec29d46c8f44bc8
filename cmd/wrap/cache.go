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
	"github.com/dsimunic/elm-wrap/version"
)

const cacheShortHelp = `Populate the local package cache without touching elm.json`
const cacheLongHelp = `
Cache downloads a single package version directly into the local package
cache, or sideloads one from a local directory/zip or an http(s) URL. It
never writes the project's elm.json -- use install for that -- though it
runs inside a project and reads its elm.json while setting up.

A version argument is required unless -major, -from-file or -from-url is
given; a sideloaded manifest supplies its own version. -major, when no
version is given, caches the newest version the registry lists for the
package, whatever its major. -ignore-hash skips the archive's sha1
check, for registries that don't publish one.
`

type cacheCommand struct {
	fromFile   string
	fromURL    string
	major      bool
	ignoreHash bool
}

func (cmd *cacheCommand) Name() string      { return "cache" }
func (cmd *cacheCommand) Args() string      { return "<author/name> [version]" }
func (cmd *cacheCommand) ShortHelp() string { return cacheShortHelp }
func (cmd *cacheCommand) LongHelp() string  { return cacheLongHelp }
func (cmd *cacheCommand) Hidden() bool      { return false }

func (cmd *cacheCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.fromFile, "from-file", "", "sideload from a local directory or zip file")
	fs.StringVar(&cmd.fromURL, "from-url", "", "sideload from an http(s) URL")
	fs.BoolVar(&cmd.major, "major", false, "use the newest version the registry lists for the package")
	fs.BoolVar(&cmd.ignoreHash, "ignore-hash", false, "skip the archive's sha1 integrity check")
}

func (cmd *cacheCommand) Run(ctx context.Context, loggers Loggers, args []string) error {
	if cmd.fromFile != "" || cmd.fromURL != "" {
		return cmd.runSideload(ctx, loggers, args)
	}
	return cmd.runFetch(ctx, loggers, args)
}

func (cmd *cacheCommand) runSideload(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) != 1 {
		return errors.New("cache -from-file/-from-url requires exactly one package argument")
	}
	pin, err := registry.ParsePackageID(args[0])
	if err != nil {
		return err
	}

	cliCtx, err := newCLICtx(ctx, loggers, "")
	if err != nil {
		return err
	}

	src := cmd.fromFile
	if src == "" {
		src = cmd.fromURL
	}
	result, err := cliCtx.Fetcher.Sideload(ctx, src, &pin)
	if err != nil {
		return err
	}
	if result.Warning != "" {
		loggers.Err.Println("warning:", result.Warning)
	}

	if err := registry.AddLocalDev(cliCtx.Env.ElmHome, result.ID.Author, result.ID.Name, result.Version, result.License, result.Deps); err != nil {
		return err
	}

	loggers.Out.Printf("cached %s %s\n", result.ID, result.Version)
	return nil
}

func (cmd *cacheCommand) runFetch(ctx context.Context, loggers Loggers, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("cache requires a package argument and, unless -major is given, a version")
	}

	pkg, err := registry.ParsePackageID(args[0])
	if err != nil {
		return &wrap.InvalidPackageNameError{Given: args[0], Cause: err}
	}

	cliCtx, err := newCLICtx(ctx, loggers, "")
	if err != nil {
		return err
	}

	var v version.Version
	if len(args) == 2 {
		v, err = version.Parse(args[1])
		if err != nil {
			return errors.Wrapf(err, "parsing version %q", args[1])
		}
	} else if cmd.major {
		versions, err := cliCtx.Provider.Versions(ctx, pkg)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return &wrap.VersionNotAvailableError{Pkg: pkg, Version: "any"}
		}
		v = versions[0]
	} else {
		return errors.New("cache requires a version unless -major is given")
	}

	if cmd.ignoreHash {
		cliCtx.Fetcher.ExpectedSHA1 = nil
	}

	if err := cliCtx.Fetcher.FetchIfNeeded(ctx, pkg.Author, pkg.Name, v); err != nil {
		return err
	}

	loggers.Out.Printf("cached %s %s\n", pkg, v)
	return nil
}

// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ElmVersion is the compiler version this cache layout is keyed to.
const ElmVersion = "0.19.1"

// ManifestName is the project manifest's filename.
const ManifestName = "elm.json"

// Env is the supporting context for every command: the resolved home
// directory, registry endpoint, and the process-wide flags that change
// how the registry and cache behave. Everything is read from the
// environment once at startup; nothing else consults os.Getenv.
type Env struct {
	// ElmHome is the cache root.
	ElmHome string
	// RegistryURL is the upstream V1 package server, or the root of a
	// local V2 repository.
	RegistryURL string
	// Offline forces every operation to use only what's already cached.
	Offline bool
	// SkipRegistryUpdate skips the incremental update call even when
	// online, using whatever registry state is already on disk.
	SkipRegistryUpdate bool
	// Verbose records the command line's -v setting. No resolver or
	// registry output depends on it.
	Verbose bool
}

const (
	defaultRegistryURL  = "https://package.elm-lang.org"
	envElmHome          = "ELM_HOME"
	envRegistryURL      = "ELM_PACKAGE_REGISTRY_URL"
	envOfflineMode      = "WRAP_OFFLINE_MODE"
	envSkipRegistrySync = "WRAP_SKIP_REGISTRY_UPDATE"
)

// NewEnv reads the process environment into an Env, applying the
// documented defaults.
func NewEnv() (*Env, error) {
	home := os.Getenv(envElmHome)
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "locating home directory for default ELM_HOME")
		}
		home = filepath.Join(dir, ".elm")
	}

	registryURL := os.Getenv(envRegistryURL)
	if registryURL == "" {
		registryURL = defaultRegistryURL
	}

	return &Env{
		ElmHome:            home,
		RegistryURL:        registryURL,
		Offline:            os.Getenv(envOfflineMode) == "1",
		SkipRegistryUpdate: os.Getenv(envSkipRegistrySync) == "1",
	}, nil
}

// PackagesHome is $ELM_HOME/0.19.1/packages, the directory holding the
// registry files and the package cache. The registry and cache packages
// are handed ElmHome itself and add this suffix on their own.
func (e *Env) PackagesHome() string {
	return filepath.Join(e.ElmHome, ElmVersion, "packages")
}

var errProjectNotFound = fmt.Errorf("could not find %s; run this inside an elm project", ManifestName)

// FindProjectRoot searches upward from the given directory (the current
// working directory if empty) for the nearest directory containing
// elm.json, so commands work from anywhere inside a project tree.
func FindProjectRoot(from string) (string, error) {
	if from == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "getting working directory")
		}
		from = wd
	}
	from, err := filepath.Abs(from)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", from)
	}

	for {
		mp := filepath.Join(from, ManifestName)
		if _, err := os.Stat(mp); err == nil {
			return from, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(from)
		if parent == from {
			return "", errProjectNotFound
		}
		from = parent
	}
}

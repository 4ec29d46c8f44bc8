// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Protocol identifies which wire format a configured package repository
// speaks.
type Protocol int

const (
	ProtocolV1 Protocol = iota
	ProtocolV2
)

// Config is everything the protocol gate needs to open a Provider: where
// the on-disk registry state lives, which repository to talk to, and the
// collaborators needed to refresh it.
type Config struct {
	Home     string // $ELM_HOME-style root, e.g. ~/.elm
	BaseURL  string // repository base URL; empty means "use the default package server"
	Protocol Protocol
	Offline  bool

	// SkipRegistryUpdate disables the incremental network refresh while
	// still loading and serving whatever registry state is already cached
	// on disk -- unlike Offline, it never triggers OfflineRequiredError
	// when no cache exists, since it doesn't mean the network is
	// unreachable, only that this run shouldn't spend a request
	// refreshing.
	SkipRegistryUpdate bool

	HTTP  HTTPClient
	Fetch ManifestFetcher

	// ErrLogger receives a warning when a transient network failure is
	// absorbed by falling back to a cached registry. Nil disables the
	// warning, not the fallback.
	ErrLogger *log.Logger
}

// OfflineRequiredError reports that no cached registry exists and the
// network is unavailable, so there is no data to fall back to.
type OfflineRequiredError struct {
	Cause error
}

func (e *OfflineRequiredError) Error() string {
	return "no cached registry available and the network is unreachable: " + e.Cause.Error()
}

func (e *OfflineRequiredError) Unwrap() error { return e.Cause }

func v2IndexPath(home string) string {
	return filepath.Join(home, "0.19.1", "packages", "index.dat")
}

// Open is the protocol gate: it loads on-disk registry state,
// refreshes it from the network unless Offline is set, layers the
// local-dev overlay on top, and returns a Provider -- the only thing
// downstream code (the solver, the manifest applier) ever touches.
func Open(ctx context.Context, cfg Config) (Provider, error) {
	overlay, err := LoadLocalDev(cfg.Home)
	if err != nil {
		return nil, err
	}

	switch cfg.Protocol {
	case ProtocolV2:
		return openV2(ctx, cfg, overlay)
	default:
		return openV1(ctx, cfg, overlay)
	}
}

func openV1(ctx context.Context, cfg Config, overlay *V2) (Provider, error) {
	path := registryPath(cfg.Home)

	reg, err := LoadV1(path)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewV1()
	}

	if !cfg.Offline && !cfg.SkipRegistryUpdate {
		etag := ""
		if b, err := readFileIfExists(registryEtagPath(path)); err == nil && b != nil {
			etag = string(b)
		}

		var prior *V1
		if reg.TotalVersions() > 0 {
			prior = reg
		}

		updated, newETag, err := FetchUpdate(ctx, cfg.HTTP, cfg.BaseURL, prior, etag)
		if err != nil {
			if prior == nil {
				return nil, &OfflineRequiredError{Cause: errors.Wrap(err, "refreshing V1 registry")}
			}
			if cfg.ErrLogger != nil {
				cfg.ErrLogger.Printf("warning: could not reach %s, using cached registry: %v", cfg.BaseURL, err)
			}
			updated = nil
		}
		if updated != nil {
			reg = updated
			if err := reg.WriteAtomic(path); err != nil {
				return nil, err
			}
			if newETag != "" {
				_ = ioutil.WriteFile(registryEtagPath(path), []byte(newETag), 0o644)
			}
		}
	}

	return NewV1Provider(reg, overlay, cfg.Fetch), nil
}

func openV2(ctx context.Context, cfg Config, overlay *V2) (Provider, error) {
	// A V2 repository is usually a local directory -- read its index in
	// place. An http(s) BaseURL still works: the index is mirrored into
	// the cache first.
	path := filepath.Join(cfg.BaseURL, "index.dat")
	if fi, err := os.Stat(cfg.BaseURL); err != nil || !fi.IsDir() {
		path = v2IndexPath(cfg.Home)
		hadCachedIndex, _ := readFileIfExists(path)

		if !cfg.Offline && !cfg.SkipRegistryUpdate {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, errors.Wrap(err, "creating registry directory")
			}
			if err := cfg.HTTP.DownloadToFile(ctx, cfg.BaseURL+"/all-packages", path); err != nil {
				if hadCachedIndex == nil {
					return nil, &OfflineRequiredError{Cause: errors.Wrap(err, "refreshing V2 index")}
				}
				if cfg.ErrLogger != nil {
					cfg.ErrLogger.Printf("warning: could not reach %s, using cached index: %v", cfg.BaseURL, err)
				}
			}
		}
	}

	idx, err := LoadV2FromZip(path)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		idx = NewV2()
	}

	return NewV2Provider(idx, overlay), nil
}

func readFileIfExists(path string) ([]byte, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

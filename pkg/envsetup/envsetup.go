// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package envsetup locates an environment's files and wires an Environment
// together with the default collaborators.
package envsetup

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/inputlock"
	"github.com/nickryand/flox/pkg/lockfile"
	"github.com/nickryand/flox/pkg/manifest"
	"github.com/nickryand/flox/pkg/pkgdb"
	"github.com/nickryand/flox/pkg/resolver"
)

type Paths struct {
	Dir          string
	ManifestPath string
	LockfilePath string
}

func PathsFor(dir string) (Paths, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Dir:          abs,
		ManifestPath: filepath.Join(abs, floxconfig.ManifestFileName),
		LockfilePath: filepath.Join(abs, floxconfig.LockfileName),
	}, nil
}

// NewEnvironment reads the manifest, the optional global manifest and the
// optional prior lockfile, and builds a resolver Environment around them.
func NewEnvironment(config *floxconfig.Config, dir string, upgrades resolver.UpgradeSelector) (*resolver.Environment, Paths, error) {
	paths, err := PathsFor(dir)
	if err != nil {
		return nil, Paths{}, err
	}

	m, err := manifest.ReadManifest(paths.ManifestPath)
	if err != nil {
		return nil, Paths{}, err
	}

	var global *manifest.GlobalManifest
	if _, err := os.Stat(config.GlobalManifestPath); err == nil {
		global, err = manifest.ReadGlobalManifest(config.GlobalManifestPath)
		if err != nil {
			return nil, Paths{}, err
		}
	}

	var old *lockfile.Lockfile
	old, err = lockfile.ReadLockfile(paths.LockfilePath)
	if errors.Is(err, fs.ErrNotExist) {
		old = nil
	} else if err != nil {
		return nil, Paths{}, err
	}

	env := resolver.New(
		global,
		m,
		old,
		upgrades,
		inputlock.New(config),
		&pkgdb.CatalogFactory{CacheDir: config.CatalogCachePath},
	)
	return env, paths, nil
}

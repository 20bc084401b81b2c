// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package floxconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nickryand/flox/pkg/utils"
)

const (
	// ManifestFileName is the environment manifest within an environment dir
	ManifestFileName = "manifest.yaml"
	// LockfileName is the emitted lockfile, next to the manifest
	LockfileName = "manifest.lock"
	// GlobalManifestFileName lives directly under the flox home
	GlobalManifestFileName = "global.yaml"
	// catalogCacheDirName holds scraped package catalogs, one file per locked input rev
	catalogCacheDirName = "catalogs"
)

type Config struct {
	FloxHomePath string `yaml:"-"`

	// dir containing scraped package catalogs keyed by input revision
	CatalogCachePath string `yaml:"-"`

	GlobalManifestPath string `yaml:"-"`

	Insecure bool `yaml:"insecure,omitempty"`
}

func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(c.FloxHomePath, c.CatalogCachePath)
}

func Get() (*Config, error) {
	floxHomePath, err := getFloxHomePath()
	if err != nil {
		return nil, err
	}
	return GetWithCustomFloxHome(floxHomePath)
}

func GetWithCustomFloxHome(floxHomePath string) (*Config, error) {
	insecure := false
	if v, ok := os.LookupEnv(AllowInsecureRegistryEnvVar); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for '%s' env var. Must be one of ('true', 'false')", AllowInsecureRegistryEnvVar)
		}
		insecure = b
	}

	return &Config{
		FloxHomePath:       floxHomePath,
		CatalogCachePath:   filepath.Join(floxHomePath, catalogCacheDirName),
		GlobalManifestPath: filepath.Join(floxHomePath, GlobalManifestFileName),
		Insecure:           insecure,
	}, nil
}

func getFloxHomePath() (string, error) {
	if fromEnv, ok := os.LookupEnv(FloxHomeEnvVar); ok {
		return fromEnv, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".flox"), nil
}

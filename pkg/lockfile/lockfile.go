// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-yaml"

	"github.com/nickryand/flox/pkg/manifest"
	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/schema"
	"github.com/nickryand/flox/pkg/utils/stringset"
)

const (
	LockfileKind       = "Lockfile"
	LockfileVersion    = "v1"
	LockfileAPIVersion = schema.APIGroup + "/" + LockfileVersion
)

var ErrInvalidLockfile = fmt.Errorf("invalid lockfile")

// LockedPackage pins one resolved descriptor to a package row of a locked
// input.
type LockedPackage struct {
	Input    registry.InputRef `yaml:"input"`
	AttrPath []string          `yaml:"attr-path"`
	Priority uint              `yaml:"priority"`
	Info     map[string]any    `yaml:"info"`
}

func (p *LockedPackage) Clone() *LockedPackage {
	if p == nil {
		return nil
	}
	c := *p
	c.AttrPath = slices.Clone(p.AttrPath)
	c.Info = maps.Clone(p.Info)
	return &c
}

// SystemPackages maps InstallID -> LockedPackage for one system. A nil
// entry marks a descriptor that is optional-and-unresolved or excluded from
// this system; it is emitted as an explicit null.
type SystemPackages map[manifest.InstallID]*LockedPackage

// Lockfile is the emitted resolution result: the manifest it was produced
// from, the locked registry, and the per-system package pins.
type Lockfile struct {
	schema.ManifestMeta `yaml:",inline"`

	Manifest *manifest.Manifest        `yaml:"manifest"`
	Registry registry.RegistryRaw      `yaml:"registry"`
	Packages map[string]SystemPackages `yaml:"packages"`
}

func New(m *manifest.Manifest, reg registry.RegistryRaw) *Lockfile {
	return &Lockfile{
		ManifestMeta: schema.ManifestMeta{
			APIVersion: LockfileAPIVersion,
			Kind:       LockfileKind,
		},
		Manifest: m,
		Registry: reg,
		Packages: map[string]SystemPackages{},
	}
}

func ReadLockfile(filePath string) (*Lockfile, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	bytes, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return ReadLockfileContents(bytes)
}

func ReadLockfileContents(contents []byte) (*Lockfile, error) {
	var l Lockfile
	if err := yaml.Unmarshal(contents, &l); err != nil {
		return nil, err
	}

	s := schema.ManifestMeta{
		APIVersion: LockfileAPIVersion,
		Kind:       LockfileKind,
	}
	if err := s.ValidateSchema(l.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidLockfile, err.Error())
	}

	if l.Manifest == nil {
		return nil, fmt.Errorf("%w: missing 'manifest'", ErrInvalidLockfile)
	}
	if l.Packages == nil {
		l.Packages = map[string]SystemPackages{}
	}
	return &l, nil
}

// Descriptors returns the install table of the embedded manifest snapshot,
// used for lock-equivalence comparisons against the current manifest.
func (l *Lockfile) Descriptors() map[manifest.InstallID]*manifest.Descriptor {
	return l.Manifest.Descriptors()
}

// RemoveUnusedInputs prunes registry entries no locked package references.
func (l *Lockfile) RemoveUnusedInputs() {
	used := stringset.StringSet{}
	for _, systemPackages := range l.Packages {
		for _, pkg := range systemPackages {
			if pkg != nil {
				used.Add(pkg.Input.String())
			}
		}
	}

	for _, name := range l.Registry.Names() {
		ref, _ := l.Registry.Get(name)
		if !used.Contains(ref.String()) {
			l.Registry.Delete(name)
		}
	}
}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickryand/flox/pkg/lockfile"
	"github.com/nickryand/flox/pkg/manifest"
	"github.com/nickryand/flox/pkg/pkgdb"
	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/resolver/resolutionerrors"
	"github.com/nickryand/flox/pkg/schema"
)

const (
	linux  = "x86_64-linux"
	darwin = "aarch64-darwin"
)

// fakeLocker pins git refs to a configured revision and records which
// inputs it was asked to lock.
type fakeLocker struct {
	revs   map[string]string
	locked []string
}

func (l *fakeLocker) Lock(_ context.Context, ref registry.InputRef) (registry.InputRef, error) {
	if ref.Locked() {
		return ref, nil
	}
	l.locked = append(l.locked, ref.URL)
	rev, ok := l.revs[ref.URL]
	if !ok {
		return registry.InputRef{}, fmt.Errorf("unknown input %q", ref.URL)
	}
	ref.Rev = rev
	return ref, nil
}

// fakeFactory serves in-memory catalogs keyed by the locked reference.
type fakeFactory struct {
	catalogs map[string]*pkgdb.Catalog
	opened   []string
}

func (f *fakeFactory) Open(_ context.Context, name string, ref registry.InputRef) (*pkgdb.Input, error) {
	catalog, ok := f.catalogs[ref.String()]
	if !ok {
		return nil, fmt.Errorf("no catalog for %q", ref.String())
	}
	f.opened = append(f.opened, ref.String())
	return &pkgdb.Input{Name: name, Ref: ref, Db: pkgdb.NewCatalogDb(name, catalog)}, nil
}

func catalogOf(systems []string, names ...string) *pkgdb.Catalog {
	c := &pkgdb.Catalog{
		ManifestMeta: schema.ManifestMeta{APIVersion: pkgdb.CatalogAPIVersion, Kind: pkgdb.CatalogKind},
		Systems:      systems,
	}
	for _, system := range systems {
		for _, name := range names {
			c.Packages = append(c.Packages, &pkgdb.CatalogEntry{
				Subtree: "packages",
				System:  system,
				RelPath: []string{name},
				Pname:   name,
				Version: "1.0.0",
			})
		}
	}
	return c
}

func gitRef(url string) registry.InputRef {
	return registry.InputRef{Type: registry.TypeGit, URL: url, Ref: "main"}
}

func lockedGitRef(url, rev string) registry.InputRef {
	ref := gitRef(url)
	ref.Rev = rev
	return ref
}

func mustManifest(t *testing.T, contents string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.ReadManifestContents([]byte(contents))
	require.NoError(t, err)
	return m
}

const manifestHeader = "apiVersion: flox.dev/v1\nkind: Manifest\n"

func TestFreshResolveSingleInput(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
    ref: main
install:
  hello:
    name: hello
systems: [`+linux+`]
`)

	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		lockedGitRef("https://example.com/nixpkgs", "rev1").String(): catalogOf([]string{linux}, "hello"),
	}}

	env := New(nil, m, nil, UpgradeNone(), locker, factory)
	lf, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)

	pkg := lf.Packages[linux]["hello"]
	require.NotNil(t, pkg)
	assert.Equal(t, lockedGitRef("https://example.com/nixpkgs", "rev1"), pkg.Input)
	assert.Equal(t, []string{"packages", linux, "hello"}, pkg.AttrPath)
	assert.Equal(t, manifest.DefaultPriority, pkg.Priority)
	assert.Equal(t, "hello", pkg.Info["pname"])
	assert.NotContains(t, pkg.Info, "system")

	ref, ok := lf.Registry.Get("nixpkgs")
	require.True(t, ok)
	assert.Equal(t, "rev1", ref.Rev)
}

func TestOptionalMissing(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
  nosuch:
    name: nosuch
    optional: true
systems: [`+linux+`]
`)

	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}.String(): catalogOf([]string{linux}, "hello"),
	}}

	env := New(nil, m, nil, UpgradeNone(), locker, factory)
	lf, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)

	require.Contains(t, lf.Packages[linux], "nosuch")
	assert.Nil(t, lf.Packages[linux]["nosuch"])
	assert.NotNil(t, lf.Packages[linux]["hello"])
}

func TestRequiredMissingListsAllInputs(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
registry:
  one:
    type: git
    url: https://example.com/one
  two:
    type: git
    url: https://example.com/two
install:
  nosuch:
    name: nosuch
systems: [`+linux+`]
`)

	locker := &fakeLocker{revs: map[string]string{
		"https://example.com/one": "rev1",
		"https://example.com/two": "rev2",
	}}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/one", Rev: "rev1"}.String(): catalogOf([]string{linux}, "hello"),
		registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/two", Rev: "rev2"}.String(): catalogOf([]string{linux}, "world"),
	}}

	env := New(nil, m, nil, UpgradeNone(), locker, factory)
	_, err := env.CreateLockfile(context.Background())
	require.Error(t, err)

	resErr := resolutionerrors.Standardize(err)
	assert.Equal(t, resolutionerrors.ResolutionFailed, resErr.Code)
	require.NotNil(t, resErr.Failure)
	require.Len(t, resErr.Failure.Groups, 1)
	group := resErr.Failure.Groups[0]
	assert.Equal(t, "default", group.Group)
	require.Len(t, group.Attempts, 2)
	for _, attempt := range group.Attempts {
		assert.Equal(t, "nosuch", attempt.InstallID)
	}
	assert.Contains(t, err.Error(), "failed to resolve 'nosuch' in input")
	assert.Contains(t, err.Error(), "https://example.com/one")
	assert.Contains(t, err.Error(), "https://example.com/two")
}

func TestEmptyRegistry(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
install:
  hello:
    name: hello
systems: [`+linux+`]
`)

	env := New(nil, m, nil, UpgradeNone(), &fakeLocker{}, &fakeFactory{})
	_, err := env.CreateLockfile(context.Background())
	require.Error(t, err)
	assert.Equal(t, resolutionerrors.EmptyRegistry, resolutionerrors.Standardize(err).Code)
	assert.Contains(t, err.Error(), "no inputs found to search for packages")
}

func TestLockReuseSkipsLocking(t *testing.T) {
	contents := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	m := mustManifest(t, contents)
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello"),
	}}

	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}
	env := New(nil, m, nil, UpgradeNone(), locker, factory)
	prior, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)

	// Re-resolve with the prior lockfile: the locker must not be invoked
	// and the output must be byte-identical.
	old, err := lockfile.ReadLockfileContents(priorBytes)
	require.NoError(t, err)

	locker2 := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "revBUMPED"}}
	env2 := New(nil, mustManifest(t, contents), old, UpgradeNone(), locker2, factory)
	next, err := env2.CreateLockfile(context.Background())
	require.NoError(t, err)

	assert.Empty(t, locker2.locked)

	nextBytes, err := next.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(priorBytes), string(nextBytes))
}

func TestGroupFallbackUpgrade(t *testing.T) {
	before := manifestHeader + `
registry:
  alpha:
    type: git
    url: https://example.com/alpha
install:
  hello:
    name: hello
  world:
    name: world
systems: [` + linux + `]
`
	after := manifestHeader + `
registry:
  alpha:
    type: git
    url: https://example.com/alpha
  beta:
    type: git
    url: https://example.com/beta
install:
  hello:
    name: hello
  world:
    name: world
  newpkg:
    name: newpkg
systems: [` + linux + `]
`
	alphaLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/alpha", Rev: "rev1"}
	betaLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/beta", Rev: "rev2"}

	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		alphaLocked.String(): catalogOf([]string{linux}, "hello", "world"),
		betaLocked.String():  catalogOf([]string{linux}, "hello", "world", "newpkg"),
	}}

	locker := &fakeLocker{revs: map[string]string{
		"https://example.com/alpha": "rev1",
		"https://example.com/beta":  "rev2",
	}}

	env := New(nil, mustManifest(t, before), nil, UpgradeNone(), locker, factory)
	prior, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)
	old, err := lockfile.ReadLockfileContents(priorBytes)
	require.NoError(t, err)

	env2 := New(nil, mustManifest(t, after), old, UpgradeNone(), locker, factory)
	lf, err := env2.CreateLockfile(context.Background())
	require.NoError(t, err)

	for _, iid := range []string{"hello", "world", "newpkg"} {
		pkg := lf.Packages[linux][iid]
		require.NotNil(t, pkg, iid)
		assert.Equal(t, betaLocked, pkg.Input, iid)
	}
}

func TestExcludedSystem(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  linuxonly:
    name: linuxonly
    systems: [`+linux+`]
systems: [`+linux+`, `+darwin+`]
`)

	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux, darwin}, "linuxonly"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	env := New(nil, m, nil, UpgradeNone(), locker, factory)
	lf, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, lf.Packages[linux]["linuxonly"])
	require.Contains(t, lf.Packages[darwin], "linuxonly")
	assert.Nil(t, lf.Packages[darwin]["linuxonly"])
}

func TestSystemIndependence(t *testing.T) {
	base := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	withDarwinOnly := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
  darwinware:
    name: darwinware
    systems: [` + darwin + `]
systems: [` + linux + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	lf1, err := New(nil, mustManifest(t, base), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	lf2, err := New(nil, mustManifest(t, withDarwinOnly), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)

	// The darwin-only descriptor shows up as an explicit null and changes
	// nothing about the packages that do resolve on linux.
	assert.Equal(t, lf1.Packages[linux]["hello"], lf2.Packages[linux]["hello"])
	require.Contains(t, lf2.Packages[linux], "darwinware")
	assert.Nil(t, lf2.Packages[linux]["darwinware"])
}

func TestOptionalSafety(t *testing.T) {
	required := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
  nosuch:
    name: nosuch
systems: [` + linux + `]
`
	optional := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
  nosuch:
    name: nosuch
    optional: true
systems: [` + linux + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	_, err := New(nil, mustManifest(t, required), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.Error(t, err)

	lf, err := New(nil, mustManifest(t, optional), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, lf.Packages[linux]["hello"])
	assert.Nil(t, lf.Packages[linux]["nosuch"])
}

func TestSameInputWithinGroup(t *testing.T) {
	m := mustManifest(t, manifestHeader+`
registry:
  alpha:
    type: git
    url: https://example.com/alpha
  beta:
    type: git
    url: https://example.com/beta
install:
  hello:
    name: hello
  world:
    name: world
systems: [`+linux+`]
`)

	alphaLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/alpha", Rev: "rev1"}
	betaLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/beta", Rev: "rev2"}

	// alpha only has hello; beta has both. The group must land on beta.
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		alphaLocked.String(): catalogOf([]string{linux}, "hello"),
		betaLocked.String():  catalogOf([]string{linux}, "hello", "world"),
	}}
	locker := &fakeLocker{revs: map[string]string{
		"https://example.com/alpha": "rev1",
		"https://example.com/beta":  "rev2",
	}}

	lf, err := New(nil, m, nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, betaLocked, lf.Packages[linux]["hello"].Input)
	assert.Equal(t, betaLocked, lf.Packages[linux]["world"].Input)
}

func TestPriorityOverwriteOnLockedGroup(t *testing.T) {
	before := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	after := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
    priority: 1
systems: [` + linux + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	prior, err := New(nil, mustManifest(t, before), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)
	old, err := lockfile.ReadLockfileContents(priorBytes)
	require.NoError(t, err)

	// Priority is not a comparison key: the group stays locked and the new
	// priority is copied through.
	lf, err := New(nil, mustManifest(t, after), old, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, lf.Packages[linux]["hello"])
	assert.Equal(t, uint(1), lf.Packages[linux]["hello"].Priority)
	assert.Equal(t, prior.Packages[linux]["hello"].Input, lf.Packages[linux]["hello"].Input)
}

func TestUpgradeForcesReResolution(t *testing.T) {
	contents := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	rev1 := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	rev2 := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev2"}

	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		rev1.String(): catalogOf([]string{linux}, "hello"),
		rev2.String(): catalogOf([]string{linux}, "hello"),
	}}

	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}
	prior, err := New(nil, mustManifest(t, contents), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)
	old, err := lockfile.ReadLockfileContents(priorBytes)
	require.NoError(t, err)

	// Upgrading skips the lock check, but prior pins still apply: the input
	// is not re-locked and resolution runs against the pinned revision.
	locker2 := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev2"}}
	lf, err := New(nil, mustManifest(t, contents), old, UpgradeAll(), locker2, factory).CreateLockfile(context.Background())
	require.NoError(t, err)

	// The registry still carries the old pin (upgrade does not unpin
	// inputs), but resolution no longer short-circuits via the lock check.
	require.NotNil(t, lf.Packages[linux]["hello"])
	assert.Equal(t, rev1, lf.Packages[linux]["hello"].Input)
	assert.Empty(t, locker2.locked)
}

func TestWrongGroupFallbackInput(t *testing.T) {
	before := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	after := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
    group: tools
systems: [` + linux + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	prior, err := New(nil, mustManifest(t, before), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)
	old, err := lockfile.ReadLockfileContents(priorBytes)
	require.NoError(t, err)

	// The group name changed, so the group is no longer locked; the old
	// input is still found via the wrong-group fallback and reused.
	env := New(nil, mustManifest(t, after), old, UpgradeNone(), locker, factory)
	lf, err := env.CreateLockfile(context.Background())
	require.NoError(t, err)
	require.NotNil(t, lf.Packages[linux]["hello"])
	assert.Equal(t, locked, lf.Packages[linux]["hello"].Input)
}

func TestIdempotentResolution(t *testing.T) {
	contents := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
  world:
    name: world
    group: tools
systems: [` + linux + `, ` + darwin + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux, darwin}, "hello", "world"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	first, err := New(nil, mustManifest(t, contents), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	firstBytes, err := first.Marshal()
	require.NoError(t, err)

	old, err := lockfile.ReadLockfileContents(firstBytes)
	require.NoError(t, err)
	second, err := New(nil, mustManifest(t, contents), old, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	secondBytes, err := second.Marshal()
	require.NoError(t, err)

	assert.Equal(t, string(firstBytes), string(secondBytes))
}

func TestRegistryClosure(t *testing.T) {
	// Two inputs, only one used: the unused one is pruned and every locked
	// package's input appears in the registry.
	m := mustManifest(t, manifestHeader+`
registry:
  used:
    type: git
    url: https://example.com/used
  unused:
    type: git
    url: https://example.com/unused
install:
  hello:
    name: hello
systems: [`+linux+`]
`)

	usedLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/used", Rev: "rev1"}
	unusedLocked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/unused", Rev: "rev2"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		usedLocked.String():   catalogOf([]string{linux}, "hello"),
		unusedLocked.String(): catalogOf([]string{linux}, "other"),
	}}
	locker := &fakeLocker{revs: map[string]string{
		"https://example.com/used":   "rev1",
		"https://example.com/unused": "rev2",
	}}

	lf, err := New(nil, m, nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)

	_, ok := lf.Registry.Get("unused")
	assert.False(t, ok)

	for system, systemPackages := range lf.Packages {
		for iid, pkg := range systemPackages {
			if pkg == nil {
				continue
			}
			found := false
			for _, name := range lf.Registry.Names() {
				ref, _ := lf.Registry.Get(name)
				if ref.String() == pkg.Input.String() {
					found = true
				}
			}
			assert.True(t, found, "input of %s/%s missing from registry", system, iid)
		}
	}
}

func TestGroupIsLocked(t *testing.T) {
	contents := manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
systems: [` + linux + `]
`
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/nixpkgs", Rev: "rev1"}
	factory := &fakeFactory{catalogs: map[string]*pkgdb.Catalog{
		locked.String(): catalogOf([]string{linux}, "hello", "other"),
	}}
	locker := &fakeLocker{revs: map[string]string{"https://example.com/nixpkgs": "rev1"}}

	prior, err := New(nil, mustManifest(t, contents), nil, UpgradeNone(), locker, factory).CreateLockfile(context.Background())
	require.NoError(t, err)
	priorBytes, err := prior.Marshal()
	require.NoError(t, err)

	tests := []struct {
		name     string
		manifest string
		upgrades UpgradeSelector
		want     bool
	}{
		{
			name:     "unchanged",
			manifest: contents,
			upgrades: UpgradeNone(),
			want:     true,
		},
		{
			name:     "upgrade scheduled",
			manifest: contents,
			upgrades: UpgradeGroups("default"),
			want:     false,
		},
		{
			name: "name changed",
			manifest: manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: other
systems: [` + linux + `]
`,
			upgrades: UpgradeNone(),
			want:     false,
		},
		{
			name: "priority changed",
			manifest: manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
    priority: 9
systems: [` + linux + `]
`,
			upgrades: UpgradeNone(),
			want:     true,
		},
		{
			name: "systems change elsewhere",
			manifest: manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
    systems: [` + linux + `, ` + darwin + `]
systems: [` + linux + `]
`,
			upgrades: UpgradeNone(),
			want:     true,
		},
		{
			name: "excluded from this system",
			manifest: manifestHeader + `
registry:
  nixpkgs:
    type: git
    url: https://example.com/nixpkgs
install:
  hello:
    name: hello
    systems: [` + darwin + `]
systems: [` + linux + `]
`,
			upgrades: UpgradeNone(),
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			old, err := lockfile.ReadLockfileContents(priorBytes)
			require.NoError(t, err)
			env := New(nil, mustManifest(t, tt.manifest), old, tt.upgrades, locker, factory)
			groups := env.manifest.GroupedDescriptors()
			require.Len(t, groups, 1)
			assert.Equal(t, tt.want, env.groupIsLocked(groups[0], linux))
		})
	}
}

func TestUpgradeSelector(t *testing.T) {
	assert.False(t, UpgradeNone().Upgrading("default"))
	assert.True(t, UpgradeAll().Upgrading("default"))
	assert.True(t, UpgradeGroups("tools").Upgrading("tools"))
	assert.False(t, UpgradeGroups("tools").Upgrading("default"))
}

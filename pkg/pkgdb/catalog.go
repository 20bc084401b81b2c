// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package pkgdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
	"github.com/samber/lo"

	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/schema"
)

const (
	CatalogKind       = "Catalog"
	CatalogVersion    = "v1"
	CatalogAPIVersion = schema.APIGroup + "/" + CatalogVersion
)

var ErrInvalidCatalog = fmt.Errorf("invalid package catalog")

// defaultSubtrees is the subtree precedence used when neither the input nor
// the descriptor restricts subtrees.
var defaultSubtrees = []string{"packages", "legacyPackages"}

// Catalog is the scraped package database of one input revision, as written
// by the catalog scraper.
type Catalog struct {
	schema.ManifestMeta `yaml:",inline"`

	// Systems that have been scraped into this catalog.
	Systems  []string        `yaml:"systems"`
	Packages []*CatalogEntry `yaml:"packages"`
}

type CatalogEntry struct {
	Subtree string   `yaml:"subtree"`
	System  string   `yaml:"system"`
	RelPath []string `yaml:"rel-path"`

	Pname       string `yaml:"pname"`
	Version     string `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`
	License     string `yaml:"license,omitempty"`
	Broken      bool   `yaml:"broken,omitempty"`
	Unfree      bool   `yaml:"unfree,omitempty"`
}

func ReadCatalog(filePath string) (*Catalog, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ReadCatalogContents(bytes)
}

func ReadCatalogContents(contents []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, err
	}

	s := schema.ManifestMeta{
		APIVersion: CatalogAPIVersion,
		Kind:       CatalogKind,
	}
	if err := s.ValidateSchema(c.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, err.Error())
	}
	return &c, nil
}

// CatalogDb implements Db over a scraped catalog document.
type CatalogDb struct {
	inputName string
	catalog   *Catalog
}

func NewCatalogDb(inputName string, catalog *Catalog) *CatalogDb {
	return &CatalogDb{inputName: inputName, catalog: catalog}
}

func (db *CatalogDb) ScrapeSystems(systems []string) error {
	for _, system := range systems {
		if !slices.Contains(db.catalog.Systems, system) {
			return fmt.Errorf("input %q: system %q has not been scraped; re-run the catalog scraper", db.inputName, system)
		}
	}
	return nil
}

func (db *CatalogDb) GetPackage(row RowID) (*Package, error) {
	if row < 0 || int(row) >= len(db.catalog.Packages) {
		return nil, fmt.Errorf("input %q: no such package row %d", db.inputName, row)
	}
	e := db.catalog.Packages[row]

	info := map[string]any{
		"pname": e.Pname,
	}
	if e.Version != "" {
		info["version"] = e.Version
	}
	if e.Description != "" {
		info["description"] = e.Description
	}
	if e.License != "" {
		info["license"] = e.License
	}
	info["broken"] = e.Broken
	info["unfree"] = e.Unfree

	return &Package{
		ID:      row,
		AbsPath: append([]string{e.Subtree, e.System}, e.RelPath...),
		RelPath: slices.Clone(e.RelPath),
		Subtree: e.Subtree,
		System:  e.System,
		Info:    info,
	}, nil
}

// Query filters and ranks rows: semver preference first, then rel-path
// lexical order, then subtree precedence. The ordering is total (row id
// breaks remaining ties), which keeps results deterministic.
func (db *CatalogDb) Query(args *PkgQueryArgs) ([]RowID, error) {
	var constraint *semver.Constraints
	if args.Semver != "" {
		var err error
		constraint, err = semver.NewConstraint(args.Semver)
		if err != nil {
			return nil, fmt.Errorf("invalid semver range %q: %w", args.Semver, err)
		}
	}

	subtrees := args.Subtrees
	if len(subtrees) == 0 {
		subtrees = defaultSubtrees
	}

	var rows []RowID
	for i, e := range db.catalog.Packages {
		if db.matches(e, args, constraint, subtrees) {
			rows = append(rows, RowID(i))
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return db.less(rows[i], rows[j], args, subtrees)
	})
	return rows, nil
}

func (db *CatalogDb) matches(e *CatalogEntry, args *PkgQueryArgs, constraint *semver.Constraints, subtrees []string) bool {
	if len(args.Systems) > 0 && !slices.Contains(args.Systems, e.System) {
		return false
	}
	if !slices.Contains(subtrees, e.Subtree) {
		return false
	}
	if args.Name != "" && args.Name != e.Pname && args.Name != lo.LastOrEmpty(e.RelPath) {
		return false
	}
	if len(args.PkgPath) > 0 && !slices.Equal(args.PkgPath, e.RelPath) {
		return false
	}
	if args.Version != "" && args.Version != e.Version {
		return false
	}
	if constraint != nil {
		v, err := semver.NewVersion(e.Version)
		if err != nil || !constraint.Check(v) {
			return false
		}
	}
	if e.Broken && !args.AllowBroken {
		return false
	}
	if e.Unfree && !args.AllowUnfree {
		return false
	}
	if len(args.AllowedLicenses) > 0 && e.License != "" && !slices.Contains(args.AllowedLicenses, e.License) {
		return false
	}
	return true
}

func (db *CatalogDb) less(a, b RowID, args *PkgQueryArgs, subtrees []string) bool {
	ea, eb := db.catalog.Packages[a], db.catalog.Packages[b]

	if c := compareVersions(ea.Version, eb.Version, args.PreferPreReleases); c != 0 {
		return c < 0
	}
	if c := slices.Compare(ea.RelPath, eb.RelPath); c != 0 {
		return c < 0
	}
	ia := slices.Index(subtrees, ea.Subtree)
	ib := slices.Index(subtrees, eb.Subtree)
	if ia != ib {
		return ia < ib
	}
	return a < b
}

// compareVersions ranks higher versions first. Releases outrank
// pre-releases unless pre-releases are preferred; versions that don't parse
// as semver rank last, ordered lexically among themselves.
func compareVersions(a, b string, preferPre bool) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)

	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}

	if !preferPre {
		preA := va.Prerelease() != ""
		preB := vb.Prerelease() != ""
		if preA != preB {
			if preA {
				return 1
			}
			return -1
		}
	}
	return vb.Compare(va)
}

// CatalogFactory opens catalog databases from the scrape cache. Path inputs
// read their catalog straight from the referenced file; all other inputs
// read the cache entry keyed by their locked revision.
type CatalogFactory struct {
	CacheDir string
}

func (f *CatalogFactory) Open(ctx context.Context, name string, ref registry.InputRef) (*Input, error) {
	if !ref.Locked() {
		return nil, fmt.Errorf("input %q: reference %q is not locked", name, ref.String())
	}

	path := ref.URL
	if ref.Type != registry.TypePath {
		path = filepath.Join(f.CacheDir, sanitizeRev(ref.Rev)+".yaml")
	}

	catalog, err := ReadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", name, err)
	}

	return &Input{
		Name: name,
		Ref:  ref,
		Db:   NewCatalogDb(name, catalog),
	}, nil
}

func sanitizeRev(rev string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '@', '+':
			return '-'
		default:
			return r
		}
	}, rev)
}

var _ Db = (*CatalogDb)(nil)
var _ InputFactory = (*CatalogFactory)(nil)

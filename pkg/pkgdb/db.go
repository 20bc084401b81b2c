// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pkgdb defines the read-only package database contract the
// resolver queries, and a catalog-file-backed implementation of it.
package pkgdb

import (
	"context"

	"github.com/nickryand/flox/pkg/registry"
)

// RowID identifies one package row within a database.
type RowID int

// Package is the full payload of one database row.
type Package struct {
	ID      RowID
	AbsPath []string
	RelPath []string
	Subtree string
	System  string
	// Info carries the remaining payload (pname, version, description, ...).
	Info map[string]any
}

// Db is the scraped package database of one locked input.
//
// Query is deterministic: identical args against identical contents return
// identical row lists. Rows are ranked by the database: semver preference
// first, then package path lexical order, then subtree precedence.
type Db interface {
	Query(args *PkgQueryArgs) ([]RowID, error)
	GetPackage(row RowID) (*Package, error)
	// ScrapeSystems ensures the given systems are indexed before querying.
	ScrapeSystems(systems []string) error
}

// Input is a named, locked input with its open database. It is shared
// read-only by all resolution calls of one invocation.
type Input struct {
	Name string
	Ref  registry.InputRef
	Db   Db
}

// FillQueryArgs layers this input's defaults into args.
func (in *Input) FillQueryArgs(args *PkgQueryArgs) {
	if len(args.Subtrees) == 0 {
		args.Subtrees = in.Ref.Subtrees
	}
}

// InputFactory opens the database behind a locked input reference.
// Opening an input not present in any registry is allowed; the resolver
// does this when reusing the input a group was previously locked to.
type InputFactory interface {
	Open(ctx context.Context, name string, ref registry.InputRef) (*Input, error)
}

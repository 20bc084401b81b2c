// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"github.com/samber/lo"

	"github.com/nickryand/flox/pkg/manifest"
	"github.com/nickryand/flox/pkg/pkgdb"
)

// baseQueryArgs projects merged options into the arguments every
// descriptor query starts from.
func baseQueryArgs(options *manifest.Options) pkgdb.PkgQueryArgs {
	args := pkgdb.PkgQueryArgs{}
	if options == nil {
		return args
	}
	if options.Allow != nil {
		args.AllowUnfree = lo.FromPtr(options.Allow.Unfree)
		args.AllowBroken = lo.FromPtr(options.Allow.Broken)
		args.AllowedLicenses = options.Allow.Licenses
	}
	if options.Semver != nil {
		args.PreferPreReleases = lo.FromPtr(options.Semver.PreferPreReleases)
	}
	return args
}

// fillDescriptorArgs layers a descriptor's match criteria into args.
func fillDescriptorArgs(args *pkgdb.PkgQueryArgs, d *manifest.Descriptor) {
	if d.Name != nil {
		args.Name = *d.Name
	}
	if len(d.PkgPath) > 0 {
		args.PkgPath = d.PkgPath
	}
	if d.Version != nil {
		args.Version = *d.Version
	}
	if d.Semver != nil {
		args.Semver = *d.Semver
	}
	if d.Subtree != nil {
		args.Subtrees = []string{*d.Subtree}
	}
}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package resolver decides, per target system, which input provides each
// declared package, reusing pins from a prior lockfile where they are
// still valid.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/nickryand/flox/pkg/inputlock"
	"github.com/nickryand/flox/pkg/lockfile"
	"github.com/nickryand/flox/pkg/manifest"
	"github.com/nickryand/flox/pkg/pkgdb"
	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/resolver/resolutionerrors"
)

// Environment drives one resolution invocation. It is single-threaded; the
// combined registry, options, base query args and open databases are
// computed on first use and treated as read-only afterwards.
type Environment struct {
	globalManifest *manifest.GlobalManifest
	manifest       *manifest.Manifest
	oldLockfile    *lockfile.Lockfile
	upgrades       UpgradeSelector

	locker inputlock.Locker
	inputs pkgdb.InputFactory

	combinedRegistryRaw   *registry.RegistryRaw
	combinedOptions       *manifest.Options
	combinedBaseQueryArgs *pkgdb.PkgQueryArgs
	dbs                   []*pkgdb.Input
	lockfileRaw           *lockfile.Lockfile
}

// New builds an Environment. globalManifest and oldLockfile may be nil.
func New(
	globalManifest *manifest.GlobalManifest,
	m *manifest.Manifest,
	oldLockfile *lockfile.Lockfile,
	upgrades UpgradeSelector,
	locker inputlock.Locker,
	inputs pkgdb.InputFactory,
) *Environment {
	return &Environment{
		globalManifest: globalManifest,
		manifest:       m,
		oldLockfile:    oldLockfile,
		upgrades:       upgrades,
		locker:         locker,
		inputs:         inputs,
	}
}

// CombinedRegistryRaw merges the global and environment registries, applies
// prior pins by name, and locks every remaining input. Every returned input
// carries a revision-pinned reference.
func (e *Environment) CombinedRegistryRaw(ctx context.Context) (registry.RegistryRaw, error) {
	if e.combinedRegistryRaw == nil {
		combined := registry.New()
		if e.globalManifest != nil {
			combined.Merge(e.globalManifest.Registry)
		}
		combined.Merge(e.manifest.Registry)

		for _, name := range combined.Names() {
			ref, _ := combined.Get(name)

			// Use the pinned input from the lock if it exists; lock the
			// input otherwise.
			if e.oldLockfile != nil {
				if pin, ok := e.oldLockfile.Registry.Get(name); ok {
					combined.Set(name, pin)
					continue
				}
			}

			locked, err := e.locker.Lock(ctx, ref)
			if err != nil {
				return registry.RegistryRaw{}, resolutionerrors.NewInputLockingFailedError(
					fmt.Errorf("input %q: %w", name, err))
			}
			combined.Set(name, locked)
		}

		for _, name := range combined.Names() {
			if ref, _ := combined.Get(name); !ref.Locked() {
				return registry.RegistryRaw{}, resolutionerrors.NewInternalInvariantError(
					fmt.Errorf("input %q left unlocked after registry merge", name))
			}
		}

		e.combinedRegistryRaw = &combined
	}
	return *e.combinedRegistryRaw, nil
}

// PkgDbRegistry opens the database of every merged input, in registry
// order, ensuring the manifest's systems have been scraped.
func (e *Environment) PkgDbRegistry(ctx context.Context) ([]*pkgdb.Input, error) {
	if e.dbs == nil {
		combined, err := e.CombinedRegistryRaw(ctx)
		if err != nil {
			return nil, err
		}

		inputs := make([]*pkgdb.Input, 0, combined.Len())
		for _, name := range combined.Names() {
			ref, _ := combined.Get(name)
			input, err := e.inputs.Open(ctx, name, ref)
			if err != nil {
				return nil, err
			}
			if err := input.Db.ScrapeSystems(e.manifest.Systems); err != nil {
				return nil, err
			}
			inputs = append(inputs, input)
		}
		e.dbs = inputs
	}
	return e.dbs, nil
}

func (e *Environment) oldManifest() *manifest.Manifest {
	if e.oldLockfile != nil {
		return e.oldLockfile.Manifest
	}
	return nil
}

// CombinedOptions merges option sets in order of increasing authority:
// global manifest, prior lockfile's manifest, current manifest.
func (e *Environment) CombinedOptions() *manifest.Options {
	if e.combinedOptions == nil {
		options := &manifest.Options{}
		if e.globalManifest != nil {
			options.Merge(e.globalManifest.Options)
		}
		if old := e.oldManifest(); old != nil {
			options.Merge(old.Options)
		}
		options.Merge(e.manifest.Options)
		e.combinedOptions = options
	}
	return e.combinedOptions
}

// CombinedBaseQueryArgs projects the combined options into the base query
// arguments supplied to every descriptor query. Callers get a copy.
func (e *Environment) CombinedBaseQueryArgs() pkgdb.PkgQueryArgs {
	if e.combinedBaseQueryArgs == nil {
		args := baseQueryArgs(e.CombinedOptions())
		e.combinedBaseQueryArgs = &args
	}
	return e.combinedBaseQueryArgs.Clone()
}

// groupIsLocked reports whether a group needs no re-resolution on this
// system: it is not scheduled for upgrade, and every member is locked in
// the old lockfile under an equivalent descriptor.
func (e *Environment) groupIsLocked(group *manifest.Group, system string) bool {
	if e.upgrades.Upgrading(group.Name) {
		return false
	}

	oldSystemPackages, ok := e.oldLockfile.Packages[system]
	if !ok {
		return false
	}
	oldDescriptors := e.oldLockfile.Descriptors()

	for _, iid := range group.IDs {
		descriptor := group.Descriptors[iid]

		oldDescriptor, ok := oldDescriptors[iid]
		if !ok {
			return false
		}

		// 'priority' is ignored here; it is applied later as a copy-through.
		if !descriptor.SamePackage(oldDescriptor) ||
			!descriptor.SameGroup(oldDescriptor) ||
			descriptor.Optional != oldDescriptor.Optional {
			return false
		}

		// Ignore changes to systems other than the one we're locking.
		if descriptor.ExcludesSystem(system) != oldDescriptor.ExcludesSystem(system) {
			return false
		}

		// The descriptor must also exist in the old lock itself. A nil
		// entry (optional-and-unresolved or excluded) still counts.
		if _, ok := oldSystemPackages[iid]; !ok {
			return false
		}
	}

	return true
}

func (e *Environment) unlockedGroups(system string) manifest.Groups {
	groups := e.manifest.GroupedDescriptors()
	if e.oldLockfile == nil {
		return groups
	}
	return lo.Filter(groups, func(g *manifest.Group, _ int) bool {
		return !e.groupIsLocked(g, system)
	})
}

func (e *Environment) lockedGroups(system string) manifest.Groups {
	if e.oldLockfile == nil {
		return nil
	}
	return lo.Filter(e.manifest.GroupedDescriptors(), func(g *manifest.Group, _ int) bool {
		return e.groupIsLocked(g, system)
	})
}

// tryResolveDescriptorIn queries one input for one descriptor. A nil row
// means "this input does not supply this package" - ordinary control flow,
// not an error.
func (e *Environment) tryResolveDescriptorIn(
	descriptor *manifest.Descriptor,
	input *pkgdb.Input,
	system string,
) (*pkgdb.RowID, error) {
	slog.Debug("resolving descriptor",
		"path", descriptor.PkgPath.String(),
		"name", lo.FromPtr(descriptor.Name))

	// Skip unrequested systems.
	if descriptor.ExcludesSystem(system) {
		return nil, nil
	}
	// Honor an input restriction when the input is named.
	if descriptor.Input != nil && input.Name != "" && *descriptor.Input != input.Name {
		return nil, nil
	}

	args := e.CombinedBaseQueryArgs()
	input.FillQueryArgs(&args)
	fillDescriptorArgs(&args, descriptor)
	// Limit results to the target system.
	args.Systems = []string{system}

	rows, err := input.Db.Query(&args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		slog.Debug("package not found in input")
		return nil, nil
	}
	return &rows[0], nil
}

// lockPackage converts a matched row into a LockedPackage, stripping the
// payload fields the lockfile records elsewhere.
func (e *Environment) lockPackage(input *pkgdb.Input, row pkgdb.RowID, priority uint) (*lockfile.LockedPackage, error) {
	pkg, err := input.Db.GetPackage(row)
	if err != nil {
		return nil, err
	}

	info := maps.Clone(pkg.Info)
	if info == nil {
		info = map[string]any{}
	}
	for _, key := range []string{"absPath", "relPath", "subtree", "id", "system"} {
		delete(info, key)
	}

	return &lockfile.LockedPackage{
		Input:    input.Ref,
		AttrPath: slices.Clone(pkg.AbsPath),
		Priority: priority,
		Info:     info,
	}, nil
}

// groupInput extracts the input this group was previously locked to, so it
// can be tried before the registry inputs. An input locked under the same
// group wins immediately; an input whose descriptor merely moved groups is
// remembered as a fallback, first one encountered.
func (e *Environment) groupInput(group *manifest.Group, system string) *registry.InputRef {
	oldSystemPackages, ok := e.oldLockfile.Packages[system]
	if !ok {
		return nil
	}
	oldDescriptors := e.oldLockfile.Descriptors()

	var wrongGroupInput *registry.InputRef
	for _, iid := range group.IDs {
		descriptor := group.Descriptors[iid]

		lockedPackage, ok := oldSystemPackages[iid]
		if !ok || lockedPackage == nil {
			continue
		}
		oldDescriptor, ok := oldDescriptors[iid]
		if !ok {
			continue
		}

		// Don't reuse a locked input if the package itself has changed.
		if !descriptor.SamePackage(oldDescriptor) {
			continue
		}

		if descriptor.SameGroup(oldDescriptor) {
			ref := lockedPackage.Input
			return &ref
		}

		if wrongGroupInput == nil {
			ref := lockedPackage.Input
			wrongGroupInput = &ref
		}
	}
	return wrongGroupInput
}

// groupResolution is the outcome of resolving one group against one input:
// either a complete SystemPackages, or the first install ID that failed.
type groupResolution struct {
	resolved lockfile.SystemPackages
	failedID manifest.InstallID
	ok       bool
}

func (e *Environment) tryResolveGroupIn(
	group *manifest.Group,
	input *pkgdb.Input,
	system string,
) (groupResolution, error) {
	inputName := input.Name
	if inputName == "" {
		inputName = "<none>"
	}
	slog.Debug("resolving group in input", "input", inputName)

	rows := map[manifest.InstallID]*pkgdb.RowID{}
	for _, iid := range group.IDs {
		descriptor := group.Descriptors[iid]
		slog.Debug("resolving install ID", "iid", iid)

		if descriptor.ExcludesSystem(system) {
			rows[iid] = nil
			continue
		}

		// If resolution fails, report the first failed descriptor.
		row, err := e.tryResolveDescriptorIn(descriptor, input, system)
		if err != nil {
			return groupResolution{}, err
		}
		if row == nil && !descriptor.Optional {
			return groupResolution{failedID: iid}, nil
		}
		slog.Debug("found match for install ID", "iid", iid)
		rows[iid] = row
	}

	pkgs := lockfile.SystemPackages{}
	for _, iid := range group.IDs {
		row := rows[iid]
		if row == nil {
			pkgs[iid] = nil
			continue
		}
		locked, err := e.lockPackage(input, *row, group.Descriptors[iid].EffectivePriority())
		if err != nil {
			return groupResolution{}, err
		}
		pkgs[iid] = locked
	}

	return groupResolution{resolved: pkgs, ok: true}, nil
}

// tryResolveGroup resolves one group: first against the input it was
// previously locked to (unless upgrading), then against every input in the
// merged registry. Returns the resolved packages, or the attempts made
// before giving up.
func (e *Environment) tryResolveGroup(
	ctx context.Context,
	group *manifest.Group,
	system string,
) (lockfile.SystemPackages, *resolutionerrors.GroupFailure, error) {
	slog.Debug("starting resolution for group",
		"group", group.Name,
		"members", strings.Join(group.IDs, " "))

	failure := resolutionerrors.GroupFailure{Group: group.Name}

	var oldGroupInput *pkgdb.Input
	if !e.upgrades.Upgrading(group.Name) && e.oldLockfile != nil {
		slog.Debug("using old lockfile")
		if lockedRef := e.groupInput(group, system); lockedRef != nil {
			slog.Debug("group previously had input", "input", lockedRef.String())

			input, err := e.inputs.Open(ctx, "", *lockedRef)
			if err != nil {
				return nil, nil, err
			}
			oldGroupInput = input

			result, err := e.tryResolveGroupIn(group, input, system)
			if err != nil {
				return nil, nil, err
			}
			// Resolving with the same input+rev as the old pin means no
			// churn; we're done.
			if result.ok {
				return result.resolved, nil, nil
			}
			failure.Attempts = append(failure.Attempts, resolutionerrors.Attempt{
				InstallID: result.failedID,
				InputURL:  input.Ref.String(),
			})
		}
	}

	inputs, err := e.PkgDbRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, input := range inputs {
		// Already tried above.
		if oldGroupInput != nil && input.Ref.String() == oldGroupInput.Ref.String() {
			continue
		}

		result, err := e.tryResolveGroupIn(group, input, system)
		if err != nil {
			return nil, nil, err
		}
		if result.ok {
			if oldGroupInput != nil {
				slog.Info(fmt.Sprintf("upgrading group '%s' to avoid resolution failure", group.Name))
			}
			return result.resolved, nil, nil
		}
		failure.Attempts = append(failure.Attempts, resolutionerrors.Attempt{
			InstallID: result.failedID,
			InputURL:  input.Ref.String(),
		})
	}

	return nil, &failure, nil
}

// lockSystem resolves every unlocked group for one system, copies still-
// locked groups over from the old lockfile (updating priorities), and
// records the merged result. All groups are attempted so the final error
// is complete.
func (e *Environment) lockSystem(ctx context.Context, system string) error {
	pkgs := lockfile.SystemPackages{}

	var failures []resolutionerrors.GroupFailure
	for _, group := range e.unlockedGroups(system) {
		resolved, failure, err := e.tryResolveGroup(ctx, group, system)
		if err != nil {
			return err
		}
		if failure != nil {
			failures = append(failures, *failure)
			continue
		}
		maps.Copy(pkgs, resolved)
	}

	if len(failures) > 0 {
		// No attempts recorded means there was nothing to try.
		if len(failures[0].Attempts) == 0 {
			return resolutionerrors.NewEmptyRegistryError()
		}
		return resolutionerrors.NewResolutionFailureError(&resolutionerrors.Failure{Groups: failures})
	}

	// Copy over old lockfile entries we want to keep, updating the
	// priority from the new manifest.
	if e.oldLockfile != nil {
		if oldSystemPackages, ok := e.oldLockfile.Packages[system]; ok {
			for _, group := range e.lockedGroups(system) {
				for _, iid := range group.IDs {
					oldPackage, ok := oldSystemPackages[iid]
					if !ok {
						continue
					}
					copied := oldPackage.Clone()
					if copied != nil {
						copied.Priority = group.Descriptors[iid].EffectivePriority()
					}
					pkgs[iid] = copied
				}
			}
		}
	}

	e.lockfileRaw.Packages[system] = pkgs
	return nil
}

// CreateLockfile resolves every system in the manifest and assembles the
// lockfile: manifest snapshot, locked registry (pruned of unused inputs),
// and per-system package pins.
func (e *Environment) CreateLockfile(ctx context.Context) (*lockfile.Lockfile, error) {
	if e.lockfileRaw == nil {
		combined, err := e.CombinedRegistryRaw(ctx)
		if err != nil {
			return nil, err
		}
		e.lockfileRaw = lockfile.New(e.manifest, combined.Clone())

		for _, system := range e.manifest.Systems {
			if err := e.lockSystem(ctx, system); err != nil {
				e.lockfileRaw = nil
				return nil, err
			}
		}
	}

	e.lockfileRaw.RemoveUnusedInputs()
	return e.lockfileRaw, nil
}

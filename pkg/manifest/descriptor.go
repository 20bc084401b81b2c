// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
)

// InstallID uniquely identifies a descriptor within a manifest.
type InstallID = string

// DefaultGroup is the group descriptors belong to when they don't declare one.
const DefaultGroup = "default"

// DefaultPriority is passed through to the lockfile when a descriptor doesn't
// declare a priority. It does not affect resolution.
const DefaultPriority uint = 5

var ErrInvalidDescriptor = fmt.Errorf("invalid install descriptor")

// Descriptor is a declared request for a package.
type Descriptor struct {
	Name    *string `yaml:"name,omitempty"`
	PkgPath PkgPath `yaml:"pkg-path,omitempty"`
	Version *string `yaml:"version,omitempty"`
	Semver  *string `yaml:"semver,omitempty"`
	Subtree *string `yaml:"subtree,omitempty"`
	Input   *string `yaml:"input,omitempty"`

	Group    *string  `yaml:"group,omitempty"`
	Systems  []string `yaml:"systems,omitempty"`
	Optional bool     `yaml:"optional,omitempty"`
	Priority *uint    `yaml:"priority,omitempty"`
}

// PkgPath is a dotted attribute path. It may be written in YAML as either a
// dotted string ("python3.pkgs.pip") or a list of components.
type PkgPath []string

func (p *PkgPath) UnmarshalYAML(data []byte) error {
	var s string
	if err := yaml.Unmarshal(data, &s); err == nil {
		*p = strings.Split(s, ".")
		return nil
	}
	var parts []string
	if err := yaml.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("failed to unmarshal 'pkg-path': %w", err)
	}
	*p = parts
	return nil
}

func (p PkgPath) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(p.String())
}

func (p PkgPath) String() string {
	return strings.Join(p, ".")
}

var _ yaml.BytesUnmarshaler = (*PkgPath)(nil)
var _ yaml.BytesMarshaler = PkgPath{}

func (d *Descriptor) Validate(iid InstallID) error {
	if d.Name == nil && len(d.PkgPath) == 0 {
		return fmt.Errorf("%w %q: one of 'name' or 'pkg-path' is required", ErrInvalidDescriptor, iid)
	}
	if d.Version != nil && d.Semver != nil {
		return fmt.Errorf("%w %q: 'version' and 'semver' are mutually exclusive", ErrInvalidDescriptor, iid)
	}
	if d.Semver != nil {
		if _, err := semver.NewConstraint(*d.Semver); err != nil {
			return fmt.Errorf("%w %q: invalid semver range %q: %s", ErrInvalidDescriptor, iid, *d.Semver, err.Error())
		}
	}
	return nil
}

// GroupName returns the declared group, or the default group.
func (d *Descriptor) GroupName() string {
	if d.Group != nil {
		return *d.Group
	}
	return DefaultGroup
}

func (d *Descriptor) EffectivePriority() uint {
	if d.Priority != nil {
		return *d.Priority
	}
	return DefaultPriority
}

// ExcludesSystem reports whether a 'systems' restriction makes this
// descriptor irrelevant on the given system.
func (d *Descriptor) ExcludesSystem(system string) bool {
	return d.Systems != nil && !slices.Contains(d.Systems, system)
}

// SamePackage reports whether two descriptors request the same package.
// The compared fields control what the package *is*; 'optional' and
// 'systems' only control behavior when resolution fails, 'priority' is a
// copy-through, and 'group' is the caller's concern.
func (d *Descriptor) SamePackage(o *Descriptor) bool {
	return eqPtr(d.Name, o.Name) &&
		slices.Equal(d.PkgPath, o.PkgPath) &&
		eqPtr(d.Version, o.Version) &&
		eqPtr(d.Semver, o.Semver) &&
		eqPtr(d.Subtree, o.Subtree) &&
		eqPtr(d.Input, o.Input)
}

// SameGroup compares the declared group fields without applying the
// default: an explicit "default" and an absent group are distinct here.
func (d *Descriptor) SameGroup(o *Descriptor) bool {
	return eqPtr(d.Group, o.Group)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Group is the unit of atomic resolution: every required member must come
// from the same input at the same locked revision.
type Group struct {
	Name string
	// IDs holds the members in manifest declaration order.
	IDs         []InstallID
	Descriptors map[InstallID]*Descriptor
}

type Groups []*Group

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/schema"
)

const (
	ManifestKind       = "Manifest"
	ManifestVersion    = "v1"
	ManifestAPIVersion = schema.APIGroup + "/" + ManifestVersion

	GlobalManifestKind       = "GlobalManifest"
	GlobalManifestAPIVersion = schema.APIGroup + "/" + ManifestVersion
)

var ErrInvalidManifest = fmt.Errorf("invalid manifest")

// Manifest is the user-authored environment manifest.
type Manifest struct {
	schema.ManifestMeta `yaml:",inline"`

	Registry registry.RegistryRaw `yaml:"registry"`
	Options  *Options             `yaml:"options,omitempty"`
	Install  InstallTable         `yaml:"install"`
	Systems  []string             `yaml:"systems,omitempty"`
}

// GlobalManifest supplies a baseline registry and options shared by every
// environment of a user.
type GlobalManifest struct {
	schema.ManifestMeta `yaml:",inline"`

	Registry registry.RegistryRaw `yaml:"registry,omitempty"`
	Options  *Options             `yaml:"options,omitempty"`
}

// InstallTable is the ordered InstallID -> Descriptor mapping. Iteration
// order is the manifest's declaration order; it drives group ordering
// during resolution.
type InstallTable struct {
	ids         []InstallID
	descriptors map[InstallID]*Descriptor
}

func (t InstallTable) Len() int {
	return len(t.ids)
}

func (t InstallTable) IDs() []InstallID {
	out := make([]InstallID, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t InstallTable) Get(iid InstallID) (*Descriptor, bool) {
	d, ok := t.descriptors[iid]
	return d, ok
}

func (t *InstallTable) Set(iid InstallID, d *Descriptor) {
	if t.descriptors == nil {
		t.descriptors = map[InstallID]*Descriptor{}
	}
	if _, ok := t.descriptors[iid]; !ok {
		t.ids = append(t.ids, iid)
	}
	t.descriptors[iid] = d
}

func (t *InstallTable) UnmarshalYAML(data []byte) error {
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return err
	}

	*t = InstallTable{descriptors: map[InstallID]*Descriptor{}}
	for _, item := range ms {
		iid, ok := item.Key.(string)
		if !ok {
			return fmt.Errorf("%w: non-string install ID %v", ErrInvalidManifest, item.Key)
		}
		raw, err := yaml.Marshal(item.Value)
		if err != nil {
			return err
		}
		var d Descriptor
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("install %q: %w", iid, err)
		}
		t.Set(iid, &d)
	}
	return nil
}

func (t InstallTable) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(t.descriptors)
}

var _ yaml.BytesUnmarshaler = (*InstallTable)(nil)
var _ yaml.BytesMarshaler = InstallTable{}

func ReadManifest(filePath string) (*Manifest, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	bytes, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return ReadManifestContents(bytes)
}

func ReadManifestContents(contents []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(contents, &m); err != nil {
		return nil, err
	}

	s := schema.ManifestMeta{
		APIVersion: ManifestAPIVersion,
		Kind:       ManifestKind,
	}
	if err := s.ValidateSchema(m.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	if len(m.Systems) == 0 {
		return fmt.Errorf("%w: 'systems' must name at least one target system", ErrInvalidManifest)
	}
	if err := m.Registry.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	}
	for _, iid := range m.Install.IDs() {
		d, _ := m.Install.Get(iid)
		if err := d.Validate(iid); err != nil {
			return err
		}
	}
	return nil
}

func ReadGlobalManifest(filePath string) (*GlobalManifest, error) {
	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ReadGlobalManifestContents(bytes)
}

func ReadGlobalManifestContents(contents []byte) (*GlobalManifest, error) {
	var m GlobalManifest
	if err := yaml.Unmarshal(contents, &m); err != nil {
		return nil, err
	}

	s := schema.ManifestMeta{
		APIVersion: GlobalManifestAPIVersion,
		Kind:       GlobalManifestKind,
	}
	if err := s.ValidateSchema(m.ManifestMeta); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidManifest, err.Error())
	}
	return &m, nil
}

// GroupedDescriptors partitions the install table into groups. Group order
// follows the first appearance of each group in the install table; member
// order within a group follows the table.
func (m *Manifest) GroupedDescriptors() Groups {
	var groups Groups
	byName := map[string]*Group{}

	for _, iid := range m.Install.IDs() {
		d, _ := m.Install.Get(iid)
		name := d.GroupName()
		g, ok := byName[name]
		if !ok {
			g = &Group{Name: name, Descriptors: map[InstallID]*Descriptor{}}
			byName[name] = g
			groups = append(groups, g)
		}
		g.IDs = append(g.IDs, iid)
		g.Descriptors[iid] = d
	}

	return groups
}

// Descriptors flattens the install table for lock-equivalence comparisons.
func (m *Manifest) Descriptors() map[InstallID]*Descriptor {
	out := make(map[InstallID]*Descriptor, m.Install.Len())
	for _, iid := range m.Install.IDs() {
		d, _ := m.Install.Get(iid)
		out[iid] = d
	}
	return out
}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/goccy/go-yaml"
	"github.com/samber/lo"
)

const (
	TypeGit  = "git"
	TypeOci  = "oci"
	TypePath = "path"
)

var ErrInvalidInputRef = fmt.Errorf("invalid input reference")

// InputRef points at a package source. The unlocked form carries a mutable
// reference (a branch or tag); the locked form pins a revision.
type InputRef struct {
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
	Ref  string `yaml:"ref,omitempty"`
	Rev  string `yaml:"rev,omitempty"`

	// Subtrees restricts which catalog subtrees queries against this input
	// search by default. Not part of the locked identity.
	Subtrees []string `yaml:"subtrees,omitempty"`
}

func (r InputRef) Locked() bool {
	return r.Rev != ""
}

func (r InputRef) Validate() error {
	if !slices.Contains([]string{TypeGit, TypeOci, TypePath}, r.Type) {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidInputRef, r.Type)
	}
	if r.URL == "" {
		return fmt.Errorf("%w: missing 'url'", ErrInvalidInputRef)
	}
	return nil
}

// String renders the canonical URL form used in lock-equality checks and
// resolution failure messages.
func (r InputRef) String() string {
	switch r.Type {
	case TypeOci:
		s := "oci://" + r.URL
		if r.Ref != "" {
			s += ":" + r.Ref
		}
		if r.Rev != "" {
			s += "@" + r.Rev
		}
		return s
	case TypePath:
		s := "path:" + r.URL
		if r.Rev != "" {
			s += "?rev=" + url.QueryEscape(r.Rev)
		}
		return s
	default:
		s := "git+" + r.URL
		params := url.Values{}
		if r.Ref != "" {
			params.Set("ref", r.Ref)
		}
		if r.Rev != "" {
			params.Set("rev", r.Rev)
		}
		if len(params) > 0 {
			s += "?" + params.Encode()
		}
		return s
	}
}

// RegistryRaw is an ordered name -> InputRef mapping. Iteration order is
// declaration order; later merges keep the position of existing names and
// append new ones.
type RegistryRaw struct {
	names  []string
	inputs map[string]InputRef
}

func New() RegistryRaw {
	return RegistryRaw{inputs: map[string]InputRef{}}
}

func (r RegistryRaw) Len() int {
	return len(r.names)
}

func (r RegistryRaw) Names() []string {
	return slices.Clone(r.names)
}

func (r RegistryRaw) Get(name string) (InputRef, bool) {
	ref, ok := r.inputs[name]
	return ref, ok
}

func (r *RegistryRaw) Set(name string, ref InputRef) {
	if r.inputs == nil {
		r.inputs = map[string]InputRef{}
	}
	if _, ok := r.inputs[name]; !ok {
		r.names = append(r.names, name)
	}
	r.inputs[name] = ref
}

func (r *RegistryRaw) Delete(name string) {
	if _, ok := r.inputs[name]; !ok {
		return
	}
	delete(r.inputs, name)
	r.names = lo.Without(r.names, name)
}

func (r RegistryRaw) Clone() RegistryRaw {
	return RegistryRaw{
		names:  slices.Clone(r.names),
		inputs: lo.Assign(map[string]InputRef{}, r.inputs),
	}
}

// Merge overlays other on top of r. Existing names keep their position and
// take other's reference; new names are appended in other's order.
func (r *RegistryRaw) Merge(other RegistryRaw) {
	for _, name := range other.names {
		r.Set(name, other.inputs[name])
	}
}

func (r RegistryRaw) Validate() error {
	for _, name := range r.names {
		if err := r.inputs[name].Validate(); err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
	}
	return nil
}

func (r *RegistryRaw) UnmarshalYAML(data []byte) error {
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return err
	}

	*r = New()
	for _, item := range ms {
		name, ok := item.Key.(string)
		if !ok {
			return fmt.Errorf("%w: non-string input name %v", ErrInvalidInputRef, item.Key)
		}
		raw, err := yaml.Marshal(item.Value)
		if err != nil {
			return err
		}
		var ref InputRef
		if err := yaml.Unmarshal(raw, &ref); err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		r.Set(name, ref)
	}
	return nil
}

// MarshalYAML emits inputs sorted by name. Declaration order only matters
// for resolution, which always reads it from the manifests.
func (r RegistryRaw) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(r.inputs)
}

var _ yaml.BytesUnmarshaler = (*RegistryRaw)(nil)
var _ yaml.BytesMarshaler = RegistryRaw{}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package inputlock

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	orasregistry "oras.land/oras-go/v2/registry"

	"github.com/nickryand/flox/pkg/registry"
)

// lockOci resolves an oci input's tag to a manifest digest.
func (l *RefLocker) lockOci(ctx context.Context, ref registry.InputRef) (registry.InputRef, error) {
	tag := ref.Ref
	if tag == "" {
		tag = "latest"
	}

	// Validate the repository reference the way the registry will see it.
	parsed, err := orasregistry.ParseReference(strings.TrimPrefix(ref.URL, "oci://") + ":" + tag)
	if err != nil {
		return registry.InputRef{}, fmt.Errorf("failed to parse oci reference %q: %w", ref.URL, err)
	}

	opts := []name.Option{}
	if l.config != nil && l.config.Insecure {
		opts = append(opts, name.Insecure)
	}
	target, err := name.ParseReference(fmt.Sprintf("%s/%s:%s", parsed.Registry, parsed.Repository, parsed.Reference), opts...)
	if err != nil {
		return registry.InputRef{}, err
	}

	auth, err := credentialFor(parsed.Registry)
	if err != nil {
		return registry.InputRef{}, err
	}

	desc, err := remote.Head(target, remote.WithAuth(auth), remote.WithContext(ctx))
	if err != nil {
		return registry.InputRef{}, fmt.Errorf("failed to resolve oci tag %q: %w", tag, err)
	}
	if err := checkMediaType(desc); err != nil {
		return registry.InputRef{}, err
	}

	ref.Ref = tag
	ref.Rev = desc.Digest.String()
	return ref, nil
}

func checkMediaType(desc *v1.Descriptor) error {
	switch string(desc.MediaType) {
	case ocispec.MediaTypeImageManifest, ocispec.MediaTypeImageIndex:
		return nil
	default:
		return fmt.Errorf("unexpected media type %q for catalog artifact", desc.MediaType)
	}
}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package inputlock converts mutable input references into revision-pinned
// ones. Locking is idempotent: an already-locked reference is returned
// unchanged.
package inputlock

import (
	"context"
	"fmt"

	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/registry"
)

type Locker interface {
	Lock(ctx context.Context, ref registry.InputRef) (registry.InputRef, error)
}

// RefLocker pins git refs by listing the remote, oci tags by digest, and
// path inputs by fingerprinting their catalog file.
type RefLocker struct {
	config *floxconfig.Config
}

func New(config *floxconfig.Config) *RefLocker {
	return &RefLocker{config: config}
}

func (l *RefLocker) Lock(ctx context.Context, ref registry.InputRef) (registry.InputRef, error) {
	if ref.Locked() {
		return ref, nil
	}
	if err := ref.Validate(); err != nil {
		return registry.InputRef{}, err
	}

	switch ref.Type {
	case registry.TypeGit:
		return l.lockGit(ctx, ref)
	case registry.TypeOci:
		return l.lockOci(ctx, ref)
	case registry.TypePath:
		return l.lockPath(ref)
	default:
		return registry.InputRef{}, fmt.Errorf("%w: unsupported type %q", registry.ErrInvalidInputRef, ref.Type)
	}
}

var _ Locker = (*RefLocker)(nil)

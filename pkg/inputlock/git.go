// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package inputlock

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/nickryand/flox/pkg/registry"
)

// lockGit resolves ref.Ref (a branch or tag, HEAD when empty) to a commit
// hash by listing the remote's references.
func (l *RefLocker) lockGit(ctx context.Context, ref registry.InputRef) (registry.InputRef, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{ref.URL},
	})

	remoteRefs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return registry.InputRef{}, fmt.Errorf("failed to list refs of %q: %w", ref.URL, err)
	}

	wanted := []plumbing.ReferenceName{plumbing.HEAD}
	if ref.Ref != "" {
		wanted = []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(ref.Ref),
			plumbing.NewTagReferenceName(ref.Ref),
		}
	}

	byName := map[plumbing.ReferenceName]*plumbing.Reference{}
	for _, r := range remoteRefs {
		byName[r.Name()] = r
	}

	for _, name := range wanted {
		r, ok := byName[name]
		if !ok {
			continue
		}
		hash := r.Hash()
		// HEAD comes back as a symbolic reference.
		if r.Type() == plumbing.SymbolicReference {
			target, ok := byName[r.Target()]
			if !ok {
				continue
			}
			hash = target.Hash()
		}
		// Annotated tags point at a tag object; the listing carries the
		// commit they peel to under "<tag>^{}".
		if peeled, ok := byName[plumbing.ReferenceName(string(name)+"^{}")]; ok {
			hash = peeled.Hash()
		}
		ref.Rev = hash.String()
		return ref, nil
	}

	return registry.InputRef{}, fmt.Errorf("reference %q not found in %q", ref.Ref, ref.URL)
}

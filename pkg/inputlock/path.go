// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package inputlock

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/nickryand/flox/pkg/registry"
)

// lockPath pins a path input by fingerprinting its catalog file. Identical
// contents produce identical revisions, so path pins behave like
// content-addressed references.
func (l *RefLocker) lockPath(ref registry.InputRef) (registry.InputRef, error) {
	f, err := os.Open(ref.URL)
	if err != nil {
		return registry.InputRef{}, fmt.Errorf("failed to open path input %q: %w", ref.URL, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return registry.InputRef{}, err
	}

	ref.Rev = fmt.Sprintf("xxh64:%016x", h.Sum64())
	return ref, nil
}

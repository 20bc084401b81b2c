// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package lockfile

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/nickryand/flox/pkg/utils"
)

// Marshal emits the canonical serialization: map keys sorted, absent
// packages as explicit nulls. Byte-identical for identical lockfiles.
func (l *Lockfile) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// Write emits the lockfile under a sibling write lock, so concurrent
// invocations against the same environment don't interleave.
func (l *Lockfile) Write(ctx context.Context, filePath string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}

	return utils.WithFileLock(ctx, filePath+".flock", func() error {
		return os.WriteFile(filePath, data, 0644)
	})
}

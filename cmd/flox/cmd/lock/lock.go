// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickryand/flox/pkg/envsetup"
	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/resolver"
)

var ErrLockfileOutOfSync = errors.New(floxconfig.LockfileName + " needs to be updated; please run 'flox lock'")

func Cmd(config *floxconfig.Config) *cobra.Command {
	var dir string
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "resolve the environment manifest and write the lockfile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, paths, err := envsetup.NewEnvironment(config, dir, resolver.UpgradeNone())
			if err != nil {
				return err
			}

			lf, err := env.CreateLockfile(cmd.Context())
			if err != nil {
				return err
			}

			if checkOnly {
				expected, err := lf.Marshal()
				if err != nil {
					return err
				}
				existing, err := os.ReadFile(paths.LockfilePath)
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("%w: %w", ErrLockfileOutOfSync, err)
				}
				if err != nil {
					return err
				}
				if !bytes.Equal(existing, expected) {
					return ErrLockfileOutOfSync
				}
				return nil
			}

			return lf.Write(cmd.Context(), paths.LockfilePath)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "environment directory containing "+floxconfig.ManifestFileName)
	cmd.Flags().BoolVar(&checkOnly, "check", false, "check existing lockfile but don't update it")

	return cmd
}

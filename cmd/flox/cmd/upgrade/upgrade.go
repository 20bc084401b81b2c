// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package upgrade

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nickryand/flox/pkg/envsetup"
	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/resolver"
)

func Cmd(config *floxconfig.Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "upgrade [group...]",
		Short: "re-resolve groups even when their pins are still valid",
		Long: `re-resolve groups even when their pins are still valid

	with no arguments every group is upgraded; otherwise only the named groups.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			upgrades := resolver.UpgradeAll()
			if len(args) > 0 {
				upgrades = resolver.UpgradeGroups(args...)
			} else {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "no groups named; upgrading every group")
			}

			env, paths, err := envsetup.NewEnvironment(config, dir, upgrades)
			if err != nil {
				return err
			}

			lf, err := env.CreateLockfile(cmd.Context())
			if err != nil {
				return err
			}

			return lf.Write(cmd.Context(), paths.LockfilePath)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "environment directory containing "+floxconfig.ManifestFileName)

	return cmd
}

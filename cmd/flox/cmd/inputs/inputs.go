// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package inputs

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nickryand/flox/pkg/envsetup"
	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/registry"
	"github.com/nickryand/flox/pkg/resolver"
)

func Cmd(config *floxconfig.Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "inputs",
		Short: "show the merged, locked input registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _, err := envsetup.NewEnvironment(config, dir, resolver.UpgradeNone())
			if err != nil {
				return err
			}

			combined, err := env.CombinedRegistryRaw(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Println(renderTable(combined))
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "environment directory containing "+floxconfig.ManifestFileName)

	return cmd
}

func renderTable(combined registry.RegistryRaw) string {
	header := lipgloss.NewStyle().Bold(true)

	return table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		Headers(header.Render("NAME"), header.Render("TYPE"), header.Render("URL"), header.Render("REV")).
		Rows(lo.Map(combined.Names(), func(name string, _ int) []string {
			ref, _ := combined.Get(name)
			return []string{name, ref.Type, ref.URL, ref.Rev}
		})...).
		String()
}

// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nickryand/flox/cmd/flox/cmd/inputs"
	"github.com/nickryand/flox/cmd/flox/cmd/lock"
	"github.com/nickryand/flox/cmd/flox/cmd/upgrade"
	"github.com/nickryand/flox/pkg/floxconfig"
	"github.com/nickryand/flox/pkg/logging"
)

const FloxName = "flox"

func RootCmd() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   FloxName,
		Short: "resolve environment manifests into lockfiles",
	}

	if err := logging.InitLogging(); err != nil {
		return nil, err
	}

	config, err := floxconfig.Get()
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}

	cmd.AddCommand(
		lock.Cmd(config),
		upgrade.Cmd(config),
		inputs.Cmd(config),
	)

	return cmd, nil
}

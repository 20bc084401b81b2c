// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package resolver

import "slices"

// UpgradeSelector selects which groups must be re-resolved even when their
// prior lock is still valid. It is one of: nothing (zero value), every
// group, or a specific set of group names.
type UpgradeSelector struct {
	all    bool
	groups []string
}

func UpgradeNone() UpgradeSelector {
	return UpgradeSelector{}
}

func UpgradeAll() UpgradeSelector {
	return UpgradeSelector{all: true}
}

func UpgradeGroups(names ...string) UpgradeSelector {
	return UpgradeSelector{groups: names}
}

func (u UpgradeSelector) Upgrading(name string) bool {
	return u.all || slices.Contains(u.groups, name)
}

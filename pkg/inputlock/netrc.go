// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package inputlock

import (
	"errors"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/jdx/go-netrc"
)

// credentialFor looks the registry host up in ~/.netrc. Hosts without a
// machine entry (or users without a netrc at all) get anonymous access.
func credentialFor(host string) (authn.Authenticator, error) {
	usr, err := user.Current()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(usr.HomeDir, ".netrc")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return authn.Anonymous, nil
	}

	n, err := netrc.Parse(path)
	if err != nil {
		return nil, err
	}

	machine := n.Machine(host)
	if machine == nil {
		return authn.Anonymous, nil
	}

	return authn.FromConfig(authn.AuthConfig{
		Username: machine.Get("login"),
		Password: machine.Get("password"),
	}), nil
}

// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/teradata-labs/dbkit/pkg/sqlerr"
)

// KeyringAccount is the keyring account name for a backend's password:
// "<backend name>/<user>".
func KeyringAccount(b Backend) string {
	return b.Name + "/" + b.User
}

// ResolveCredentials returns a copy of b whose empty password is read from
// the OS keyring. Backends without KeyringService are returned unchanged.
func ResolveCredentials(b Backend) (Backend, error) {
	out := b.clone()
	if out.Password != "" || out.KeyringService == "" {
		return out, nil
	}
	secret, err := keyring.Get(out.KeyringService, KeyringAccount(out))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return out, sqlerr.Newf(sqlerr.KindConfiguration, "resolve credentials",
				"no password for %s in keyring service %q", KeyringAccount(out), out.KeyringService)
		}
		return out, sqlerr.Newf(sqlerr.KindConfiguration, "resolve credentials", "keyring lookup failed: %w", err)
	}
	out.Password = secret
	return out, nil
}

// StoreCredentials saves a backend password in the OS keyring.
func StoreCredentials(b Backend, password string) error {
	if b.KeyringService == "" {
		return sqlerr.Newf(sqlerr.KindConfiguration, "store credentials", "backend %q has no keyring_service", b.Name)
	}
	if err := keyring.Set(b.KeyringService, KeyringAccount(b), password); err != nil {
		return sqlerr.Newf(sqlerr.KindConfiguration, "store credentials", "keyring store failed: %w", err)
	}
	return nil
}

// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"os"
	"strings"

	"github.com/anjanb/questdb/internal/keychain"
)

// dsnEnv lists the environment variables consulted before the keychain.
var dsnEnv = []string{"JSONQUERY_DSN", "DATABASE_URL"}

// resolveDSN finds the upstream DSN and names where it came from.
func resolveDSN() (dsn, source string, err error) {
	for _, name := range dsnEnv {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, name + " environment variable", nil
		}
	}
	km, err := keychain.GetManager()
	if err != nil {
		return "", "", err
	}
	v, err := km.LoadDSN()
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(v), "OS keychain", nil
}

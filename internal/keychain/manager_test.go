// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"
)

func TestDSNRoundTrip(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring(nil))

	_, err := m.LoadDSN()
	require.ErrorIs(t, err, ErrNoDSN)

	require.NoError(t, m.SaveDSN("postgres://u:p@localhost:5432/db"))
	got, err := m.LoadDSN()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost:5432/db", got)

	require.NoError(t, m.ClearDSN())
	require.NoError(t, m.ClearDSN())
	_, err = m.LoadDSN()
	require.ErrorIs(t, err, ErrNoDSN)
}

func TestEmptyItemIsMissing(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring([]keyring.Item{{Key: KeyDSN}}))
	_, err := m.LoadDSN()
	require.ErrorIs(t, err, ErrNoDSN)
}

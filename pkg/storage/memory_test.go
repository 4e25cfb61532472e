// Copyright (c) 2025 Paul Cager
//
// This file is part of hid-proxy.
//
// hid-proxy is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@paulcager.org for commercial licensing options.

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCRUD(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("a", []byte("1"), false))
	got, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	// Returned slice is a copy.
	got[0] = 'x'
	again, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), again)

	require.NoError(t, m.Delete("a"))
	_, err = m.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete("a"), ErrNotFound)
}

func TestMemoryConfidentialGating(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("s", []byte("v"), true))
	_, err := m.Get("s")
	assert.ErrorIs(t, err, ErrAuthFailure)

	res, err := m.InstallCredential([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, CredentialCreated, res)

	got, err := m.Get("s")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	m.ClearCredential()
	_, err = m.Get("s")
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestMemoryCredentialLifecycle(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	assert.False(t, m.Provisioned())

	_, err := m.InstallCredential([]byte("key"))
	require.NoError(t, err)
	assert.True(t, m.Provisioned())
	assert.True(t, m.Unlocked())

	m.ClearCredential()
	_, err = m.InstallCredential([]byte("wrong"))
	assert.ErrorIs(t, err, ErrAuthFailure)
	assert.False(t, m.Unlocked())

	res, err := m.InstallCredential([]byte("key"))
	require.NoError(t, err)
	assert.Equal(t, CredentialValidated, res)

	require.NoError(t, m.ReplaceCredential([]byte("new")))
	m.ClearCredential()
	_, err = m.InstallCredential([]byte("key"))
	assert.ErrorIs(t, err, ErrAuthFailure)
	_, err = m.InstallCredential([]byte("new"))
	require.NoError(t, err)

	require.NoError(t, m.DestroyCredential())
	assert.False(t, m.Provisioned())
	res, err = m.InstallCredential([]byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, CredentialCreated, res)
}

func TestMemoryListPrefix(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	require.NoError(t, m.Put("keydef.0x04", nil, false))
	require.NoError(t, m.Put("keydef.0x05", nil, true))
	require.NoError(t, m.Put("other", nil, false))

	keys, err := m.List("keydef.")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keydef.0x04", "keydef.0x05"}, keys)
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	_, err := m.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Put("k", nil, false), ErrClosed)
	_, err = m.InstallCredential([]byte("key"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Close(), ErrClosed)
}

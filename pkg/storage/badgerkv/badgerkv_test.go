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

package badgerkv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulcager/hid-proxy/pkg/storage"
)

func openTest(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestPlainRoundTrip(t *testing.T) {
	b := openTest(t)

	require.NoError(t, b.Put("k1", []byte("v1"), false))
	got, err := b.Get("k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	_, err = b.Get("absent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConfidentialRequiresCredential(t *testing.T) {
	b := openTest(t)

	err := b.Put("secret", []byte("v"), true)
	assert.ErrorIs(t, err, storage.ErrAuthFailure)

	res, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	assert.Equal(t, storage.CredentialCreated, res)

	require.NoError(t, b.Put("secret", []byte("v"), true))
	got, err := b.Get("secret")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	b.ClearCredential()
	_, err = b.Get("secret")
	assert.ErrorIs(t, err, storage.ErrAuthFailure)
}

func TestInstallValidatesExistingCheck(t *testing.T) {
	b := openTest(t)

	_, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	b.ClearCredential()

	wrong := []byte("ffffffffffffffffffffffffffffffff")
	_, err = b.InstallCredential(wrong)
	assert.ErrorIs(t, err, storage.ErrAuthFailure)
	assert.False(t, b.Unlocked())

	res, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	assert.Equal(t, storage.CredentialValidated, res)
	assert.True(t, b.Unlocked())
}

func TestReplaceCredentialReseals(t *testing.T) {
	b := openTest(t)

	_, err := b.InstallCredential(testKey)
	require.NoError(t, err)

	newKey := []byte("fedcba9876543210fedcba9876543210")
	require.NoError(t, b.ReplaceCredential(newKey))
	b.ClearCredential()

	_, err = b.InstallCredential(testKey)
	assert.ErrorIs(t, err, storage.ErrAuthFailure)

	res, err := b.InstallCredential(newKey)
	require.NoError(t, err)
	assert.Equal(t, storage.CredentialValidated, res)
}

func TestDestroyCredential(t *testing.T) {
	b := openTest(t)

	_, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	assert.True(t, b.Provisioned())

	require.NoError(t, b.DestroyCredential())
	assert.False(t, b.Provisioned())
	assert.False(t, b.Unlocked())

	// A fresh credential provisions from scratch.
	res, err := b.InstallCredential([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	assert.Equal(t, storage.CredentialCreated, res)
}

func TestListExcludesCheckRecord(t *testing.T) {
	b := openTest(t)

	_, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	require.NoError(t, b.Put("keydef.0x04", []byte("a"), false))
	require.NoError(t, b.Put("keydef.0x05", []byte("b"), true))
	require.NoError(t, b.Put("other", []byte("c"), false))

	keys, err := b.List("keydef.")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"keydef.0x04", "keydef.0x05"}, keys)

	all, err := b.List("")
	require.NoError(t, err)
	assert.NotContains(t, all, "sys.check")
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open(dir)
	require.NoError(t, err)
	_, err = b.InstallCredential(testKey)
	require.NoError(t, err)
	require.NoError(t, b.Put("secret", []byte("v"), true))
	require.NoError(t, b.Close())

	b, err = Open(dir)
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, b.Provisioned())
	_, err = b.Get("secret")
	assert.ErrorIs(t, err, storage.ErrAuthFailure)

	res, err := b.InstallCredential(testKey)
	require.NoError(t, err)
	assert.Equal(t, storage.CredentialValidated, res)

	got, err := b.Get("secret")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestClosedBackend(t *testing.T) {
	b, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Get("k")
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, b.Put("k", nil, false), storage.ErrClosed)
	assert.ErrorIs(t, b.Close(), storage.ErrClosed)
}

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
	"crypto/sha256"
	"crypto/subtle"
	"strings"
	"sync"
)

type memoryRecord struct {
	value        []byte
	confidential bool
}

// MemoryBackend is an in-memory Backend plus CredentialGate. Confidential
// records are held as plain bytes but gated on the installed credential, so
// the observable semantics match a sealing backend. Useful for tests and for
// running the proxy without persistence.
// Thread-safe using a read-write mutex.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string]memoryRecord
	checksum []byte // SHA-256 of the established credential, nil until provisioned
	unlocked bool
	closed   bool
}

// NewMemory creates a new in-memory backend with no credential established.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]memoryRecord)}
}

// Get retrieves the value for the given key.
func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	rec, exists := m.data[key]
	if !exists {
		return nil, ErrNotFound
	}
	if rec.confidential && !m.unlocked {
		return nil, ErrAuthFailure
	}

	// Return a copy to prevent modification.
	result := make([]byte, len(rec.value))
	copy(result, rec.value)
	return result, nil
}

// Put stores the value for the given key.
func (m *MemoryBackend) Put(key string, value []byte, confidential bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	data := make([]byte, len(value))
	copy(data, value)
	m.data[key] = memoryRecord{value: data, confidential: confidential}
	return nil
}

// Delete removes the key and its value from storage.
func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, exists := m.data[key]; !exists {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// List returns all keys with the given prefix, regardless of confidentiality.
func (m *MemoryBackend) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var keys []string
	for key := range m.data {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// InstallCredential establishes or validates the credential. Only a digest of
// the key is retained.
func (m *MemoryBackend) InstallCredential(key []byte) (InstallResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	sum := sha256.Sum256(key)
	if m.checksum == nil {
		m.checksum = sum[:]
		m.unlocked = true
		return CredentialCreated, nil
	}
	if subtle.ConstantTimeCompare(m.checksum, sum[:]) != 1 {
		m.unlocked = false
		return 0, ErrAuthFailure
	}
	m.unlocked = true
	return CredentialValidated, nil
}

// ReplaceCredential swaps the established credential for a new one.
func (m *MemoryBackend) ReplaceCredential(newKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if !m.unlocked {
		return ErrAuthFailure
	}
	sum := sha256.Sum256(newKey)
	m.checksum = sum[:]
	return nil
}

// ClearCredential locks the gate again. The established check survives, so a
// later InstallCredential validates rather than re-provisions.
func (m *MemoryBackend) ClearCredential() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocked = false
}

// DestroyCredential removes the credential and its check, returning the
// backend to the unprovisioned state.
func (m *MemoryBackend) DestroyCredential() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.checksum = nil
	m.unlocked = false
	return nil
}

// Unlocked reports whether a valid credential is installed.
func (m *MemoryBackend) Unlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocked
}

// Provisioned reports whether a credential check has been established.
func (m *MemoryBackend) Provisioned() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checksum != nil
}

// Close releases the backend. Subsequent operations return ErrClosed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.data = nil
	m.checksum = nil
	m.unlocked = false
	return nil
}

// Compile-time interface checks.
var (
	_ Backend        = (*MemoryBackend)(nil)
	_ CredentialGate = (*MemoryBackend)(nil)
)

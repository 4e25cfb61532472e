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

// Package badgerkv provides the persistent storage backend, an embedded
// Badger database with AES-GCM sealing of confidential records.
//
// Record layout:
//
//	plain record:        [0x00][value]
//	confidential record: [0x01][nonce(12)][ciphertext+tag]
//
// A reserved check record (sys.check) holds the sealed credential magic and
// is what InstallCredential validates against.
package badgerkv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/paulcager/hid-proxy/pkg/storage"
)

const (
	recordPlain        = 0x00
	recordConfidential = 0x01

	// checkKey is the reserved record used to validate candidate
	// credentials. It never appears in List results.
	checkKey = "sys.check"

	// checkMagic is the plaintext sealed under the credential when it is
	// first established. Successfully opening it proves the credential.
	checkMagic = "hidprox6"
)

// Backend is a Badger-backed storage.Backend and storage.CredentialGate.
// Thread-safe; the credential is guarded separately from Badger's own
// transaction locking.
type Backend struct {
	db *badger.DB

	mu     sync.RWMutex
	aead   cipher.AEAD // nil while sealed
	closed bool
}

// Open opens (creating if necessary) a Badger database at dir.
func Open(dir string) (*Backend, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: open %s: %w", dir, err)
	}
	return &Backend{db: db}, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("badgerkv: %w", err)
	}
	return cipher.NewGCM(block)
}

func seal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("badgerkv: nonce: %w", err)
	}
	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, recordConfidential)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func open(aead cipher.AEAD, record []byte) ([]byte, error) {
	ns := aead.NonceSize()
	if len(record) < 1+ns {
		return nil, storage.ErrInvalidData
	}
	plaintext, err := aead.Open(nil, record[1:1+ns], record[1+ns:], nil)
	if err != nil {
		// Wrong key, or tampering. Either way the caller is not
		// authenticated for this record.
		return nil, storage.ErrAuthFailure
	}
	return plaintext, nil
}

// Get retrieves and, for confidential records, unseals the value for key.
func (b *Backend) Get(key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, storage.ErrClosed
	}
	if key == checkKey {
		return nil, storage.ErrNotFound
	}

	var record []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badgerkv: get %s: %w", key, err)
	}
	if len(record) == 0 {
		return nil, storage.ErrInvalidData
	}

	switch record[0] {
	case recordPlain:
		return record[1:], nil
	case recordConfidential:
		if b.aead == nil {
			return nil, storage.ErrAuthFailure
		}
		return open(b.aead, record)
	default:
		return nil, storage.ErrInvalidData
	}
}

// Put stores value under key, sealing it first when confidential.
func (b *Backend) Put(key string, value []byte, confidential bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return storage.ErrClosed
	}

	var record []byte
	if confidential {
		if b.aead == nil {
			return storage.ErrAuthFailure
		}
		var err error
		record, err = seal(b.aead, value)
		if err != nil {
			return err
		}
	} else {
		record = append([]byte{recordPlain}, value...)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), record)
	})
	if err != nil {
		return fmt.Errorf("badgerkv: put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (b *Backend) Delete(key string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return storage.ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if err == badger.ErrKeyNotFound {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badgerkv: delete %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix. The reserved check record is
// excluded.
func (b *Backend) List(prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, storage.ErrClosed
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			key := string(it.Item().Key())
			if key == checkKey {
				continue
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerkv: list %s: %w", prefix, err)
	}
	return keys, nil
}

// InstallCredential establishes or validates the credential.
func (b *Backend) InstallCredential(key []byte) (storage.InstallResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, storage.ErrClosed
	}

	aead, err := newAEAD(key)
	if err != nil {
		return 0, err
	}

	var record []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(checkKey))
		if err != nil {
			return err
		}
		record, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		// First use: establish the check under this key.
		sealed, err := seal(aead, []byte(checkMagic))
		if err != nil {
			return 0, err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(checkKey), sealed)
		})
		if err != nil {
			return 0, fmt.Errorf("badgerkv: store check: %w", err)
		}
		b.aead = aead
		return storage.CredentialCreated, nil
	}
	if err != nil {
		return 0, fmt.Errorf("badgerkv: read check: %w", err)
	}

	plaintext, err := open(aead, record)
	if err != nil || string(plaintext) != checkMagic {
		b.aead = nil
		return 0, storage.ErrAuthFailure
	}
	b.aead = aead
	return storage.CredentialValidated, nil
}

// ReplaceCredential swaps the installed credential for a new one, resealing
// the check record. Confidential records must be re-saved by their owners.
func (b *Backend) ReplaceCredential(newKey []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	if b.aead == nil {
		return storage.ErrAuthFailure
	}

	aead, err := newAEAD(newKey)
	if err != nil {
		return err
	}
	sealed, err := seal(aead, []byte(checkMagic))
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(checkKey), sealed)
	})
	if err != nil {
		return fmt.Errorf("badgerkv: store check: %w", err)
	}
	b.aead = aead
	return nil
}

// ClearCredential drops the in-memory credential. Stored records keep their
// sealed form; the check record survives for the next install.
func (b *Backend) ClearCredential() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aead = nil
}

// DestroyCredential drops the in-memory credential and deletes the check
// record, returning the store to its unprovisioned state. Confidential
// records that were not deleted beforehand become permanently unreadable.
func (b *Backend) DestroyCredential() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	b.aead = nil
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(checkKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("badgerkv: delete check: %w", err)
	}
	return nil
}

// Unlocked reports whether a valid credential is installed.
func (b *Backend) Unlocked() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.aead != nil
}

// Provisioned reports whether a credential check record exists.
func (b *Backend) Provisioned() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(checkKey))
		return err
	})
	return err == nil
}

// Close closes the underlying database.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	b.closed = true
	b.aead = nil
	return b.db.Close()
}

// Compile-time interface checks.
var (
	_ storage.Backend        = (*Backend)(nil)
	_ storage.CredentialGate = (*Backend)(nil)
)

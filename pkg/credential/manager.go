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

// Package credential implements the password-to-key lifecycle: byte-at-a-time
// password accumulation, iterated HMAC-SHA256 key derivation bound to the
// device identity, and credential install/validate/clear against the storage
// gate. The accumulation buffer lives for exactly one password-entry episode
// and is zeroed the instant derivation consumes it.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

const (
	// KDFIterations is the HMAC-SHA256 stretching count. 600 iterations is
	// laughably small as KDFs go, but the count is sized for microcontroller
	// firmware sharing this data format, where it takes roughly a quarter of
	// a second - about as long as keystrokes can reasonably be delayed. It
	// must not change without re-provisioning.
	KDFIterations = 600

	// MaxPasswordLen bounds the accumulation buffer. Bytes beyond it are
	// silently ignored.
	MaxPasswordLen = 128

	// saltTag is mixed with the device ID to form the KDF salt. Fixed by
	// the shared data format.
	saltTag = "b59497ea562367d8"
)

// KeySizes valid for a derived credential.
const (
	KeySize128 = 16
	KeySize256 = 32
)

// Manager owns the password accumulation buffer and the derived-credential
// lifecycle. It is confined to the host-facing context and is not
// synchronized.
type Manager struct {
	gate     storage.CredentialGate
	log      *logging.Logger
	deviceID []byte
	keySize  int

	buf [MaxPasswordLen]byte
	n   int
}

// NewManager creates a Manager deriving keys of keySize bytes (KeySize128 or
// KeySize256) bound to deviceID.
func NewManager(gate storage.CredentialGate, deviceID []byte, keySize int, log *logging.Logger) *Manager {
	if keySize != KeySize128 && keySize != KeySize256 {
		panic("credential: invalid key size")
	}
	if log == nil {
		log = logging.DefaultLogger()
	}
	id := make([]byte, len(deviceID))
	copy(id, deviceID)
	return &Manager{gate: gate, log: log, deviceID: id, keySize: keySize}
}

// AddPasswordByte appends one byte to the accumulation buffer. Bytes past
// MaxPasswordLen are ignored.
func (m *Manager) AddPasswordByte(b byte) {
	if m.n < len(m.buf) {
		m.buf[m.n] = b
		m.n++
	}
}

// ClearPassword zeroes the accumulation buffer and resets its length.
func (m *Manager) ClearPassword() {
	Zeroize(m.buf[:])
	m.n = 0
}

// PasswordLen returns the number of accumulated password bytes.
func (m *Manager) PasswordLen() int {
	return m.n
}

// DeriveKey derives the credential from the accumulated password:
//
//	salt   = SHA256(deviceID || saltTag)
//	digest = HMAC-SHA256(key=password, msg=salt)
//	digest = HMAC-SHA256(key=digest, msg=digest)   x (KDFIterations-1)
//
// and returns the first keySize bytes. The password buffer is cleared before
// DeriveKey returns, whatever the caller does next.
func (m *Manager) DeriveKey() []byte {
	defer m.ClearPassword()

	h := sha256.New()
	h.Write(m.deviceID)
	h.Write([]byte(saltTag))
	salt := h.Sum(nil)

	mac := hmac.New(sha256.New, m.buf[:m.n])
	mac.Write(salt)
	digest := mac.Sum(nil)

	for i := 1; i < KDFIterations; i++ {
		mac = hmac.New(sha256.New, digest)
		mac.Write(digest)
		digest = mac.Sum(nil)
	}

	return digest[:m.keySize]
}

// InstallOrValidate hands a derived (or NFC-sourced) key to the storage gate.
// On ErrAuthFailure the gate stays locked and the key must be discarded by
// the caller; no partial credential remains installed.
func (m *Manager) InstallOrValidate(key []byte) (storage.InstallResult, error) {
	result, err := m.gate.InstallCredential(key)
	if err != nil {
		return 0, err
	}
	m.log.Info("credential installed", "result", result.String())
	return result, nil
}

// Replace swaps the installed credential for a newly derived one. The gate
// must be unlocked; confidential records are re-sealed by the macro store,
// not here.
func (m *Manager) Replace(key []byte) error {
	return m.gate.ReplaceCredential(key)
}

// ClearKey removes the active credential from the storage gate. Any local
// copy of key material held by the caller must be zeroized separately.
func (m *Manager) ClearKey() {
	m.gate.ClearCredential()
	m.ClearPassword()
}

// Unlocked reports whether the storage gate currently holds a credential.
func (m *Manager) Unlocked() bool {
	return m.gate.Unlocked()
}

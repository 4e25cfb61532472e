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

// Package storage defines the key-value contract the proxy core consumes.
// Records may be marked confidential; reading a confidential record requires
// a credential to have been installed via the CredentialGate. The engine
// beneath the contract (wear-leveling, the AEAD itself) is an implementation
// concern, not part of this package's API.
package storage

// Backend is the abstract key-value store.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist, and ErrAuthFailure if
	// the record is confidential and no valid credential is installed.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key, overwriting any previous
	// value. Confidential records are sealed under the installed credential
	// and require one to read back.
	Put(key string, value []byte, confidential bool) error

	// Delete removes the key and its value from storage.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns all keys with the given prefix, confidential or not.
	// Listing does not require a credential: which keys exist is not a
	// secret, their contents are.
	List(prefix string) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// InstallResult reports what InstallCredential did.
type InstallResult int

const (
	// CredentialCreated means no credential check existed yet; this call
	// established one (first-use provisioning).
	CredentialCreated InstallResult = iota

	// CredentialValidated means the supplied key authenticated the existing
	// credential check.
	CredentialValidated
)

func (r InstallResult) String() string {
	switch r {
	case CredentialCreated:
		return "created"
	case CredentialValidated:
		return "validated"
	default:
		return "unknown"
	}
}

// CredentialGate is implemented by backends that seal confidential records.
// The gate holds at most one installed credential at a time.
type CredentialGate interface {
	// InstallCredential hands a symmetric key to the backend. If no
	// credential check record exists yet, the call establishes one and
	// returns CredentialCreated. Otherwise the key is authenticated against
	// the existing check; a mismatch returns ErrAuthFailure and leaves the
	// gate locked.
	InstallCredential(key []byte) (InstallResult, error)

	// ReplaceCredential swaps the installed credential for a new one and
	// re-establishes the credential check. The gate must be unlocked;
	// callers are responsible for re-sealing their own confidential
	// records under the new credential.
	ReplaceCredential(newKey []byte) error

	// ClearCredential removes the installed credential from memory, sealing
	// confidential records until the next successful install.
	ClearCredential()

	// DestroyCredential removes both the installed credential and the
	// stored credential check, returning the backend to its unprovisioned
	// state. The next InstallCredential establishes a fresh check. Callers
	// are expected to have deleted their confidential records first; any
	// that remain are unreadable forever.
	DestroyCredential() error

	// Unlocked reports whether a valid credential is currently installed.
	Unlocked() bool

	// Provisioned reports whether a credential check has been established.
	Provisioned() bool
}

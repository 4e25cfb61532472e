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

package interceptor

// State is the interceptor's authoritative device state. Exactly one
// instance exists and only the interceptor mutates it.
type State int

const (
	// Blank: no password has ever been set.
	Blank State = iota
	// BlankSeenMagic: magic chord seen while blank.
	BlankSeenMagic
	// Sealed: provisioned but no credential installed.
	Sealed
	// SealedSeenMagic: magic chord seen while sealed.
	SealedSeenMagic
	// SealedExpectingCommand: all keys released after the sealed magic chord.
	SealedExpectingCommand
	// EnteringPassword: accumulating an existing password.
	EnteringPassword
	// EnteringNewPassword: accumulating a new password.
	EnteringNewPassword
	// Unsealed: credential installed, confidential records readable.
	Unsealed
	// SeenMagic: magic chord seen while unsealed.
	SeenMagic
	// ExpectingCommand: all keys released after the unsealed magic chord.
	ExpectingCommand
	// SeenAssign: EQUALS command seen, waiting for the trigger key.
	SeenAssign
	// Defining: recording reports into an in-progress KeyDef.
	Defining
)

func (s State) String() string {
	switch s {
	case Blank:
		return "blank"
	case BlankSeenMagic:
		return "blank_seen_magic"
	case Sealed:
		return "sealed"
	case SealedSeenMagic:
		return "sealed_seen_magic"
	case SealedExpectingCommand:
		return "sealed_expecting_command"
	case EnteringPassword:
		return "entering_password"
	case EnteringNewPassword:
		return "entering_new_password"
	case Unsealed:
		return "unsealed"
	case SeenMagic:
		return "seen_magic"
	case ExpectingCommand:
		return "expecting_command"
	case SeenAssign:
		return "seen_assign"
	case Defining:
		return "defining"
	default:
		return "unknown"
	}
}

// StateNames lists every state's metric label.
var StateNames = func() []string {
	names := make([]string, 0, int(Defining)+1)
	for s := Blank; s <= Defining; s++ {
		names = append(names, s.String())
	}
	return names
}()

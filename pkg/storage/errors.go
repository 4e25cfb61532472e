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

import "errors"

var (
	// ErrClosed is returned when attempting to use a closed backend.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrAuthFailure is returned when a record exists but is confidential
	// and no valid credential is installed, or when a candidate credential
	// fails validation. Callers must not let the distinction between
	// ErrAuthFailure and ErrNotFound become externally observable when
	// evaluating macro triggers.
	ErrAuthFailure = errors.New("storage: authentication failure")

	// ErrInvalidData is returned when a stored record is malformed.
	ErrInvalidData = errors.New("storage: invalid data")
)

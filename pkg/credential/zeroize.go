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

package credential

import "crypto/subtle"

// Zeroize overwrites b with zeroes. ConstantTimeCopy keeps the write from
// being elided by the optimizer.
func Zeroize(b []byte) {
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

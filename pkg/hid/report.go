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

// Package hid defines the USB HID keyboard report value type and the
// keyboard usage-code tables shared by the interceptor, the macro grammar
// and the transports.
package hid

import "fmt"

// Report is a boot-protocol keyboard input report: one modifier byte and up
// to six concurrently pressed keys. It is a plain value type, copied freely.
// The zero Report means "no keys down" and doubles as the release-all
// sentinel sent before and after macro playback.
type Report struct {
	Modifier byte
	Keycodes [6]byte
}

// ReleaseAll is the canonical all-keys-up report.
var ReleaseAll = Report{}

// Key0 returns the first (and for this device, only meaningful) keycode slot.
func (r Report) Key0() byte {
	return r.Keycodes[0]
}

// IsReleaseAll reports whether no modifier and no key is down.
func (r Report) IsReleaseAll() bool {
	if r.Modifier != 0 {
		return false
	}
	for _, k := range r.Keycodes {
		if k != 0 {
			return false
		}
	}
	return true
}

// IsMagicChord reports whether this report is the command-mode gesture:
// both shift keys held with no other key down.
func (r Report) IsMagicChord() bool {
	return r.Modifier == (ModLeftShift|ModRightShift) && r.Key0() == 0
}

// IsRebootChord reports whether this report is the unconditional
// reboot-to-bootloader gesture: both shifts plus HOME.
func (r Report) IsRebootChord() bool {
	return r.Modifier == (ModLeftShift|ModRightShift) && r.Key0() == KeyHome
}

// Bytes returns the 8-byte wire form: modifier, reserved, six keycodes.
func (r Report) Bytes() []byte {
	b := make([]byte, 8)
	b[0] = r.Modifier
	copy(b[2:], r.Keycodes[:])
	return b
}

// ReportFromBytes decodes an 8-byte boot keyboard report. Shorter payloads
// are rejected; extra bytes are ignored.
func ReportFromBytes(b []byte) (Report, error) {
	if len(b) < 8 {
		return Report{}, fmt.Errorf("hid: report too short: %d bytes", len(b))
	}
	var r Report
	r.Modifier = b[0]
	copy(r.Keycodes[:], b[2:8])
	return r, nil
}

func (r Report) String() string {
	return fmt.Sprintf("[%02x] %02x %02x", r.Modifier, r.Keycodes[0], r.Keycodes[1])
}

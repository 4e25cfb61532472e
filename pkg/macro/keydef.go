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

package macro

import (
	"fmt"

	"github.com/paulcager/hid-proxy/pkg/hid"
)

// KeyDef binds a trigger keycode to a bounded action sequence. Confidential
// definitions are stored sealed and cannot be loaded without an installed
// credential.
type KeyDef struct {
	Trigger      byte
	Confidential bool
	Actions      []Action
}

// NewKeyDef returns an empty definition for trigger. Definitions default to
// confidential.
func NewKeyDef(trigger byte) *KeyDef {
	return &KeyDef{Trigger: trigger, Confidential: true}
}

// Append adds an action to the definition. It returns false, leaving the
// definition unchanged, once MaxActions is reached.
func (d *KeyDef) Append(a Action) bool {
	if len(d.Actions) >= MaxActions {
		return false
	}
	d.Actions = append(d.Actions, a)
	return true
}

// AppendReport is Append for the common keyboard-report case.
func (d *KeyDef) AppendReport(r hid.Report) bool {
	return d.Append(ReportAction{Report: r})
}

// Record layout:
//
//	[0] trigger
//	[1] flags (bit 0: confidential)
//	[2] action count
//	[3..] tagged actions
const (
	headerLen        = 3
	flagConfidential = 0x01
)

// Marshal encodes the definition into its stored record form.
func (d *KeyDef) Marshal() ([]byte, error) {
	if len(d.Actions) > MaxActions {
		return nil, fmt.Errorf("macro: keydef 0x%02X has %d actions, max %d", d.Trigger, len(d.Actions), MaxActions)
	}
	var flags byte
	if d.Confidential {
		flags |= flagConfidential
	}
	buf := make([]byte, 0, headerLen+len(d.Actions)*8)
	buf = append(buf, d.Trigger, flags, byte(len(d.Actions)))
	var err error
	for _, a := range d.Actions {
		if buf, err = appendAction(buf, a); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Unmarshal decodes a stored record. Every length field is validated before
// use; a corrupt record yields an error, never a partial definition.
func Unmarshal(data []byte) (*KeyDef, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("macro: record too short (%d bytes)", len(data))
	}
	count := int(data[2])
	if count > MaxActions {
		return nil, fmt.Errorf("macro: record claims %d actions, max %d", count, MaxActions)
	}
	def := &KeyDef{
		Trigger:      data[0],
		Confidential: data[1]&flagConfidential != 0,
		Actions:      make([]Action, 0, count),
	}
	rest := data[headerLen:]
	for i := 0; i < count; i++ {
		a, n, err := decodeAction(rest)
		if err != nil {
			return nil, fmt.Errorf("macro: action %d of keydef 0x%02X: %w", i, def.Trigger, err)
		}
		def.Actions = append(def.Actions, a)
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("macro: %d trailing bytes after keydef 0x%02X", len(rest), def.Trigger)
	}
	return def, nil
}

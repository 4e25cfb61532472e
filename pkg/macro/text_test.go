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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulcager/hid-proxy/pkg/hid"
)

func report(mod, key byte) ReportAction {
	r := hid.Report{Modifier: mod}
	r.Keycodes[0] = key
	return ReportAction{Report: r}
}

func TestParseQuotedStringEntry(t *testing.T) {
	defs, err := Parse(`a { "Hi" ENTER }`, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, byte(0x04), def.Trigger)
	assert.True(t, def.Confidential, "entries default to private")
	require.Len(t, def.Actions, 5)

	assert.Equal(t, report(0x02, 0x0b), def.Actions[0]) // press Shift+H
	assert.Equal(t, report(0x00, 0x00), def.Actions[1]) // release
	assert.Equal(t, report(0x00, 0x0c), def.Actions[2]) // press i
	assert.Equal(t, report(0x00, 0x00), def.Actions[3]) // release
	assert.Equal(t, report(0x00, hid.KeyEnter), def.Actions[4])
}

func TestParsePublicModifier(t *testing.T) {
	defs, err := Parse(`[public] F1 { "x" }`, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.False(t, defs[0].Confidential)
	assert.Equal(t, hid.KeyF1, defs[0].Trigger)
}

func TestParseCommandForms(t *testing.T) {
	defs, err := Parse(`0x3a { ^c [01:04] TAB MQTT("alerts/door", "open sesame") }`, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, byte(0x3a), def.Trigger)
	require.Len(t, def.Actions, 4)

	// ^c is a momentary Ctrl report with no release.
	assert.Equal(t, report(hid.ModLeftCtrl, hid.KeyC), def.Actions[0])
	assert.Equal(t, report(0x01, 0x04), def.Actions[1])
	assert.Equal(t, report(0, hid.KeyTab), def.Actions[2])
	assert.Equal(t, MQTTAction{Topic: "alerts/door", Message: "open sesame"}, def.Actions[3])
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	text := `
# comment line
a { "x" }

# another comment
b { "y" }
`
	defs, err := Parse(text, nil)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, byte(0x04), defs[0].Trigger)
	assert.Equal(t, byte(0x05), defs[1].Trigger)
}

func TestParseSkipsUnresolvableTrigger(t *testing.T) {
	text := `NOTAKEY { "x" }
b { "y" }`
	defs, err := Parse(text, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, byte(0x05), defs[0].Trigger)
}

func TestParseStringEscapes(t *testing.T) {
	defs, err := Parse(`a { "say \"hi\"" }`, nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	// 8 characters: s a y space " h i "
	assert.Len(t, defs[0].Actions, 16)
}

func TestParseOverflow(t *testing.T) {
	// 33 characters expand to 66 actions, over the 64-action bound.
	_, err := Parse(`a { "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" }`, nil)
	assert.Error(t, err)
}

func TestSerializeForms(t *testing.T) {
	def := NewKeyDef(0x04)
	def.Append(report(hid.ModLeftCtrl, hid.KeyC))
	def.Append(report(0, hid.KeyEnter))
	def.Append(report(0, 0))
	def.Append(report(0x08, 0x2c))
	def.Append(MQTTAction{Topic: "t", Message: "m"})

	text := Serialize(def)
	assert.Equal(t, "[private] a { ^c ENTER [00:00] [08:2c] MQTT(\"t\", \"m\") }\n", text)
}

func TestSerializeTriggersPreferMnemonic(t *testing.T) {
	def := NewKeyDef(hid.KeyF5)
	def.Confidential = false
	assert.Contains(t, Serialize(def), "[public] F5 {")

	def = NewKeyDef(0x9f) // no mnemonic, no ASCII form
	assert.Contains(t, Serialize(def), "0x9f {")
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"[private] a { \"Hello, World!\" ENTER }\n",
		"[public] F1 { ^c ^v TAB }\n",
		"[private] HOME { \"mixed\" [04:05] ESC MQTT(\"topic/x\", \"msg\") }\n",
	}
	for _, in := range inputs {
		defs, err := Parse(in, nil)
		require.NoError(t, err, in)
		require.Len(t, defs, 1, in)
		out := Serialize(defs[0])

		again, err := Parse(out, nil)
		require.NoError(t, err, out)
		require.Len(t, again, 1, out)
		assert.Equal(t, defs[0], again[0], "parse(serialize(def)) must equal def for %q", in)
	}
}

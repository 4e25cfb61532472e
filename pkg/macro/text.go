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
	"strings"

	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/logging"
)

// Text grammar:
//
//	file    := { entry }
//	entry   := [ "[public]" | "[private]" ] trigger "{" { command } "}"
//	trigger := hex-byte | mnemonic | single-ascii-char
//	command := quoted-string | mnemonic | "^" letter | "[" hex ":" hex "]"
//	         | "MQTT(" qstring "," qstring ")"
//
// Blank lines and #-comments are skipped. A quoted string expands to one
// press/release report pair per character. ^x emits a single momentary
// Ctrl+x report with no release. Entries default to [private].

type parser struct {
	src []byte
	pos int
	log *logging.Logger
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) skipSpaceAndComments() {
	for !p.eof() {
		c := p.peek()
		switch {
		case isSpace(c):
			p.pos++
		case c == '#':
			for !p.eof() && p.peek() != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) skipToNewline() {
	for !p.eof() && p.peek() != '\n' {
		p.pos++
	}
}

// word reads up to a whitespace or any of the stop bytes.
func (p *parser) word(stop string) string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if isSpace(c) || strings.IndexByte(stop, c) >= 0 {
			break
		}
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func (p *parser) hexByte() byte {
	var v uint
	digits := 0
	for !p.eof() && digits < 2 {
		c := p.peek()
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint(c-'0')
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint(c-'A'+10)
		default:
			return byte(v)
		}
		p.pos++
		digits++
	}
	return byte(v)
}

// trigger resolves the token before '{' to a keycode. Zero means the token
// could not be resolved.
func (p *parser) trigger() byte {
	p.skipSpace()
	if p.pos+1 < len(p.src) && p.src[p.pos] == '0' && p.src[p.pos+1] == 'x' {
		p.pos += 2
		return p.hexByte()
	}
	// Single character followed by whitespace or '{'.
	if p.pos+1 < len(p.src) && (isSpace(p.src[p.pos+1]) || p.src[p.pos+1] == '{') {
		m, ok := hid.MapChar(rune(p.src[p.pos]))
		p.pos++
		if !ok {
			return 0
		}
		return m.Key
	}
	name := p.word("{")
	code, _ := hid.MnemonicCode(name)
	return code
}

// qstring reads a double-quoted string with backslash escapes. The caller
// must have consumed the opening quote's predecessor; qstring consumes the
// quotes themselves.
func (p *parser) qstring() string {
	if p.peek() != '"' {
		return ""
	}
	p.pos++
	var sb strings.Builder
	for !p.eof() && p.peek() != '"' {
		c := p.src[p.pos]
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			c = p.src[p.pos]
		}
		sb.WriteByte(c)
		p.pos++
	}
	if !p.eof() {
		p.pos++ // closing quote
	}
	return sb.String()
}

func (p *parser) parseMQTT(def *KeyDef) error {
	p.pos++ // '('
	p.skipSpace()
	topic := p.qstring()
	p.skipSpace()
	if p.peek() == ',' {
		p.pos++
	}
	p.skipSpace()
	message := p.qstring()
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
	}
	if len(topic) > MaxStringLen {
		topic = topic[:MaxStringLen]
	}
	if len(message) > MaxStringLen {
		message = message[:MaxStringLen]
	}
	if !def.Append(MQTTAction{Topic: topic, Message: message}) {
		return fmt.Errorf("macro: keydef 0x%02X exceeds %d actions", def.Trigger, MaxActions)
	}
	return nil
}

func (p *parser) parseBody(def *KeyDef) error {
	appendReport := func(mod, key byte) error {
		r := hid.Report{Modifier: mod}
		r.Keycodes[0] = key
		if !def.AppendReport(r) {
			return fmt.Errorf("macro: keydef 0x%02X exceeds %d actions", def.Trigger, MaxActions)
		}
		return nil
	}

	for !p.eof() && p.peek() != '}' {
		p.skipSpace()
		switch c := p.peek(); {
		case c == '}':
			continue
		case c == '"':
			for _, ch := range p.qstring() {
				m, ok := hid.MapChar(ch)
				if !ok {
					p.log.Warn("unmappable character in macro text", "char", string(ch))
					continue
				}
				if err := appendReport(m.Mod, m.Key); err != nil {
					return err
				}
				if err := appendReport(0, 0); err != nil {
					return err
				}
			}
		case c == '^':
			p.pos++
			if p.eof() {
				continue
			}
			letter := p.src[p.pos]
			switch {
			case letter >= 'a' && letter <= 'z':
				p.pos++
				if err := appendReport(hid.ModLeftCtrl, hid.KeyA+letter-'a'); err != nil {
					return err
				}
			case letter >= 'A' && letter <= 'Z':
				p.pos++
				if err := appendReport(hid.ModLeftCtrl, hid.KeyA+letter-'A'); err != nil {
					return err
				}
			}
		case c == '[':
			p.pos++
			mod := p.hexByte()
			if p.peek() == ':' {
				p.pos++
			}
			key := p.hexByte()
			if p.peek() == ']' {
				p.pos++
			}
			if err := appendReport(mod, key); err != nil {
				return err
			}
		default:
			name := p.word("}\"^[(")
			if name == "" {
				if !p.eof() && p.peek() != '}' {
					p.pos++
				}
				continue
			}
			if name == "MQTT" && p.peek() == '(' {
				if err := p.parseMQTT(def); err != nil {
					return err
				}
				continue
			}
			if code, ok := hid.MnemonicCode(name); ok {
				if err := appendReport(0, code); err != nil {
					return err
				}
			} else {
				p.log.Warn("unknown mnemonic in macro", "name", name)
			}
		}
	}
	if !p.eof() {
		p.pos++ // '}'
	}
	return nil
}

// Parse reads the full macro text and returns the definitions it contains.
// Entries with unresolvable triggers are logged and skipped; a malformed or
// oversized entry body aborts the parse.
func Parse(text string, log *logging.Logger) ([]*KeyDef, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	p := &parser{src: []byte(text), log: log}
	var defs []*KeyDef

	for {
		p.skipSpaceAndComments()
		if p.eof() {
			return defs, nil
		}

		confidential := true
		if p.peek() == '[' {
			p.pos++
			switch {
			case strings.HasPrefix(string(p.src[p.pos:]), "public"):
				confidential = false
				p.pos += len("public")
			case strings.HasPrefix(string(p.src[p.pos:]), "private"):
				p.pos += len("private")
			}
			for !p.eof() && p.peek() != ']' {
				p.pos++
			}
			if !p.eof() {
				p.pos++
			}
			p.skipSpace()
		}

		trigger := p.trigger()
		if trigger == 0 {
			log.Warn("skipping entry with unresolvable trigger")
			p.skipToNewline()
			continue
		}

		for !p.eof() && p.peek() != '{' {
			p.pos++
		}
		if p.eof() {
			return defs, nil
		}
		p.pos++ // '{'

		def := NewKeyDef(trigger)
		def.Confidential = confidential
		if err := p.parseBody(def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
}

const exportHeader = `# Macros file - Format: [public|private] trigger { commands... }
# Commands: "text" MNEMONIC ^C [mod:key]
# [public] keydefs work when device is locked
# [private] keydefs require device unlock (default)

`

func printable(ch rune) bool { return ch >= 32 && ch <= 126 }

// textRun returns how many characters of quoted text start at actions[i]:
// press reports whose (modifier, keycode) reverse-maps to a printable
// character, each followed by a release-all report.
func textRun(actions []Action, i int) int {
	run := 0
	for i+1 < len(actions) {
		press, ok := actions[i].(ReportAction)
		if !ok {
			break
		}
		release, ok := actions[i+1].(ReportAction)
		if !ok || release.Report.Modifier != 0 || release.Report.Key0() != 0 {
			break
		}
		ch := hid.CharFor(press.Report.Modifier, press.Report.Key0())
		if !printable(ch) {
			break
		}
		run++
		i += 2
	}
	return run
}

// Serialize renders def as one text entry, the left inverse of Parse for the
// supported subset.
func Serialize(def *KeyDef) string {
	var sb strings.Builder

	if def.Confidential {
		sb.WriteString("[private] ")
	} else {
		sb.WriteString("[public] ")
	}

	if name := hid.Mnemonic(def.Trigger); name != "" {
		sb.WriteString(name)
	} else if ch := hid.CharFor(0, def.Trigger); printable(ch) {
		sb.WriteRune(ch)
	} else {
		fmt.Fprintf(&sb, "0x%02x", def.Trigger)
	}
	sb.WriteString(" { ")

	for i := 0; i < len(def.Actions); {
		if run := textRun(def.Actions, i); run > 0 {
			sb.WriteByte('"')
			for j := 0; j < run; j++ {
				press := def.Actions[i+2*j].(ReportAction).Report
				ch := hid.CharFor(press.Modifier, press.Key0())
				if ch == '"' || ch == '\\' {
					sb.WriteByte('\\')
				}
				sb.WriteRune(ch)
			}
			sb.WriteString(`" `)
			i += run * 2
			continue
		}

		switch act := def.Actions[i].(type) {
		case ReportAction:
			r := act.Report
			switch {
			case r.Modifier == hid.ModLeftCtrl && r.Key0() >= hid.KeyA && r.Key0() <= hid.KeyZ:
				fmt.Fprintf(&sb, "^%c ", 'a'+r.Key0()-hid.KeyA)
			case r.Modifier == 0 && r.Key0() == 0:
				sb.WriteString("[00:00] ")
			case r.Modifier == 0 && hid.Mnemonic(r.Key0()) != "":
				fmt.Fprintf(&sb, "%s ", hid.Mnemonic(r.Key0()))
			default:
				fmt.Fprintf(&sb, "[%02x:%02x] ", r.Modifier, r.Key0())
			}
		case MQTTAction:
			fmt.Fprintf(&sb, "MQTT(%q, %q) ", act.Topic, act.Message)
		default:
			// Delay and MouseMove have no text form yet.
		}
		i++
	}

	sb.WriteString("}\n")
	return sb.String()
}

// ImportText replaces the entire stored macro set with the entries in text.
// The replacement is delete-then-insert, not transactional: a storage error
// mid-import leaves whatever had been written so far.
func (s *Store) ImportText(text string) (int, error) {
	defs, err := Parse(text, s.log)
	if err != nil {
		return 0, err
	}
	if err := s.DeleteAll(); err != nil {
		return 0, err
	}
	for i, def := range defs {
		if err := s.Save(def); err != nil {
			return i, err
		}
	}
	s.log.Info("imported macros", "count", len(defs))
	return len(defs), nil
}

// ExportText renders every loadable definition as text. Definitions that
// fail to load (confidential records while sealed) are skipped with a
// warning.
func (s *Store) ExportText() (string, error) {
	triggers, err := s.List()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(exportHeader)
	for _, t := range triggers {
		def, err := s.Load(t)
		if err != nil {
			s.log.Warn("skipping unloadable keydef", "trigger", fmt.Sprintf("0x%02X", t), "error", err)
			continue
		}
		sb.WriteString(Serialize(def))
	}
	return sb.String(), nil
}

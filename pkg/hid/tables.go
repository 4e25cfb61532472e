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

package hid

// Mapping is a (modifier, keycode) pair producing one character on a UK
// layout keyboard.
type Mapping struct {
	Mod byte
	Key byte
}

// asciiToHID maps printable characters to the report that types them.
// Layout quirks ('#', '@', '"', '~', backslash) follow the UK/ISO layout the
// physical device ships with.
var asciiToHID = map[rune]Mapping{
	' ':  {0x00, 0x2c},
	'!':  {0x02, 0x1e},
	'"':  {0x02, 0x1f},
	'#':  {0x00, 0x32},
	'$':  {0x02, 0x21},
	'%':  {0x02, 0x22},
	'&':  {0x02, 0x24},
	'\'': {0x00, 0x34},
	'(':  {0x02, 0x26},
	')':  {0x02, 0x27},
	'*':  {0x02, 0x25},
	'+':  {0x02, 0x2e},
	',':  {0x00, 0x36},
	'-':  {0x00, 0x2d},
	'.':  {0x00, 0x37},
	'/':  {0x00, 0x38},
	'0':  {0x00, 0x27},
	'1':  {0x00, 0x1e},
	'2':  {0x00, 0x1f},
	'3':  {0x00, 0x20},
	'4':  {0x00, 0x21},
	'5':  {0x00, 0x22},
	'6':  {0x00, 0x23},
	'7':  {0x00, 0x24},
	'8':  {0x00, 0x25},
	'9':  {0x00, 0x26},
	':':  {0x02, 0x33},
	';':  {0x00, 0x33},
	'<':  {0x02, 0x36},
	'=':  {0x00, 0x2e},
	'>':  {0x02, 0x37},
	'?':  {0x02, 0x38},
	'@':  {0x02, 0x34},
	'[':  {0x00, 0x2f},
	'\\': {0x00, 0x31},
	']':  {0x00, 0x30},
	'^':  {0x02, 0x23},
	'_':  {0x02, 0x2d},
	'`':  {0x00, 0x35},
	'{':  {0x02, 0x2f},
	'|':  {0x02, 0x31},
	'}':  {0x02, 0x30},
	'~':  {0x02, 0x32},
	'£':  {0x02, 0x20},
}

func init() {
	for c := 'a'; c <= 'z'; c++ {
		asciiToHID[c] = Mapping{0x00, KeyA + byte(c-'a')}
	}
	for c := 'A'; c <= 'Z'; c++ {
		asciiToHID[c] = Mapping{0x02, KeyA + byte(c-'A')}
	}
}

// MapChar returns the report mapping that types ch, if one exists.
func MapChar(ch rune) (Mapping, bool) {
	m, ok := asciiToHID[ch]
	return m, ok
}

// CharFor is the reverse of MapChar: the printable ASCII character produced
// by (modifier, keycode), or 0 if the pair does not type one.
func CharFor(mod, key byte) rune {
	for c := rune(32); c < 127; c++ {
		if m, ok := asciiToHID[c]; ok && m.Mod == mod && m.Key == key {
			return c
		}
	}
	return 0
}

// mnemonics names every non-printing key the macro grammar can reference.
// Order matters only for documentation output; lookups go through the maps
// built in init.
var mnemonics = []struct {
	Name string
	Code byte
}{
	{"ENTER", 0x28},
	{"ESC", 0x29},
	{"BACKSPACE", 0x2a},
	{"TAB", 0x2b},
	{"SPACE", 0x2c},
	{"CAPSLOCK", 0x39},
	{"F1", 0x3a},
	{"F2", 0x3b},
	{"F3", 0x3c},
	{"F4", 0x3d},
	{"F5", 0x3e},
	{"F6", 0x3f},
	{"F7", 0x40},
	{"F8", 0x41},
	{"F9", 0x42},
	{"F10", 0x43},
	{"F11", 0x44},
	{"F12", 0x45},
	{"PRINTSCREEN", 0x46},
	{"SCROLLLOCK", 0x47},
	{"PAUSE", 0x48},
	{"INSERT", 0x49},
	{"HOME", 0x4a},
	{"PAGEUP", 0x4b},
	{"DELETE", 0x4c},
	{"END", 0x4d},
	{"PAGEDOWN", 0x4e},
	{"RIGHT_ARROW", 0x4f},
	{"LEFT_ARROW", 0x50},
	{"DOWN_ARROW", 0x51},
	{"UP_ARROW", 0x52},
	{"NUMLOCK", 0x53},
	{"KP_DIVIDE", 0x54},
	{"KP_MULTIPLY", 0x55},
	{"KP_MINUS", 0x56},
	{"KP_PLUS", 0x57},
	{"KP_ENTER", 0x58},
	{"KP_1", 0x59},
	{"KP_2", 0x5a},
	{"KP_3", 0x5b},
	{"KP_4", 0x5c},
	{"KP_5", 0x5d},
	{"KP_6", 0x5e},
	{"KP_7", 0x5f},
	{"KP_8", 0x60},
	{"KP_9", 0x61},
	{"KP_0", 0x62},
	{"KP_DOT", 0x63},
	{"APPLICATION", 0x65},
	{"POWER", 0x66},
	{"KP_EQUALS", 0x67},
	{"F13", 0x68},
	{"F14", 0x69},
	{"F15", 0x6a},
	{"F16", 0x6b},
	{"F17", 0x6c},
	{"F18", 0x6d},
	{"F19", 0x6e},
	{"F20", 0x6f},
	{"F21", 0x70},
	{"F22", 0x71},
	{"F23", 0x72},
	{"F24", 0x73},
	{"EXECUTE", 0x74},
	{"HELP", 0x75},
	{"MENU", 0x76},
	{"SELECT", 0x77},
	{"STOP", 0x78},
	{"AGAIN", 0x79},
	{"UNDO", 0x7a},
	{"CUT", 0x7b},
	{"COPY", 0x7c},
	{"PASTE", 0x7d},
	{"FIND", 0x7e},
	{"MUTE", 0x7f},
	{"VOLUME_UP", 0x80},
	{"VOLUME_DOWN", 0x81},
	{"LOCKING_CAPS_LOCK", 0x82},
	{"LOCKING_NUM_LOCK", 0x83},
	{"LOCKING_SCROLL_LOCK", 0x84},
	{"KP_COMMA", 0x85},
	{"KP_EQUALS_AS400", 0x86},
	{"LEFT_CTRL", 0xe0},
	{"LEFT_SHIFT", 0xe1},
	{"LEFT_ALT", 0xe2},
	{"LEFT_GUI", 0xe3},
	{"RIGHT_CTRL", 0xe4},
	{"RIGHT_SHIFT", 0xe5},
	{"RIGHT_ALT", 0xe6},
	{"RIGHT_GUI", 0xe7},
}

var (
	mnemonicToCode = map[string]byte{}
	codeToMnemonic = map[byte]string{}
)

func init() {
	for _, m := range mnemonics {
		mnemonicToCode[m.Name] = m.Code
		if _, dup := codeToMnemonic[m.Code]; !dup {
			codeToMnemonic[m.Code] = m.Name
		}
	}
}

// MnemonicCode resolves a key name such as "ENTER" or "F1" to its usage code.
func MnemonicCode(name string) (byte, bool) {
	code, ok := mnemonicToCode[name]
	return code, ok
}

// Mnemonic returns the canonical name for a usage code, or "" if it has none.
func Mnemonic(code byte) string {
	return codeToMnemonic[code]
}

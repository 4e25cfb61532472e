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

// Modifier key bitmasks.
const (
	ModLeftCtrl   = 0x01
	ModLeftShift  = 0x02
	ModLeftAlt    = 0x04
	ModLeftGUI    = 0x08
	ModRightCtrl  = 0x10
	ModRightShift = 0x20
	ModRightAlt   = 0x40
	ModRightGUI   = 0x80
)

// Keyboard LED bitmasks (host → device output report).
const (
	LEDNumLock    = 0x01
	LEDCapsLock   = 0x02
	LEDScrollLock = 0x04
	LEDCompose    = 0x08
	LEDKana       = 0x10
)

// HID usage codes from the Keyboard/Keypad usage page. Only the codes the
// proxy dispatches on or the macro grammar names are listed individually;
// everything else passes through untouched.
const (
	KeyA byte = 0x04
	KeyB byte = 0x05
	KeyC byte = 0x06
	KeyD byte = 0x07
	KeyE byte = 0x08
	KeyF byte = 0x09
	KeyG byte = 0x0A
	KeyH byte = 0x0B
	KeyI byte = 0x0C
	KeyJ byte = 0x0D
	KeyK byte = 0x0E
	KeyL byte = 0x0F
	KeyM byte = 0x10
	KeyN byte = 0x11
	KeyO byte = 0x12
	KeyP byte = 0x13
	KeyQ byte = 0x14
	KeyR byte = 0x15
	KeyS byte = 0x16
	KeyT byte = 0x17
	KeyU byte = 0x18
	KeyV byte = 0x19
	KeyW byte = 0x1A
	KeyX byte = 0x1B
	KeyY byte = 0x1C
	KeyZ byte = 0x1D

	Key1 byte = 0x1E
	Key2 byte = 0x1F
	Key3 byte = 0x20
	Key4 byte = 0x21
	Key5 byte = 0x22
	Key6 byte = 0x23
	Key7 byte = 0x24
	Key8 byte = 0x25
	Key9 byte = 0x26
	Key0 byte = 0x27

	KeyEnter     byte = 0x28
	KeyEscape    byte = 0x29
	KeyBackspace byte = 0x2A
	KeyTab       byte = 0x2B
	KeySpace     byte = 0x2C
	KeyMinus     byte = 0x2D
	KeyEqual     byte = 0x2E

	KeyCapsLock byte = 0x39

	KeyF1  byte = 0x3A
	KeyF2  byte = 0x3B
	KeyF3  byte = 0x3C
	KeyF4  byte = 0x3D
	KeyF5  byte = 0x3E
	KeyF6  byte = 0x3F
	KeyF7  byte = 0x40
	KeyF8  byte = 0x41
	KeyF9  byte = 0x42
	KeyF10 byte = 0x43
	KeyF11 byte = 0x44
	KeyF12 byte = 0x45

	KeyPrintScreen byte = 0x46
	KeyScrollLock  byte = 0x47
	KeyPause       byte = 0x48
	KeyInsert      byte = 0x49
	KeyHome        byte = 0x4A
	KeyPageUp      byte = 0x4B
	KeyDelete      byte = 0x4C
	KeyEnd         byte = 0x4D
	KeyPageDown    byte = 0x4E
)

// Host-facing HID interface numbers. The proxy presents a composite device
// with a keyboard interface and a mouse interface.
const (
	InterfaceKeyboard uint8 = 0
	InterfaceMouse    uint8 = 1
)

// MaxReportSize is the largest payload carried on the host-facing queues.
const MaxReportSize = 16

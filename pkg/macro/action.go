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

// Package macro defines the KeyDef/Action data model, its binary record
// encoding, the human-editable text grammar, and persistence through the
// storage backend.
package macro

import (
	"fmt"

	"github.com/paulcager/hid-proxy/pkg/hid"
)

const (
	// MaxActions bounds the action sequence of a single KeyDef.
	MaxActions = 64

	// MaxStringLen bounds MQTT topic and message strings.
	MaxStringLen = 63
)

// Action is one step of a macro. The set is closed: ReportAction, MQTTAction,
// DelayAction and MouseMoveAction are the only implementations.
type Action interface {
	isAction()
}

// ReportAction replays one keyboard report.
type ReportAction struct {
	Report hid.Report
}

// MQTTAction publishes a message when the macro plays.
type MQTTAction struct {
	Topic   string
	Message string
}

// DelayAction pauses playback. Reserved; dispatch logs and continues.
type DelayAction struct {
	Millis uint16
}

// MouseMoveAction moves the pointer. Reserved; dispatch logs and continues.
type MouseMoveAction struct {
	DX int8
	DY int8
}

func (ReportAction) isAction()    {}
func (MQTTAction) isAction()      {}
func (DelayAction) isAction()     {}
func (MouseMoveAction) isAction() {}

// Record encoding tags, one per Action implementation.
const (
	tagReport    byte = 0x01
	tagMQTT      byte = 0x02
	tagDelay     byte = 0x03
	tagMouseMove byte = 0x04
)

func appendAction(buf []byte, a Action) ([]byte, error) {
	switch act := a.(type) {
	case ReportAction:
		buf = append(buf, tagReport, act.Report.Modifier)
		buf = append(buf, act.Report.Keycodes[:]...)
	case MQTTAction:
		if len(act.Topic) > MaxStringLen || len(act.Message) > MaxStringLen {
			return nil, fmt.Errorf("macro: mqtt action string exceeds %d bytes", MaxStringLen)
		}
		buf = append(buf, tagMQTT, byte(len(act.Topic)))
		buf = append(buf, act.Topic...)
		buf = append(buf, byte(len(act.Message)))
		buf = append(buf, act.Message...)
	case DelayAction:
		buf = append(buf, tagDelay, byte(act.Millis>>8), byte(act.Millis))
	case MouseMoveAction:
		buf = append(buf, tagMouseMove, byte(act.DX), byte(act.DY))
	default:
		return nil, fmt.Errorf("macro: unknown action type %T", a)
	}
	return buf, nil
}

func decodeAction(buf []byte) (Action, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("macro: truncated action")
	}
	switch buf[0] {
	case tagReport:
		if len(buf) < 8 {
			return nil, 0, fmt.Errorf("macro: truncated report action")
		}
		var r hid.Report
		r.Modifier = buf[1]
		copy(r.Keycodes[:], buf[2:8])
		return ReportAction{Report: r}, 8, nil
	case tagMQTT:
		if len(buf) < 2 {
			return nil, 0, fmt.Errorf("macro: truncated mqtt action")
		}
		topicLen := int(buf[1])
		if topicLen > MaxStringLen || len(buf) < 2+topicLen+1 {
			return nil, 0, fmt.Errorf("macro: malformed mqtt topic")
		}
		topic := string(buf[2 : 2+topicLen])
		msgLen := int(buf[2+topicLen])
		start := 2 + topicLen + 1
		if msgLen > MaxStringLen || len(buf) < start+msgLen {
			return nil, 0, fmt.Errorf("macro: malformed mqtt message")
		}
		message := string(buf[start : start+msgLen])
		return MQTTAction{Topic: topic, Message: message}, start + msgLen, nil
	case tagDelay:
		if len(buf) < 3 {
			return nil, 0, fmt.Errorf("macro: truncated delay action")
		}
		return DelayAction{Millis: uint16(buf[1])<<8 | uint16(buf[2])}, 3, nil
	case tagMouseMove:
		if len(buf) < 3 {
			return nil, 0, fmt.Errorf("macro: truncated mouse-move action")
		}
		return MouseMoveAction{DX: int8(buf[1]), DY: int8(buf[2])}, 3, nil
	default:
		return nil, 0, fmt.Errorf("macro: unknown action tag 0x%02x", buf[0])
	}
}

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

package proxy

import (
	"context"
	"fmt"
	"os"

	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/queue"
)

// HidrawSource reads boot-protocol keyboard reports from a /dev/hidrawN
// device node.
type HidrawSource struct {
	f   *os.File
	log *logging.Logger
}

// OpenHidraw opens the keyboard-facing device node.
func OpenHidraw(path string, log *logging.Logger) (*HidrawSource, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("proxy: open %s: %w", path, err)
	}
	return &HidrawSource{f: f, log: log}, nil
}

// ReadReport blocks on the device node for the next report. Reads are not
// interruptible by ctx on their own; closing the source unblocks them.
func (s *HidrawSource) ReadReport(ctx context.Context) (queue.Item, error) {
	buf := make([]byte, hid.MaxReportSize)
	n, err := s.f.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return queue.Item{}, ctx.Err()
		}
		return queue.Item{}, fmt.Errorf("proxy: read %s: %w", s.f.Name(), err)
	}
	return queue.Item{Interface: hid.InterfaceKeyboard, Data: buf[:n]}, nil
}

// SetLEDs writes a one-byte LED output report back to the keyboard.
func (s *HidrawSource) SetLEDs(state byte) error {
	_, err := s.f.Write([]byte{state})
	return err
}

func (s *HidrawSource) Close() error {
	return s.f.Close()
}

// GadgetSink writes reports to USB gadget function nodes (/dev/hidg0 for
// the keyboard interface, /dev/hidg1 for the mouse). The mouse path may be
// empty when no mouse interface is exposed.
type GadgetSink struct {
	keyboard *os.File
	mouse    *os.File
}

// OpenGadget opens the host-facing gadget nodes. The keyboard node is
// opened read-write so host LED output reports can be read back.
func OpenGadget(keyboardPath, mousePath string) (*GadgetSink, error) {
	kb, err := os.OpenFile(keyboardPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("proxy: open %s: %w", keyboardPath, err)
	}
	sink := &GadgetSink{keyboard: kb}
	if mousePath != "" {
		mouse, err := os.OpenFile(mousePath, os.O_WRONLY, 0)
		if err != nil {
			kb.Close()
			return nil, fmt.Errorf("proxy: open %s: %w", mousePath, err)
		}
		sink.mouse = mouse
	}
	return sink, nil
}

// WriteReport delivers one report to the matching gadget node.
func (g *GadgetSink) WriteReport(item queue.Item) error {
	target := g.keyboard
	if item.Interface == hid.InterfaceMouse {
		if g.mouse == nil {
			return nil
		}
		target = g.mouse
	}
	if _, err := target.Write(item.Data); err != nil {
		return fmt.Errorf("proxy: write %s: %w", target.Name(), err)
	}
	return nil
}

// ReadLED blocks on the keyboard gadget node for the host's next LED output
// report. Reads are not interruptible by ctx on their own; closing the sink
// unblocks them.
func (g *GadgetSink) ReadLED(ctx context.Context) (byte, error) {
	buf := make([]byte, 1)
	for {
		n, err := g.keyboard.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("proxy: read %s: %w", g.keyboard.Name(), err)
		}
		if n == 1 {
			return buf[0], nil
		}
	}
}

func (g *GadgetSink) Close() error {
	err := g.keyboard.Close()
	if g.mouse != nil {
		if merr := g.mouse.Close(); err == nil {
			err = merr
		}
	}
	return err
}

// Compile-time interface checks.
var (
	_ KeyboardSource = (*HidrawSource)(nil)
	_ HostSink       = (*GadgetSink)(nil)
	_ LEDReader      = (*GadgetSink)(nil)
)

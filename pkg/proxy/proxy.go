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

// Package proxy wires the transports, queues and interceptor into the
// running device. Two contexts execute in parallel: the keyboard-facing
// pump, which only reads raw reports and enqueues them, and the host-facing
// loop, which runs the interceptor, enforces the idle timeout and forwards
// LED state back to the keyboard. They share nothing but the queues.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/interceptor"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/metrics"
	"github.com/paulcager/hid-proxy/pkg/queue"
)

// KeyboardSource is the keyboard-facing transport.
type KeyboardSource interface {
	// ReadReport blocks until the next raw report arrives. The item's
	// Interface distinguishes keyboard from mouse reports.
	ReadReport(ctx context.Context) (queue.Item, error)

	// SetLEDs forwards a host LED output report to the physical keyboard.
	SetLEDs(state byte) error

	Close() error
}

// HostSink is the host-facing transport.
type HostSink interface {
	// WriteReport delivers one report to the host.
	WriteReport(item queue.Item) error

	Close() error
}

// LEDReader is implemented by sinks whose transport carries host LED output
// reports (caps lock and friends) back toward the keyboard.
type LEDReader interface {
	// ReadLED blocks until the host sends an LED output report and
	// returns its state byte.
	ReadLED(ctx context.Context) (byte, error)
}

// Config sizes the queues and the idle seal.
type Config struct {
	// InputCapacity bounds the raw-report queue (drop-oldest).
	InputCapacity int
	// OutputCapacity bounds the host-facing report queue.
	OutputCapacity int
	// LEDCapacity bounds the reverse LED queue (drop-oldest).
	LEDCapacity int
	// IdleTimeout seals the device after this much input silence while
	// unsealed. Zero disables the idle seal.
	IdleTimeout time.Duration
}

// DefaultConfig returns the sizes used when the config file leaves them
// unset.
func DefaultConfig() Config {
	return Config{
		InputCapacity:  64,
		OutputCapacity: 128,
		LEDCapacity:    8,
		IdleTimeout:    10 * time.Minute,
	}
}

// Proxy owns the queues and runs the two contexts.
type Proxy struct {
	cfg    Config
	source KeyboardSource
	sink   HostSink
	icept  *interceptor.Interceptor
	log    *logging.Logger

	input  *queue.Queue[queue.Item]
	output *queue.Queue[queue.Item]
	leds   *queue.Queue[byte]
}

// New creates a Proxy. The output queue must be the same queue the
// interceptor's engine plays into.
func New(cfg Config, source KeyboardSource, sink HostSink, icept *interceptor.Interceptor, output *queue.Queue[queue.Item], log *logging.Logger) *Proxy {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Proxy{
		cfg:    cfg,
		source: source,
		sink:   sink,
		icept:  icept,
		log:    log,
		input:  queue.New[queue.Item](cfg.InputCapacity),
		output: output,
		leds:   queue.New[byte](cfg.LEDCapacity),
	}
}

// SetLEDState is called by the host transport when the host changes LED
// state (caps lock and friends). Never blocks.
func (p *Proxy) SetLEDState(state byte) {
	if p.leds.PushDropOldest(state) {
		metrics.QueueDrops.WithLabelValues(metrics.QueueLED).Inc()
	}
}

// Run starts the pump, the interceptor loop and the output drain, and blocks
// until ctx ends or a transport fails.
func (p *Proxy) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 3)
	go func() { errc <- p.pumpInput(ctx) }()
	go func() { errc <- p.runInterceptor(ctx) }()
	go func() { errc <- p.drainOutput(ctx) }()
	if lr, ok := p.sink.(LEDReader); ok {
		go p.pumpLEDs(ctx, lr)
	}

	err := <-errc
	cancel()
	<-errc
	<-errc
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pumpLEDs reads host LED output reports from the sink and hands them to
// the LED queue. The reverse path is best-effort: a read failure ends the
// pump without taking the proxy down.
func (p *Proxy) pumpLEDs(ctx context.Context, lr LEDReader) {
	for {
		state, err := lr.ReadLED(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Warn("LED read failed, stopping LED pump", "error", err)
			}
			return
		}
		p.SetLEDState(state)
	}
}

// pumpInput is the keyboard-facing context: read raw reports and enqueue
// them without ever blocking on the consumer.
func (p *Proxy) pumpInput(ctx context.Context) error {
	for {
		item, err := p.source.ReadReport(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("proxy: keyboard read: %w", err)
		}
		if p.input.PushDropOldest(item) {
			metrics.QueueDrops.WithLabelValues(metrics.QueueInput).Inc()
		}
	}
}

// runInterceptor is the host-facing context: drain the input queue through
// the state machine, forward LED state, and seal on idle. The idle check
// runs once per loop iteration rather than on a timer.
func (p *Proxy) runInterceptor(ctx context.Context) error {
	lastInteraction := time.Now()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case item := <-p.input.C():
			lastInteraction = time.Now()
			if err := p.handleItem(ctx, item); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Storage and playback errors are recoverable; the
				// state machine has already resolved to a resting
				// state. Only cancellation ends the loop.
				p.log.Error("report handling failed", "error", err)
			}

		case state := <-p.leds.C():
			if err := p.source.SetLEDs(state); err != nil {
				p.log.Warn("forwarding LED state failed", "error", err)
			}

		case <-tick.C:
			// Fall through to the idle check.
		}

		if p.cfg.IdleTimeout > 0 &&
			p.icept.State() != interceptor.Blank &&
			p.icept.State() != interceptor.Sealed &&
			time.Since(lastInteraction) > p.cfg.IdleTimeout {
			p.log.Info("idle timeout")
			p.icept.Seal(metrics.SealTimeout)
		}
	}
}

func (p *Proxy) handleItem(ctx context.Context, item queue.Item) error {
	if item.Interface != hid.InterfaceKeyboard {
		// Mouse and other interfaces bypass the state machine.
		if p.output.PushDropOldest(item) {
			metrics.QueueDrops.WithLabelValues(metrics.QueueMouse).Inc()
		}
		return nil
	}
	report, err := hid.ReportFromBytes(item.Data)
	if err != nil {
		p.log.Warn("dropping malformed keyboard report", "error", err)
		return nil
	}
	return p.icept.HandleReport(ctx, report)
}

// drainOutput delivers queued reports to the host in FIFO order.
func (p *Proxy) drainOutput(ctx context.Context) error {
	for {
		item, err := p.output.PopWait(ctx)
		if err != nil {
			return err
		}
		if err := p.sink.WriteReport(item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("proxy: host write: %w", err)
		}
		label := metrics.QueueKeyboard
		if item.Interface != hid.InterfaceKeyboard {
			label = metrics.QueueMouse
		}
		metrics.ReportsForwarded.WithLabelValues(label).Inc()
	}
}

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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulcager/hid-proxy/pkg/credential"
	"github.com/paulcager/hid-proxy/pkg/engine"
	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/interceptor"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/queue"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

// scriptedSource replays a fixed report sequence, then blocks until the
// context ends.
type scriptedSource struct {
	reports []queue.Item
	pos     int
	mu      sync.Mutex
	leds    []byte
}

func (s *scriptedSource) ReadReport(ctx context.Context) (queue.Item, error) {
	s.mu.Lock()
	if s.pos < len(s.reports) {
		item := s.reports[s.pos]
		s.pos++
		s.mu.Unlock()
		return item, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return queue.Item{}, ctx.Err()
}

func (s *scriptedSource) SetLEDs(state byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leds = append(s.leds, state)
	return nil
}

func (s *scriptedSource) Close() error { return nil }

type recordingSink struct {
	mu    sync.Mutex
	items []queue.Item
}

func (r *recordingSink) WriteReport(item queue.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func (r *recordingSink) snapshot() []queue.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]queue.Item, len(r.items))
	copy(out, r.items)
	return out
}

func keyboardItem(mod, key byte) queue.Item {
	r := hid.Report{Modifier: mod}
	r.Keycodes[0] = key
	return queue.Item{Interface: hid.InterfaceKeyboard, Data: r.Bytes()}
}

func buildProxy(t *testing.T, cfg Config, source KeyboardSource) (*Proxy, *recordingSink, *interceptor.Interceptor) {
	t.Helper()
	backend := storage.NewMemory()
	creds := credential.NewManager(backend, []byte("dev"), credential.KeySize256, nil)
	store := macro.NewStore(backend, nil)
	output := queue.New[queue.Item](cfg.OutputCapacity)
	eng := engine.New(store, output, nil, nil)
	icept := interceptor.New(creds, store, eng, backend, interceptor.Hooks{}, nil)
	sink := &recordingSink{}
	return New(cfg, source, sink, icept, output, nil), sink, icept
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPassthroughEndToEnd(t *testing.T) {
	source := &scriptedSource{reports: []queue.Item{
		keyboardItem(0, hid.KeyH),
		keyboardItem(0, 0),
		keyboardItem(0, hid.KeyI),
		keyboardItem(0, 0),
	}}
	p, sink, _ := buildProxy(t, DefaultConfig(), source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	eventually(t, func() bool { return len(sink.snapshot()) == 4 }, "reports not forwarded")
	items := sink.snapshot()
	assert.Equal(t, keyboardItem(0, hid.KeyH).Data, items[0].Data)

	cancel()
	require.NoError(t, <-done)
}

func TestMouseReportsBypassInterceptor(t *testing.T) {
	mouse := queue.Item{Interface: hid.InterfaceMouse, Data: []byte{0x00, 0x05, 0xfb, 0x00}}
	source := &scriptedSource{reports: []queue.Item{mouse}}
	p, sink, _ := buildProxy(t, DefaultConfig(), source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	eventually(t, func() bool { return len(sink.snapshot()) == 1 }, "mouse report not forwarded")
	assert.Equal(t, hid.InterfaceMouse, sink.snapshot()[0].Interface)

	cancel()
	require.NoError(t, <-done)
}

func TestLEDStateForwarded(t *testing.T) {
	source := &scriptedSource{}
	p, _, _ := buildProxy(t, DefaultConfig(), source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.SetLEDState(hid.LEDCapsLock)
	eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.leds) == 1
	}, "LED state not forwarded")

	cancel()
	require.NoError(t, <-done)
}

// ledSink is a recordingSink whose transport also carries host LED output
// reports.
type ledSink struct {
	recordingSink
	states chan byte
}

func (l *ledSink) ReadLED(ctx context.Context) (byte, error) {
	select {
	case s := <-l.states:
		return s, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func TestHostLEDReportsReachKeyboard(t *testing.T) {
	backend := storage.NewMemory()
	creds := credential.NewManager(backend, []byte("dev"), credential.KeySize256, nil)
	store := macro.NewStore(backend, nil)
	output := queue.New[queue.Item](16)
	eng := engine.New(store, output, nil, nil)
	icept := interceptor.New(creds, store, eng, backend, interceptor.Hooks{}, nil)

	source := &scriptedSource{}
	sink := &ledSink{states: make(chan byte, 1)}
	p := New(DefaultConfig(), source, sink, icept, output, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	sink.states <- hid.LEDCapsLock
	eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return len(source.leds) == 1 && source.leds[0] == hid.LEDCapsLock
	}, "host LED report did not reach the keyboard")

	cancel()
	require.NoError(t, <-done)
}

func TestInterceptorErrorsDoNotStopProxy(t *testing.T) {
	backend := storage.NewMemory()
	creds := credential.NewManager(backend, []byte("dev"), credential.KeySize256, nil)
	store := macro.NewStore(backend, nil)
	output := queue.New[queue.Item](16)
	eng := engine.New(store, output, nil, nil)
	icept := interceptor.New(creds, store, eng, backend, interceptor.Hooks{}, nil)
	require.NoError(t, backend.Close())

	magic := hid.Report{Modifier: hid.ModLeftShift | hid.ModRightShift}
	source := &scriptedSource{reports: []queue.Item{
		{Interface: hid.InterfaceKeyboard, Data: magic.Bytes()},
		keyboardItem(0, 0),
		// The wipe chord fails against the closed backend; the daemon
		// must survive it and keep forwarding.
		keyboardItem(0, hid.KeyDelete),
		keyboardItem(0, 0),
		keyboardItem(0, hid.KeyA),
	}}
	sink := &recordingSink{}
	p := New(DefaultConfig(), source, sink, icept, output, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	eventually(t, func() bool { return len(sink.snapshot()) >= 1 }, "proxy stopped after interceptor error")
	assert.Equal(t, keyboardItem(0, hid.KeyA).Data, sink.snapshot()[0].Data)

	cancel()
	require.NoError(t, <-done)
}

func TestIdleTimeoutSeals(t *testing.T) {
	backend := storage.NewMemory()
	creds := credential.NewManager(backend, []byte("dev"), credential.KeySize256, nil)
	store := macro.NewStore(backend, nil)
	output := queue.New[queue.Item](16)
	eng := engine.New(store, output, nil, nil)
	icept := interceptor.New(creds, store, eng, backend, interceptor.Hooks{}, nil)

	cfg := DefaultConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	source := &scriptedSource{reports: []queue.Item{
		keyboardItem(0, hid.KeyA),
		keyboardItem(0, 0),
	}}
	sink := &recordingSink{}

	// Drive the interceptor into Unsealed via first-use provisioning.
	provision(t, icept)
	require.Equal(t, interceptor.Unsealed, icept.State())

	p := New(cfg, source, sink, icept, output, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	eventually(t, func() bool { return icept.State() == interceptor.Sealed }, "idle timeout did not seal")
	assert.False(t, backend.Unlocked())

	cancel()
	require.NoError(t, <-done)
}

func provision(t *testing.T, icept *interceptor.Interceptor) {
	t.Helper()
	ctx := context.Background()
	magic := hid.Report{Modifier: hid.ModLeftShift | hid.ModRightShift}
	seq := []hid.Report{magic, {}, pressKey(hid.KeyInsert), {}, pressKey(hid.KeyA), {}, pressKey(hid.KeyEnter)}
	for _, r := range seq {
		require.NoError(t, icept.HandleReport(ctx, r))
	}
}

func pressKey(key byte) hid.Report {
	r := hid.Report{}
	r.Keycodes[0] = key
	return r
}

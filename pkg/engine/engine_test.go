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

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/queue"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

type capturedPublish struct {
	topic, message string
}

type fakePublisher struct {
	published []capturedPublish
}

func (f *fakePublisher) Publish(topic, message string) error {
	f.published = append(f.published, capturedPublish{topic, message})
	return nil
}

func (f *fakePublisher) Close() {}

func setup(t *testing.T, capacity int) (*Engine, *macro.Store, *storage.MemoryBackend, *queue.Queue[queue.Item], *fakePublisher) {
	t.Helper()
	backend := storage.NewMemory()
	_, err := backend.InstallCredential(make([]byte, 32))
	require.NoError(t, err)
	store := macro.NewStore(backend, nil)
	out := queue.New[queue.Item](capacity)
	pub := &fakePublisher{}
	return New(store, out, pub, nil), store, backend, out, pub
}

func drain(q *queue.Queue[queue.Item]) []queue.Item {
	var items []queue.Item
	for {
		item, ok := q.Pop()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func pressReport(mod, key byte) hid.Report {
	r := hid.Report{Modifier: mod}
	r.Keycodes[0] = key
	return r
}

func TestEvaluateUnknownTriggerPassesThrough(t *testing.T) {
	eng, _, _, out, _ := setup(t, 16)

	press := pressReport(0, hid.KeyQ)
	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyQ, press))

	items := drain(out)
	require.Len(t, items, 2)
	assert.Equal(t, press.Bytes(), items[0].Data)
	assert.Equal(t, hid.ReleaseAll.Bytes(), items[1].Data)
}

func TestEvaluatePlaysMacro(t *testing.T) {
	eng, store, _, out, _ := setup(t, 16)

	def := macro.NewKeyDef(hid.KeyA)
	def.AppendReport(pressReport(0x02, 0x0b))
	def.AppendReport(hid.ReleaseAll)
	require.NoError(t, store.Save(def))

	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyA, pressReport(0, hid.KeyA)))

	items := drain(out)
	require.Len(t, items, 3, "release-all precedes the action sequence")
	assert.Equal(t, hid.ReleaseAll.Bytes(), items[0].Data)
	assert.Equal(t, pressReport(0x02, 0x0b).Bytes(), items[1].Data)
	assert.Equal(t, hid.ReleaseAll.Bytes(), items[2].Data)
}

func TestEvaluateSealedIndistinguishableFromAbsent(t *testing.T) {
	eng, store, backend, out, _ := setup(t, 16)

	def := macro.NewKeyDef(hid.KeyA)
	def.AppendReport(pressReport(0, hid.KeyEnter))
	require.NoError(t, store.Save(def))
	backend.ClearCredential()

	press := pressReport(0, hid.KeyA)
	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyA, press))
	sealed := drain(out)

	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyB, press))
	absent := drain(out)

	assert.Equal(t, absent, sealed, "locked trigger must behave exactly like a missing one")
}

func TestEvaluateMQTTAction(t *testing.T) {
	eng, store, _, out, pub := setup(t, 16)

	def := macro.NewKeyDef(hid.KeyA)
	def.Append(macro.MQTTAction{Topic: "alerts", Message: "fired"})
	require.NoError(t, store.Save(def))

	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyA, pressReport(0, hid.KeyA)))

	require.Len(t, pub.published, 1)
	assert.Equal(t, capturedPublish{"alerts", "fired"}, pub.published[0])
	// Only the leading release-all reaches the keyboard queue.
	assert.Len(t, drain(out), 1)
}

func TestEvaluateReservedActionsAreNoOps(t *testing.T) {
	eng, store, _, out, _ := setup(t, 16)

	def := macro.NewKeyDef(hid.KeyA)
	def.Append(macro.DelayAction{Millis: 100})
	def.Append(macro.MouseMoveAction{DX: 1, DY: 1})
	def.AppendReport(pressReport(0, hid.KeyEnter))
	require.NoError(t, store.Save(def))

	require.NoError(t, eng.Evaluate(context.Background(), hid.KeyA, pressReport(0, hid.KeyA)))

	items := drain(out)
	require.Len(t, items, 2)
	assert.Equal(t, pressReport(0, hid.KeyEnter).Bytes(), items[1].Data)
}

func TestEvaluateBackpressureDeliversAll(t *testing.T) {
	const actionCount = 20
	eng, store, _, out, _ := setup(t, 4)

	def := macro.NewKeyDef(hid.KeyA)
	for i := 0; i < actionCount; i++ {
		def.AppendReport(pressReport(0, hid.KeyB))
	}
	require.NoError(t, store.Save(def))

	done := make(chan error, 1)
	go func() {
		done <- eng.Evaluate(context.Background(), hid.KeyA, pressReport(0, hid.KeyA))
	}()

	var items []queue.Item
	for len(items) < actionCount+1 {
		item, err := out.PopWait(context.Background())
		require.NoError(t, err)
		items = append(items, item)
	}
	require.NoError(t, <-done)

	assert.Len(t, items, actionCount+1, "K actions deliver exactly K+1 items")
	assert.Equal(t, hid.ReleaseAll.Bytes(), items[0].Data)
	assert.Zero(t, out.Drops())
}

func TestForwardDropOldestUnderFullQueue(t *testing.T) {
	eng, _, _, out, _ := setup(t, 2)

	for i := 0; i < 5; i++ {
		eng.Forward(pressReport(0, byte(hid.KeyA+byte(i))))
	}

	assert.Equal(t, uint64(3), out.Drops())
	items := drain(out)
	require.Len(t, items, 2)
	// The two newest survive.
	assert.Equal(t, pressReport(0, hid.KeyA+3).Bytes(), items[0].Data)
	assert.Equal(t, pressReport(0, hid.KeyA+4).Bytes(), items[1].Data)
}

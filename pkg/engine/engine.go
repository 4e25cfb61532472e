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

// Package engine replays macro action sequences to the output queue.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulcager/hid-proxy/pkg/hid"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/metrics"
	"github.com/paulcager/hid-proxy/pkg/mqtt"
	"github.com/paulcager/hid-proxy/pkg/queue"
	"github.com/paulcager/hid-proxy/pkg/storage"
)

// Engine loads KeyDefs on demand and plays them to the host output queue.
type Engine struct {
	store *macro.Store
	out   *queue.Queue[queue.Item]
	pub   mqtt.Publisher
	log   *logging.Logger
}

// New creates an Engine. pub may be a mqtt.NopPublisher when no broker is
// configured.
func New(store *macro.Store, out *queue.Queue[queue.Item], pub mqtt.Publisher, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.DefaultLogger()
	}
	if pub == nil {
		pub = mqtt.NopPublisher{Log: log}
	}
	return &Engine{store: store, out: out, pub: pub, log: log}
}

func keyboardItem(r hid.Report) queue.Item {
	return queue.Item{Interface: hid.InterfaceKeyboard, Data: r.Bytes()}
}

// Evaluate resolves trigger against the macro store.
//
// When no definition is playable the original report plus a release-all are
// forwarded under the drop-oldest policy; this is the latency-sensitive
// passthrough path for unknown keys. A sealed confidential definition takes
// exactly the same path, so an observer cannot tell a locked trigger from an
// absent one.
//
// When a definition loads, a release-all report and then each action are
// enqueued under backpressure, so a slow host paces playback instead of
// truncating it.
func (e *Engine) Evaluate(ctx context.Context, trigger byte, passthrough hid.Report) error {
	def, err := e.store.Load(trigger)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrAuthFailure) {
			e.log.Error("keydef load failed, passing key through", "trigger", fmt.Sprintf("0x%02X", trigger), "error", err)
		}
		e.passthrough(passthrough)
		metrics.MacroPlays.WithLabelValues(metrics.ResultPassthrough).Inc()
		return nil
	}

	if err := e.out.Push(ctx, keyboardItem(hid.ReleaseAll)); err != nil {
		return err
	}
	for _, a := range def.Actions {
		if err := e.dispatch(ctx, a); err != nil {
			return err
		}
	}
	metrics.MacroPlays.WithLabelValues(metrics.ResultPlayed).Inc()
	e.log.Debug("played macro", "trigger", fmt.Sprintf("0x%02X", trigger), "actions", len(def.Actions))
	return nil
}

func (e *Engine) passthrough(r hid.Report) {
	if e.out.PushDropOldest(keyboardItem(r)) {
		metrics.QueueDrops.WithLabelValues(metrics.QueueKeyboard).Inc()
	}
	if e.out.PushDropOldest(keyboardItem(hid.ReleaseAll)) {
		metrics.QueueDrops.WithLabelValues(metrics.QueueKeyboard).Inc()
	}
}

// Forward sends a report straight to the host under the drop-oldest policy.
// Used for ordinary keystrokes that never touched the macro path.
func (e *Engine) Forward(r hid.Report) {
	if e.out.PushDropOldest(keyboardItem(r)) {
		metrics.QueueDrops.WithLabelValues(metrics.QueueKeyboard).Inc()
	}
}

func (e *Engine) dispatch(ctx context.Context, a macro.Action) error {
	switch act := a.(type) {
	case macro.ReportAction:
		return e.out.Push(ctx, keyboardItem(act.Report))
	case macro.MQTTAction:
		if err := e.pub.Publish(act.Topic, act.Message); err != nil {
			metrics.MQTTPublishes.WithLabelValues(metrics.ResultError).Inc()
			e.log.Error("mqtt publish failed", "topic", act.Topic, "error", err)
			return nil
		}
		metrics.MQTTPublishes.WithLabelValues(metrics.ResultSuccess).Inc()
		return nil
	case macro.DelayAction:
		e.log.Warn("delay action not implemented", "ms", act.Millis)
		return nil
	case macro.MouseMoveAction:
		e.log.Warn("mouse-move action not implemented")
		return nil
	default:
		e.log.Error("unknown action type", "type", fmt.Sprintf("%T", a))
		return nil
	}
}

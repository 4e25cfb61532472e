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

// Package metrics provides Prometheus instrumentation for the proxy's data
// path and credential lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all proxy metrics.
	Namespace = "hidproxy"

	// Label names
	LabelQueue  = "queue"
	LabelState  = "state"
	LabelResult = "result"

	// Queue names
	QueueInput    = "input"
	QueueKeyboard = "keyboard"
	QueueMouse    = "mouse"
	QueueLED      = "led"
)

var (
	// ReportsReceived counts raw reports read from the physical keyboard.
	ReportsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reports_received_total",
			Help:      "Total HID reports received from the physical keyboard",
		},
	)

	// ReportsForwarded counts reports sent on to the host by interface.
	ReportsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reports_forwarded_total",
			Help:      "Total HID reports forwarded to the host by interface",
		},
		[]string{LabelQueue},
	)

	// QueueDrops counts elements evicted by the drop-oldest policy.
	QueueDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queue_drops_total",
			Help:      "Total queue elements evicted under the drop-oldest policy",
		},
		[]string{LabelQueue},
	)

	// MacroPlays counts macro evaluations by result (played, passthrough).
	MacroPlays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "macro_plays_total",
			Help:      "Total macro trigger evaluations by result",
		},
		[]string{LabelResult},
	)

	// AuthFailures counts rejected password attempts.
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_failures_total",
			Help:      "Total failed credential validations",
		},
	)

	// Seals counts transitions into the sealed state by cause
	// (timeout, command, failure).
	Seals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "seals_total",
			Help:      "Total transitions into the sealed state by cause",
		},
		[]string{LabelResult},
	)

	// DeviceState mirrors the interceptor state as a gauge, one series per
	// state with value 1 for the active state.
	DeviceState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "device_state",
			Help:      "Current interceptor state (1 for the active state)",
		},
		[]string{LabelState},
	)

	// MQTTPublishes counts broker publishes by result.
	MQTTPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "mqtt_publishes_total",
			Help:      "Total MQTT publishes by result",
		},
		[]string{LabelResult},
	)
)

// Macro evaluation results.
const (
	ResultPlayed      = "played"
	ResultPassthrough = "passthrough"
	ResultSuccess     = "success"
	ResultError       = "error"
)

// Seal causes.
const (
	SealTimeout = "timeout"
	SealCommand = "command"
	SealFailure = "auth_failure"
)

// SetDeviceState marks state as active and every other known state
// inactive.
func SetDeviceState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		DeviceState.WithLabelValues(s).Set(v)
	}
}

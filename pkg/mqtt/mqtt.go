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

// Package mqtt publishes macro actions and device status to an MQTT broker.
// The proxy works fully without a broker; every publish degrades to a log
// line when the subsystem is unavailable.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/paulcager/hid-proxy/pkg/logging"
)

// Publisher is the outbound side used by macro playback and status
// reporting.
type Publisher interface {
	Publish(topic, message string) error
	Close()
}

// NopPublisher logs and discards every publish. Used when no broker is
// configured.
type NopPublisher struct {
	Log *logging.Logger
}

func (n NopPublisher) Publish(topic, message string) error {
	if n.Log != nil {
		n.Log.Debug("mqtt unavailable, dropping publish", "topic", topic)
	}
	return nil
}

func (n NopPublisher) Close() {}

const (
	qos            = 1
	retain         = true
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Client wraps a paho connection. Status topics are namespaced under a
// per-device prefix ("hidproxy-XXXX"); macro publishes use their stored
// topic verbatim.
type Client struct {
	conn        paho.Client
	topicPrefix string
	log         *logging.Logger
}

// Options configures a broker connection.
type Options struct {
	// BrokerURL is a paho URL such as "tcp://broker.local:1883" or
	// "ssl://broker.local:8883".
	BrokerURL string
	// DeviceID distinguishes this proxy; its last 4 characters form the
	// client ID and status topic prefix.
	DeviceID string
	Username string
	Password string
}

// Connect dials the broker. The connection carries a last-will message so
// the broker reports the device offline if it drops.
func Connect(opts Options, log *logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.DefaultLogger()
	}
	suffix := opts.DeviceID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	prefix := fmt.Sprintf("hidproxy-%s", suffix)

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(prefix).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetWill(prefix+"/status", "offline", qos, retain)
	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	pahoOpts.SetOnConnectHandler(func(c paho.Client) {
		log.Info("mqtt connected", "broker", opts.BrokerURL)
		c.Publish(prefix+"/status", qos, retain, "online")
	})
	pahoOpts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	conn := paho.NewClient(pahoOpts)
	token := conn.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", opts.BrokerURL, err)
	}

	return &Client{conn: conn, topicPrefix: prefix, log: log}, nil
}

// Publish sends message to topic at QoS 1.
func (c *Client) Publish(topic, message string) error {
	token := c.conn.Publish(topic, qos, false, message)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	return nil
}

// PublishLockState reports seal state changes on the device status topic.
func (c *Client) PublishLockState(sealed bool) {
	msg := "unlocked"
	if sealed {
		msg = "locked"
	}
	token := c.conn.Publish(c.topicPrefix+"/lock", qos, retain, msg)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		c.log.Warn("failed to publish lock state", "error", token.Error())
	}
}

// Close disconnects from the broker after flushing in-flight messages.
func (c *Client) Close() {
	c.conn.Publish(c.topicPrefix+"/status", qos, retain, "offline").WaitTimeout(publishTimeout)
	c.conn.Disconnect(250)
}

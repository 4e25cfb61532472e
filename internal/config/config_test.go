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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Device.KeySize)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, Duration(10*time.Minute), cfg.Proxy.IdleTimeout)
	assert.Equal(t, "/dev/hidraw0", cfg.Device.HidrawPath)
	assert.Equal(t, "/dev/hidg0", cfg.Device.GadgetKeyboard)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
device:
  id: desk-proxy-01
  key_size: 16
storage:
  backend: memory
proxy:
  idle_timeout: 5m
mqtt:
  enabled: true
  broker: tcp://broker.local:1883
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "desk-proxy-01", cfg.Device.ID)
	assert.Equal(t, 16, cfg.Device.KeySize)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, Duration(5*time.Minute), cfg.Proxy.IdleTimeout)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	// Unset fields keep defaults.
	assert.Equal(t, 64, cfg.Proxy.InputQueueSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HIDPROXY_DEVICE_ID", "env-proxy")
	t.Setenv("HIDPROXY_STORAGE_BACKEND", "memory")
	t.Setenv("HIDPROXY_IDLE_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-proxy", cfg.Device.ID)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, Duration(30*time.Second), cfg.Proxy.IdleTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty device id":   func(c *Config) { c.Device.ID = "" },
		"bad key size":      func(c *Config) { c.Device.KeySize = 24 },
		"bad backend":       func(c *Config) { c.Storage.Backend = "sqlite" },
		"missing path":      func(c *Config) { c.Storage.Path = "" },
		"zero queue":        func(c *Config) { c.Proxy.InputQueueSize = 0 },
		"mqtt no broker":    func(c *Config) { c.MQTT.Enabled = true },
		"bad log level":     func(c *Config) { c.Logging.Level = "verbose" },
		"metrics no listen": func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "10m".
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(n)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Config represents the complete proxy configuration
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Storage StorageConfig `yaml:"storage"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DeviceConfig identifies this proxy and sizes its credential
type DeviceConfig struct {
	// ID is the unique device identity mixed into the key derivation salt.
	ID string `yaml:"id"`
	// KeySize is the derived credential size in bytes: 16 or 32.
	KeySize int `yaml:"key_size"`
	// HidrawPath is the keyboard-facing device node.
	HidrawPath string `yaml:"hidraw_path"`
	// GadgetKeyboard and GadgetMouse are the host-facing gadget function
	// nodes. GadgetMouse may be empty when no mouse interface is exposed.
	GadgetKeyboard string `yaml:"gadget_keyboard"`
	GadgetMouse    string `yaml:"gadget_mouse"`
}

// StorageConfig selects and locates the key-value backend
type StorageConfig struct {
	// Backend is "badger" (persistent) or "memory" (volatile, for testing).
	Backend string `yaml:"backend"`
	// Path is the Badger database directory.
	Path string `yaml:"path"`
}

// ProxyConfig sizes the queues and the idle seal
type ProxyConfig struct {
	InputQueueSize  int      `yaml:"input_queue_size"`
	OutputQueueSize int      `yaml:"output_queue_size"`
	LEDQueueSize    int      `yaml:"led_queue_size"`
	IdleTimeout     Duration `yaml:"idle_timeout"`
}

// MQTTConfig controls the optional broker connection
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:             "hid-proxy",
			KeySize:        32,
			HidrawPath:     "/dev/hidraw0",
			GadgetKeyboard: "/dev/hidg0",
			GadgetMouse:    "/dev/hidg1",
		},
		Storage: StorageConfig{
			Backend: "badger",
			Path:    "/var/lib/hid-proxy",
		},
		Proxy: ProxyConfig{
			InputQueueSize:  64,
			OutputQueueSize: 128,
			LEDQueueSize:    8,
			IdleTimeout:     Duration(10 * time.Minute),
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Listen: ":9464"},
	}
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if id := os.Getenv("HIDPROXY_DEVICE_ID"); id != "" {
		cfg.Device.ID = id
	}
	if path := os.Getenv("HIDPROXY_STORAGE_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if backend := os.Getenv("HIDPROXY_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := os.Getenv("HIDPROXY_HIDRAW"); path != "" {
		cfg.Device.HidrawPath = path
	}
	if broker := os.Getenv("HIDPROXY_MQTT_BROKER"); broker != "" {
		cfg.MQTT.Broker = broker
		cfg.MQTT.Enabled = true
	}
	if user := os.Getenv("HIDPROXY_MQTT_USERNAME"); user != "" {
		cfg.MQTT.Username = user
	}
	if pass := os.Getenv("HIDPROXY_MQTT_PASSWORD"); pass != "" {
		cfg.MQTT.Password = pass
	}
	if level := os.Getenv("HIDPROXY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if keySize := os.Getenv("HIDPROXY_KEY_SIZE"); keySize != "" {
		size, err := strconv.Atoi(keySize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid HIDPROXY_KEY_SIZE value %q, using default %d\n",
				keySize, cfg.Device.KeySize)
		} else {
			cfg.Device.KeySize = size
		}
	}
	if timeout := os.Getenv("HIDPROXY_IDLE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid HIDPROXY_IDLE_TIMEOUT value %q, using default %s\n",
				timeout, cfg.Proxy.IdleTimeout)
		} else {
			cfg.Proxy.IdleTimeout = Duration(d)
		}
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Device.ID == "" {
		return fmt.Errorf("device id must not be empty")
	}
	if c.Device.KeySize != 16 && c.Device.KeySize != 32 {
		return fmt.Errorf("invalid key size: %d (must be 16 or 32)", c.Device.KeySize)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "badger":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger or memory)", c.Storage.Backend)
	}

	if c.Proxy.InputQueueSize < 1 || c.Proxy.OutputQueueSize < 1 || c.Proxy.LEDQueueSize < 1 {
		return fmt.Errorf("queue sizes must be positive")
	}
	if c.Proxy.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt broker is required when mqtt is enabled")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics listen address is required when metrics are enabled")
	}
	return nil
}

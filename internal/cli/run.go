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

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/paulcager/hid-proxy/internal/config"
	"github.com/paulcager/hid-proxy/pkg/credential"
	"github.com/paulcager/hid-proxy/pkg/engine"
	"github.com/paulcager/hid-proxy/pkg/health"
	"github.com/paulcager/hid-proxy/pkg/interceptor"
	"github.com/paulcager/hid-proxy/pkg/logging"
	"github.com/paulcager/hid-proxy/pkg/macro"
	"github.com/paulcager/hid-proxy/pkg/mqtt"
	"github.com/paulcager/hid-proxy/pkg/proxy"
	"github.com/paulcager/hid-proxy/pkg/queue"
	"github.com/paulcager/hid-proxy/pkg/storage"
	"github.com/paulcager/hid-proxy/pkg/storage/badgerkv"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the proxy daemon",
	Long: `Run the proxy daemon: read keyboard reports from the hidraw node,
pass them through the interceptor and write the results to the USB
gadget nodes.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDaemon(); err != nil {
			handleError(err)
		}
	},
}

func runDaemon() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	backend, gate, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	var pub mqtt.Publisher = mqtt.NopPublisher{Log: log}
	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(mqtt.Options{
			BrokerURL: cfg.MQTT.Broker,
			DeviceID:  cfg.Device.ID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Warnf("mqtt connect failed, continuing without broker: %v", err)
		} else {
			pub = client
		}
	}
	defer pub.Close()

	creds := credential.NewManager(gate, []byte(cfg.Device.ID), cfg.Device.KeySize, log)
	store := macro.NewStore(backend, log)
	output := queue.New[queue.Item](cfg.Proxy.OutputQueueSize)
	eng := engine.New(store, output, pub, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hooks := interceptor.Hooks{
		Reboot: func() {
			log.Warn("reboot chord received, shutting down")
			stop()
		},
		WebAccess: func() {
			log.Info("web access requested")
		},
		SealChanged: func(sealed bool) {
			if c, ok := pub.(*mqtt.Client); ok {
				c.PublishLockState(sealed)
			}
		},
	}
	icept := interceptor.New(creds, store, eng, gate, hooks, log)

	source, err := proxy.OpenHidraw(cfg.Device.HidrawPath, log)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := proxy.OpenGadget(cfg.Device.GadgetKeyboard, cfg.Device.GadgetMouse)
	if err != nil {
		return err
	}
	defer sink.Close()

	checker := health.NewChecker()
	checker.RegisterCheck("storage", func(ctx context.Context) health.CheckResult {
		if _, err := store.List(); err != nil {
			return health.CheckResult{Status: health.StatusUnhealthy, Error: err.Error()}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	})
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Listen, checker, log)
	}

	p := proxy.New(proxy.Config{
		InputCapacity:  cfg.Proxy.InputQueueSize,
		OutputCapacity: cfg.Proxy.OutputQueueSize,
		LEDCapacity:    cfg.Proxy.LEDQueueSize,
		IdleTimeout:    time.Duration(cfg.Proxy.IdleTimeout),
	}, source, sink, icept, output, log)

	checker.MarkStarted()
	log.Info("hid-proxy started",
		"device_id", cfg.Device.ID,
		"hidraw", cfg.Device.HidrawPath,
		"backend", cfg.Storage.Backend)
	return p.Run(ctx)
}

func serveMetrics(listen string, checker *health.Checker, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checker.LivenessHandler())
	mux.Handle("/readyz", checker.ReadinessHandler())
	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("metrics endpoint listening", "addr", listen)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("metrics endpoint failed: %v", err)
	}
}

// openBackend opens the configured key-value store. Both backends also act
// as the credential gate.
func openBackend(cfg *config.Config) (storage.Backend, storage.CredentialGate, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "memory":
		m := storage.NewMemory()
		return m, m, nil
	case "badger":
		b, err := badgerkv.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage at %s: %w", cfg.Storage.Path, err)
		}
		return b, b, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newLogger(cfg *config.Config) *logging.Logger {
	debug := verbose || strings.EqualFold(cfg.Logging.Level, "debug")
	return logging.NewLogger(debug)
}

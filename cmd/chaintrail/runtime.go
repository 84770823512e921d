package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/chaintrail/client"
	"github.com/brojonat/chaintrail/service/config"
	"github.com/brojonat/chaintrail/service/ledger"
	"github.com/brojonat/chaintrail/service/logging"
	"github.com/brojonat/chaintrail/service/metrics"
	"github.com/brojonat/chaintrail/service/server"
	"github.com/brojonat/chaintrail/service/session"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// runtime holds everything a command needs, built from config and flags.
type runtime struct {
	cfg      *config.Config
	params   *chaincfg.Params
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	ledger   *client.Client

	metricsServer *server.Server
	store         session.Store
}

// loadConfig reads the config file and environment, then applies flags that
// were set explicitly.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("network") {
		cfg.Network = c.String("network")
		if !c.IsSet("esplora-url") {
			cfg.EsploraURL = ledger.DefaultEsploraURL(cfg.Network)
		}
	}
	if c.IsSet("esplora-url") {
		cfg.EsploraURL = c.String("esplora-url")
	}
	if c.IsSet("request-delay") {
		cfg.RequestDelay = c.Duration("request-delay")
	}
	if c.IsSet("session-backend") {
		cfg.SessionBackend = c.String("session-backend")
	}
	if c.IsSet("session-dir") {
		cfg.SessionDir = c.String("session-dir")
	}
	if c.IsSet("error-log") {
		cfg.ErrorLogFile = c.String("error-log")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("metrics-addr") {
		cfg.MetricsAddr = c.String("metrics-addr")
	}
	if c.Bool("no-color") {
		cfg.NoColor = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// newRuntime builds the ledger client and metrics, and starts the metrics
// server when an address is configured. Call close when done.
func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	params, err := ledger.NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.LogLevel, c.App.ErrWriter)
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	pacer := client.NewPacer(cfg.RequestDelay, nil)

	rt := &runtime{
		cfg:      cfg,
		params:   params,
		logger:   logger,
		registry: registry,
		metrics:  m,
		ledger:   client.NewClient(cfg.EsploraURL, httpClient, pacer, m, logger),
	}

	if cfg.MetricsAddr != "" {
		rt.startMetricsServer()
	}

	logger.Debug("runtime ready",
		"network", cfg.Network,
		"esplora_url", cfg.EsploraURL,
		"request_delay", cfg.RequestDelay,
		"session_backend", cfg.SessionBackend,
	)
	return rt, nil
}

func (rt *runtime) startMetricsServer() {
	rt.metricsServer = server.New(rt.cfg.MetricsAddr, rt.registry, rt.logger)
	go func() {
		if err := rt.metricsServer.Start(); err != nil {
			rt.logger.Error("metrics server failed", "error", err)
		}
	}()
}

// openStore opens the configured session backend.
func (rt *runtime) openStore() (session.Store, error) {
	if rt.store != nil {
		return rt.store, nil
	}
	var (
		store session.Store
		err   error
	)
	switch rt.cfg.SessionBackend {
	case config.BackendPebble:
		store, err = session.OpenPebbleStore(rt.cfg.PebblePath, nil)
		if err != nil {
			return nil, err
		}
	default:
		store = session.NewFileStore(rt.cfg.SessionDir, nil)
	}
	rt.store = store
	return store, nil
}

func (rt *runtime) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Error("failed to close session store", "error", err)
		}
	}
	if rt.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.metricsServer.Shutdown(ctx); err != nil {
			rt.logger.Error("failed to stop metrics server", "error", err)
		}
	}
}

// Helper function to output JSON
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package main implements the mycelium driver daemon. It loads a driver
// configuration, builds the configured components on the selected
// platform, and serves them to controllers over TCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joshuasello/mycelium-iot/config"
	"github.com/joshuasello/mycelium-iot/driver"
	"github.com/joshuasello/mycelium-iot/health"
	"github.com/joshuasello/mycelium-iot/metric"
	"github.com/joshuasello/mycelium-iot/natsclient"
	"github.com/joshuasello/mycelium-iot/platform"
	"github.com/joshuasello/mycelium-iot/platform/dummy"
	"github.com/joshuasello/mycelium-iot/transport"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "myceliumd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Driver failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.LoadDriver(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cliCfg.Listen != "" {
		cfg.Listen = cliCfg.Listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	logger.Info("Starting mycelium driver",
		"config_path", cliCfg.ConfigPath,
		"listen", cfg.Listen,
		"platform", cfg.Platform,
		"components", len(cfg.Components))

	registry, err := platformRegistry(cfg.Platform)
	if err != nil {
		return err
	}
	components, err := cfg.BuildComponents(registry)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	monitor := health.NewMonitor()
	opts := []driver.Option{driver.WithHealth(monitor)}

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsRegistry := metric.NewMetricsRegistry()
		opts = append(opts, driver.WithMetrics(metricsRegistry))

		metricsServer = metric.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, metricsRegistry, logger)
		metricsServer.HealthHandler(monitor.Handler(appName))
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop(cliCfg.ShutdownTimeout) }()
	}

	if cfg.Telemetry.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.Telemetry.URL
		natsCfg.Name = appName
		if cfg.Telemetry.ReconnectWait.Std() > 0 {
			natsCfg.ReconnectWait = cfg.Telemetry.ReconnectWait.Std()
		}
		natsClient, err := natsclient.Connect(natsCfg, logger)
		if err != nil {
			return fmt.Errorf("connect telemetry: %w", err)
		}

		prefix := cfg.Telemetry.SubjectPrefix
		if prefix == "" {
			prefix = "mycelium.driver"
		}
		telemetry := driver.NewTelemetry(natsClient, prefix, logger)
		defer telemetry.Close()
		opts = append(opts, driver.WithTelemetry(telemetry))
	}

	serverCfg := driver.DefaultConfig()
	if cfg.QueueDepth > 0 {
		serverCfg.QueueDepth = cfg.QueueDepth
	}
	if cfg.ShutdownTimeout.Std() > 0 {
		serverCfg.ShutdownTimeout = cfg.ShutdownTimeout.Std()
	}

	server, err := driver.NewServer(serverCfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	for id, comp := range components {
		if err := server.RegisterComponent(id, comp); err != nil {
			return fmt.Errorf("register component %q: %w", id, err)
		}
	}

	transportCfg := transport.DefaultConfig()
	if cfg.Transport.MaxFrameSize > 0 {
		transportCfg.MaxFrameSize = cfg.Transport.MaxFrameSize
	}
	if cfg.Transport.WriteTimeout.Std() > 0 {
		transportCfg.WriteTimeout = cfg.Transport.WriteTimeout.Std()
	}
	listener, err := transport.Listen(cfg.Listen, transportCfg)
	if err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Listen, err)
	}

	// SIGINT or SIGTERM cancels the context; Serve then closes the
	// listener, drains in-flight operations, and returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, listener)
}

func platformRegistry(name string) (*platform.Registry, error) {
	switch name {
	case "", "dummy":
		return dummy.Default(), nil
	default:
		return nil, fmt.Errorf("unknown platform %q", name)
	}
}

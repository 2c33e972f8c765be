// Package main implements ncstreams, the operator tool for the NETCONF
// notification stream engine: inspect stream status, create streams and
// rules, publish events, and follow a stream's replay and live phases.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/955Gmy/libnetconf/bus"
	"github.com/955Gmy/libnetconf/config"
	"github.com/955Gmy/libnetconf/engine"
	"github.com/955Gmy/libnetconf/metric"
	"github.com/955Gmy/libnetconf/notification"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "ncstreams"
)

func main() {
	if err := run(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := parseFlags()
	if err := validateFlags(cfg); err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cfg.ShowHelp || len(flagArgs()) == 0 {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	b, err := connectBus(cfg)
	if err != nil {
		return err
	}

	engCfg := config.Default()
	engCfg.StreamsPath = cfg.StreamsPath

	metrics := metric.NewMetricsRegistry()
	eng, err := engine.New(engCfg, b,
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.Metrics))
	if err != nil {
		return err
	}
	defer eng.Close()

	if cfg.MetricsPort > 0 {
		go serveMetrics(cfg.MetricsPort, metrics)
	}

	args := flagArgs()
	switch args[0] {
	case "status":
		fmt.Println(eng.Status())
		return nil
	case "streams":
		for _, name := range eng.Registry().List() {
			fmt.Println(name)
		}
		return nil
	case "new":
		return runNew(eng, args[1:])
	case "allow":
		return runAllow(eng, args[1:])
	case "publish":
		return runPublish(eng, cfg, args[1:])
	case "subscribe":
		return runSubscribe(eng, cfg)
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

// flagArgs returns the positional arguments after flag parsing
func flagArgs() []string {
	return flag.Args()
}

func connectBus(cfg *CLIConfig) (bus.Bus, error) {
	switch cfg.BusKind {
	case "dbus":
		return bus.ConnectDBus()
	case "nats":
		return bus.ConnectNATS(cfg.NATSURL)
	default:
		// In-process only: useful for inspecting stream files on hosts
		// without a bus daemon.
		return bus.NewMemoryBroker().Client(), nil
	}
}

func serveMetrics(port int, metrics *metric.MetricsRegistry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	slog.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}

func runNew(eng *engine.Engine, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: %s new <name> <desc> <replay>", appName)
	}
	replay, err := strconv.ParseBool(args[2])
	if err != nil {
		return fmt.Errorf("invalid replay flag %q: %w", args[2], err)
	}
	return eng.NewStream(args[0], args[1], replay)
}

func runAllow(eng *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s allow <stream> <event>...", appName)
	}
	return eng.AllowEvents(args[0], args[1:]...)
}

func runPublish(eng *engine.Engine, cfg *CLIConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s publish <xml>", appName)
	}

	xml := args[0]
	if xml == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		xml = string(data)
	}

	return eng.Publish(cfg.eventTime(), notification.Generic{XML: xml})
}

func runSubscribe(eng *engine.Engine, cfg *CLIConfig) error {
	var start, stop time.Time
	var err error
	if cfg.StartTime != "" {
		if start, err = notification.ParseTime(cfg.StartTime); err != nil {
			return fmt.Errorf("invalid start time: %w", err)
		}
	}
	if cfg.StopTime != "" {
		if stop, err = notification.ParseTime(cfg.StopTime); err != nil {
			return fmt.Errorf("invalid stop time: %w", err)
		}
	}

	it, err := eng.Subscribe(cfg.Stream, start, stop)
	if err != nil {
		return err
	}
	defer it.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for {
		item, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		fmt.Printf("eventTime: %s\n%s\n", notification.FormatTime(item.Time), item.XML)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	StreamsPath string
	LogLevel    string
	LogFormat   string
	BusKind     string
	NATSURL     string
	MetricsPort int
	Stream      string
	StartTime   string
	StopTime    string
	EventTime   int64
	ShowVersion bool
	ShowHelp    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.StreamsPath, "path",
		getEnv("LIBNETCONF_STREAMS", ""),
		"Streams directory (env: LIBNETCONF_STREAMS; empty uses the compiled default)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("NCSTREAMS_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: NCSTREAMS_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("NCSTREAMS_LOG_FORMAT", "text"),
		"Log format: json, text (env: NCSTREAMS_LOG_FORMAT)")

	flag.StringVar(&cfg.BusKind, "bus",
		getEnv("NCSTREAMS_BUS", "dbus"),
		"Signal bus: dbus, nats, memory (env: NCSTREAMS_BUS)")

	flag.StringVar(&cfg.NATSURL, "nats-url",
		getEnv("NCSTREAMS_NATS_URL", "nats://127.0.0.1:4222"),
		"NATS server URL for -bus nats (env: NCSTREAMS_NATS_URL)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0,
		"Prometheus metrics port, 0 to disable")

	flag.StringVar(&cfg.Stream, "stream", "NETCONF", "Stream name for publish/subscribe")
	flag.StringVar(&cfg.StartTime, "start", "", "Subscription start time (RFC 3339; empty means no replay)")
	flag.StringVar(&cfg.StopTime, "stop", "", "Subscription stop time (RFC 3339; empty means none)")
	flag.Int64Var(&cfg.EventTime, "time", -1, "Event time as epoch seconds, -1 means now")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	validBuses := map[string]bool{"dbus": true, "nats": true, "memory": true}
	if !validBuses[cfg.BusKind] {
		return fmt.Errorf("invalid bus kind: %s", cfg.BusKind)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

// eventTime resolves the -time flag into a timestamp
func (cfg *CLIConfig) eventTime() time.Time {
	if cfg.EventTime < 0 {
		return time.Time{}
	}
	return time.Unix(cfg.EventTime, 0).UTC()
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - NETCONF notification stream tool

Usage:
  %s [flags] <command> [args]

Commands:
  status                      Print the stream-status document
  streams                     List the registered streams
  new <name> <desc> <replay>  Create a stream (replay: true/false)
  allow <stream> <event>...   Allow event names on a stream
  publish <xml>               Publish a generic event ('-' reads stdin)
  subscribe                   Follow a stream (see -stream, -start, -stop)

Flags:
`, appName, appName)
	flag.PrintDefaults()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

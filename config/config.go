// Package config carries the engine configuration: the on-disk location of
// the stream files and the tunables of the dispatch and live-delivery loops.
//
// The streams directory is resolved from the LIBNETCONF_STREAMS environment
// variable when set, falling back to the compiled default. The directory is
// created world-writable when absent so that any server process on the host
// can publish into the streams.
package config

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/955Gmy/libnetconf/errors"
)

// StreamsPathEnv is the environment variable overriding the streams directory
const StreamsPathEnv = "LIBNETCONF_STREAMS"

// DefaultStreamsPath is the compiled default streams directory
const DefaultStreamsPath = "/var/run/netconf_events"

// DirMode is the creation mode of the streams directory. World-writable so
// independent server processes can publish.
const DirMode = 0o777

// Config holds the engine configuration
type Config struct {
	// StreamsPath is the directory holding <name>.events and <name>.rules
	// files. Empty means resolve from the environment or the default.
	StreamsPath string

	// BusRecvTimeout bounds a single live-phase bus read so iterators stay
	// responsive to shutdown.
	BusRecvTimeout time.Duration

	// DispatchPoll is the sleep between dispatcher loop turns when no
	// notification is pending.
	DispatchPoll time.Duration
}

// Default returns the default engine configuration
func Default() Config {
	return Config{
		BusRecvTimeout: 10 * time.Millisecond,
		DispatchPoll:   100 * time.Microsecond,
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.BusRecvTimeout <= 0 {
		return errors.WrapInvalid(errors.New("bus receive timeout must be positive"),
			"Config", "Validate", "check BusRecvTimeout")
	}
	if c.DispatchPoll <= 0 {
		return errors.WrapInvalid(errors.New("dispatch poll interval must be positive"),
			"Config", "Validate", "check DispatchPoll")
	}
	return nil
}

// ResolveStreamsPath resolves the streams directory for this configuration:
// an explicit StreamsPath wins, then the LIBNETCONF_STREAMS environment
// variable, then the compiled default. The winning path is checked with
// CheckStreamsPath and returned.
func (c *Config) ResolveStreamsPath() (string, error) {
	if c.StreamsPath != "" {
		if err := CheckStreamsPath(c.StreamsPath); err != nil {
			return "", err
		}
		return c.StreamsPath, nil
	}

	if env := os.Getenv(StreamsPathEnv); env != "" {
		if err := CheckStreamsPath(env); err == nil {
			return env, nil
		}
	}

	if err := CheckStreamsPath(DefaultStreamsPath); err != nil {
		return "", err
	}
	return DefaultStreamsPath, nil
}

// CheckStreamsPath verifies that path is a directory accessible for
// read+write, creating it with DirMode when it does not exist. A path that
// exists but is not a directory is an error.
func CheckStreamsPath(path string) error {
	if err := unix.Access(path, unix.F_OK|unix.R_OK|unix.W_OK); err != nil {
		if !errors.Is(err, unix.ENOENT) {
			return errors.WrapFatal(err, "Config", "CheckStreamsPath", "access streams directory")
		}
		// Path does not exist, create it. The umask is cleared so the
		// directory really ends up world-writable.
		old := unix.Umask(0)
		mkErr := os.Mkdir(path, DirMode)
		unix.Umask(old)
		if mkErr != nil {
			return errors.WrapFatal(mkErr, "Config", "CheckStreamsPath", "create streams directory")
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.WrapFatal(err, "Config", "CheckStreamsPath", "stat streams directory")
	}
	if !info.IsDir() {
		return errors.WrapFatal(errors.New("streams path exists but is not a directory"),
			"Config", "CheckStreamsPath", "check streams directory")
	}
	return nil
}

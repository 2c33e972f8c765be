// Package engine binds the stream registry, the signal bus, and the
// metrics into one notification engine handle. The engine owns the publish
// path (build payload, append to every matching stream log, broadcast on
// the bus) and hands out subscription iterators that merge a stream's
// replay records with its live signals.
package engine

import (
	"log/slog"
	"sync/atomic"

	"github.com/955Gmy/libnetconf/bus"
	"github.com/955Gmy/libnetconf/config"
	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/metric"
	"github.com/955Gmy/libnetconf/registry"
)

// Engine is one notification engine instance. All operations are safe for
// concurrent use by multiple goroutines.
type Engine struct {
	cfg     config.Config
	reg     *registry.Registry
	bus     bus.Bus
	metrics *metric.Metrics
	logger  *slog.Logger
	closed  atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches engine metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New opens the stream registry for cfg and builds an engine on top of the
// given bus. The engine takes ownership of the bus connection.
func New(cfg config.Config, b bus.Bus, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		bus:    b,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	reg, err := registry.Open(cfg, registry.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.reg = reg
	e.updateStreamGauge()

	return e, nil
}

// Registry returns the engine's stream registry
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Bus returns the engine's signal bus
func (e *Engine) Bus() bus.Bus {
	return e.bus
}

// Config returns the engine configuration
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Status returns the stream-status XML document
func (e *Engine) Status() string {
	return e.reg.Status()
}

// NewStream creates a stream and refreshes the status document
func (e *Engine) NewStream(name, desc string, replay bool) error {
	if e.closed.Load() {
		return errors.WrapFatal(errors.ErrClosed, "Engine", "NewStream", "create stream")
	}
	if err := e.reg.New(name, desc, replay); err != nil {
		return err
	}
	e.updateStreamGauge()
	return nil
}

// AllowEvents appends event names to a stream's rule table
func (e *Engine) AllowEvents(stream string, events ...string) error {
	if e.closed.Load() {
		return errors.WrapFatal(errors.ErrClosed, "Engine", "AllowEvents", "append rules")
	}
	for _, ev := range events {
		if err := e.reg.Allow(stream, ev); err != nil {
			return err
		}
	}
	return nil
}

// Closed reports whether the engine has been shut down
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// Close tears the engine down: active iterators observe the closed
// registry on their next call and terminate.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	regErr := e.reg.Close()
	busErr := e.bus.Close()
	if regErr != nil {
		return regErr
	}
	return busErr
}

// updateStreamGauge refreshes the registered-streams gauge
func (e *Engine) updateStreamGauge() {
	if e.metrics != nil {
		e.metrics.StreamsRegistered.Set(float64(len(e.reg.List())))
	}
}

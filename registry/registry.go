// Package registry maintains the process-wide table of open notification
// streams. It scans the streams directory on initialization, lazily picks
// up stream files created by other processes, creates the base NETCONF
// stream when missing, and serializes every structural change under a
// single mutex. The serialized stream-status XML document is kept as a
// snapshot and refreshed on each change.
package registry

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/955Gmy/libnetconf/config"
	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/stream"
)

// DefaultStream is the base stream that always exists
const DefaultStream = "NETCONF"

// baseEvents are the RFC 6470 base notifications pre-allowed on the
// default stream.
var baseEvents = []string{
	"netconf-config-change",
	"netconf-capability-change",
	"netconf-session-start",
	"netconf-session-end",
	"netconf-confirmed-commit",
}

// Registry is the process-wide table of open streams
type Registry struct {
	mu      sync.Mutex
	dir     string
	streams map[string]*stream.Stream
	order   []string
	status  string
	closed  bool
	logger  *slog.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Open resolves the streams directory for cfg, loads every stream file in
// it, and guarantees the default NETCONF stream exists with the base
// events allowed.
func Open(cfg config.Config, opts ...Option) (*Registry, error) {
	dir, err := cfg.ResolveStreamsPath()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		dir:     dir,
		streams: make(map[string]*stream.Stream),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.initLocked(); err != nil {
		r.closeLocked()
		return nil, err
	}
	return r, nil
}

// initLocked scans the directory and sets up the default stream.
// Caller holds r.mu.
func (r *Registry) initLocked() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return errors.WrapFatal(err, "Registry", "Open", "read streams directory")
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		s, err := stream.ReadHeader(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			if !errors.IsBenign(err) {
				r.logger.Warn("skipping unreadable stream file", "file", entry.Name(), "error", err)
			}
			continue
		}
		if err := s.OpenRules(r.dir); err != nil {
			r.logger.Error("unable to map stream rules, dropping stream", "stream", s.Name, "error", err)
			s.Close()
			continue
		}
		r.insertLocked(s)
	}

	if _, ok := r.streams[DefaultStream]; !ok {
		if err := r.newLocked(DefaultStream, "NETCONF Base Notifications", true); err != nil {
			return err
		}
		for _, ev := range baseEvents {
			if err := r.streams[DefaultStream].Rules().Allow(ev); err != nil {
				return err
			}
		}
	}

	r.refreshStatusLocked()
	return nil
}

// insertLocked adds a stream to the table. Caller holds r.mu.
func (r *Registry) insertLocked(s *stream.Stream) {
	if _, ok := r.streams[s.Name]; ok {
		// Duplicate directory entry; keep the first.
		s.Close()
		return
	}
	r.streams[s.Name] = s
	r.order = append(r.order, s.Name)
}

// Dir returns the streams directory backing the registry
func (r *Registry) Dir() string {
	return r.dir
}

// Get returns the stream with the given name. On a miss the registry
// attempts to read <name>.events from the directory, so streams created by
// other processes become visible without re-initialization.
func (r *Registry) Get(name string) (*stream.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(name)
}

// getLocked implements Get. Caller holds r.mu.
func (r *Registry) getLocked(name string) (*stream.Stream, error) {
	if r.closed {
		return nil, errors.WrapFatal(errors.ErrClosed, "Registry", "Get", "look up stream")
	}
	if s, ok := r.streams[name]; ok {
		return s, nil
	}

	// Another process may have created the stream file meanwhile.
	s, err := stream.ReadHeader(stream.EventsPath(r.dir, name))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrUnknownStream, "Registry", "Get", "locate stream "+name)
	}
	if err := s.OpenRules(r.dir); err != nil {
		s.Close()
		return nil, err
	}
	r.insertLocked(s)
	r.refreshStatusLocked()
	return s, nil
}

// New creates a stream with the given name, description, and replay
// support. The stream file is created (or truncated when a stale file of
// the same name exists) and the rule table is mapped.
func (r *Registry) New(name, desc string, replay bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapFatal(errors.ErrClosed, "Registry", "New", "create stream")
	}
	if name == "" {
		return errors.WrapInvalid(errors.New("empty stream name"), "Registry", "New", "check name")
	}
	if _, ok := r.streams[name]; ok {
		return errors.WrapInvalid(errors.ErrStreamExists, "Registry", "New", "create stream "+name)
	}

	if err := r.newLocked(name, desc, replay); err != nil {
		return err
	}
	r.refreshStatusLocked()
	return nil
}

// newLocked builds and inserts a fresh stream. Caller holds r.mu.
func (r *Registry) newLocked(name, desc string, replay bool) error {
	s := &stream.Stream{
		Name:    name,
		Desc:    desc,
		Replay:  replay,
		Created: time.Now().UTC().Truncate(time.Second),
	}
	if err := stream.WriteHeader(r.dir, s); err != nil {
		return err
	}
	if err := s.OpenRules(r.dir); err != nil {
		s.Close()
		return err
	}
	r.insertLocked(s)
	return nil
}

// Allow appends an event name to a stream's rule table. Appends are
// serialized under the registry mutex; concurrent lock-free readers may or
// may not observe an in-flight append, which is acceptable for an
// allowlist used for best-effort routing.
func (r *Registry) Allow(streamName, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getLocked(streamName)
	if err != nil {
		return err
	}
	return s.Rules().Allow(event)
}

// IsAllowed reports whether event is allowed on the stream
func (r *Registry) IsAllowed(streamName, event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getLocked(streamName)
	if err != nil {
		return false
	}
	return s.Rules().Contains(event)
}

// List returns the names of the registered streams in registration order
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// IsAvailable reports whether a stream with the given name is registered
func (r *Registry) IsAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.streams[name]
	return ok
}

// ForEach calls fn for every registered stream under the registry mutex.
// Used by the publish path so the stream set cannot change between the
// rule check and the append.
func (r *Registry) ForEach(fn func(*stream.Stream)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for _, name := range r.order {
		fn(r.streams[name])
	}
}

// Closed reports whether the registry has been torn down. Iterators poll
// this between records so a close terminates them.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Reinit closes every open stream and rescans the directory. Iterators
// running against the old stream handles must restart.
func (r *Registry) Reinit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapFatal(errors.ErrClosed, "Registry", "Reinit", "reinitialize")
	}
	r.closeStreamsLocked()
	return r.initLocked()
}

// Close tears down the registry, closing every stream
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	return nil
}

// closeLocked implements Close. Caller holds r.mu.
func (r *Registry) closeLocked() {
	if r.closed {
		return
	}
	r.closeStreamsLocked()
	r.closed = true
}

// closeStreamsLocked closes and forgets every stream. Caller holds r.mu.
func (r *Registry) closeStreamsLocked() {
	for _, s := range r.streams {
		if err := s.Close(); err != nil {
			r.logger.Warn("closing stream failed", "stream", s.Name, "error", err)
		}
	}
	r.streams = make(map[string]*stream.Stream)
	r.order = nil
	r.status = ""
}

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/pkg/retry"
)

// signalBuffer is the channel depth for incoming D-Bus signals
const signalBuffer = 64

// DBusBus carries stream signals over the D-Bus system bus. Every event is
// one Event signal on the stream's object path with a (uint64 event time,
// string notification XML) body.
type DBusBus struct {
	mu      sync.Mutex
	conn    *dbus.Conn
	signals chan *dbus.Signal
	streams map[string]struct{}
	closed  bool
	logger  *slog.Logger
}

// DBusOption configures a DBusBus
type DBusOption func(*DBusBus)

// WithDBusLogger sets the adapter logger
func WithDBusLogger(logger *slog.Logger) DBusOption {
	return func(b *DBusBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// ConnectDBus connects to the D-Bus system bus, retrying briefly when the
// daemon is not answering yet.
func ConnectDBus(opts ...DBusOption) (*DBusBus, error) {
	conn, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*dbus.Conn, error) {
		return dbus.ConnectSystemBus()
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "DBusBus", "ConnectDBus", "connect to system bus")
	}
	return newDBusBus(conn, opts...), nil
}

// NewDBusBus wraps an already-established D-Bus connection. The caller
// keeps ownership of nothing: Close shuts the connection down.
func NewDBusBus(conn *dbus.Conn, opts ...DBusOption) *DBusBus {
	return newDBusBus(conn, opts...)
}

func newDBusBus(conn *dbus.Conn, opts ...DBusOption) *DBusBus {
	b := &DBusBus{
		conn:    conn,
		signals: make(chan *dbus.Signal, signalBuffer),
		streams: make(map[string]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	conn.Signal(b.signals)
	return b
}

// streamPath returns the signal object path of a stream
func streamPath(stream string) dbus.ObjectPath {
	return dbus.ObjectPath(PathPrefix + "/" + stream)
}

// matchOptions returns the match rule selecting one stream's Event signals
func matchOptions(stream string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface(Interface),
		dbus.WithMatchObjectPath(streamPath(stream)),
		dbus.WithMatchMember(Member),
	}
}

// Subscribe adds the match rule for the stream's Event signals
func (b *DBusBus) Subscribe(stream string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "DBusBus", "Subscribe", "register match")
	}
	if err := b.conn.AddMatchSignal(matchOptions(stream)...); err != nil {
		return errors.WrapTransient(err, "DBusBus", "Subscribe", "add match rule")
	}
	b.streams[stream] = struct{}{}
	return nil
}

// Unsubscribe removes the stream's match rule
func (b *DBusBus) Unsubscribe(stream string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "DBusBus", "Unsubscribe", "remove match")
	}
	delete(b.streams, stream)
	if err := b.conn.RemoveMatchSignal(matchOptions(stream)...); err != nil {
		return errors.WrapTransient(err, "DBusBus", "Unsubscribe", "remove match rule")
	}
	return nil
}

// Send emits one Event signal on the stream's object path
func (b *DBusBus) Send(stream string, eventTime time.Time, xml string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "DBusBus", "Send", "emit signal")
	}
	err := b.conn.Emit(streamPath(stream), Interface+"."+Member, uint64(eventTime.Unix()), xml)
	if err != nil {
		return errors.WrapTransient(err, "DBusBus", "Send", "emit signal")
	}
	return nil
}

// Recv returns the next Event signal for any subscribed stream, or nil
// when the timeout elapses. Malformed signals are skipped within the same
// timeout budget.
func (b *DBusBus) Recv(timeout time.Duration) (*Signal, error) {
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case sig, ok := <-b.signals:
			timer.Stop()
			if !ok {
				// godbus closes the channel when the connection dies.
				b.markClosed()
				return nil, errors.WrapFatal(errors.ErrBusClosed, "DBusBus", "Recv", "read signal")
			}
			if decoded := b.decode(sig); decoded != nil {
				return decoded, nil
			}
		case <-timer.C:
			return nil, nil
		}
	}
}

// decode validates an incoming D-Bus signal, returning nil for signals
// that are not subscribed stream events or whose body is malformed.
func (b *DBusBus) decode(sig *dbus.Signal) *Signal {
	if sig.Name != Interface+"."+Member {
		return nil
	}
	path := string(sig.Path)
	if len(path) <= len(PathPrefix)+1 || path[:len(PathPrefix)+1] != PathPrefix+"/" {
		return nil
	}
	stream := path[len(PathPrefix)+1:]

	b.mu.Lock()
	_, subscribed := b.streams[stream]
	b.mu.Unlock()
	if !subscribed {
		return nil
	}

	if len(sig.Body) != 2 {
		b.logger.Warn("unexpected Event signal body", "stream", stream, "args", len(sig.Body))
		return nil
	}
	t, ok := sig.Body[0].(uint64)
	if !ok {
		b.logger.Warn("unexpected Event signal, timestamp is missing", "stream", stream)
		return nil
	}
	xml, ok := sig.Body[1].(string)
	if !ok {
		b.logger.Warn("unexpected Event signal, content is missing", "stream", stream)
		return nil
	}

	return &Signal{Stream: stream, EventTime: time.Unix(int64(t), 0).UTC(), XML: xml}
}

// markClosed flags the connection as gone
func (b *DBusBus) markClosed() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Close removes the signal registration and shuts the connection down
func (b *DBusBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.conn.RemoveSignal(b.signals)
	if err := b.conn.Close(); err != nil {
		return errors.Wrap(err, "DBusBus", "Close", "close connection")
	}
	return nil
}

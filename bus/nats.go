package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/pkg/retry"
)

// SubjectPrefix is the NATS subject prefix of stream signals; the stream
// name is the final token.
const SubjectPrefix = Interface + "."

// natsSignal is the wire form of one event announcement on NATS
type natsSignal struct {
	EventTime uint64 `json:"event_time"`
	XML       string `json:"xml"`
}

// NATSBus carries stream signals over a host-local NATS server, for
// deployments that run a broker instead of the D-Bus daemon. The signal
// body mirrors the D-Bus Event arguments.
type NATSBus struct {
	mu      sync.Mutex
	conn    *nats.Conn
	subs    map[string]*nats.Subscription
	pending chan *nats.Msg
	closed  bool
	logger  *slog.Logger
}

// NATSOption configures a NATSBus
type NATSOption func(*NATSBus)

// WithNATSLogger sets the adapter logger
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(b *NATSBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// ConnectNATS connects to the NATS server at url, retrying briefly when
// the broker is not answering yet.
func ConnectNATS(url string, opts ...NATSOption) (*NATSBus, error) {
	conn, err := retry.DoWithResult(context.Background(), retry.DefaultConfig(), func() (*nats.Conn, error) {
		return nats.Connect(url,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSBus", "ConnectNATS", "connect to server")
	}
	return NewNATSBus(conn, opts...), nil
}

// NewNATSBus wraps an established NATS connection. Close shuts the
// connection down.
func NewNATSBus(conn *nats.Conn, opts ...NATSOption) *NATSBus {
	b := &NATSBus{
		conn:    conn,
		subs:    make(map[string]*nats.Subscription),
		pending: make(chan *nats.Msg, signalBuffer),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe starts delivering the stream's signals into the pending queue
func (b *NATSBus) Subscribe(stream string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "NATSBus", "Subscribe", "subscribe subject")
	}
	if _, ok := b.subs[stream]; ok {
		return nil
	}
	sub, err := b.conn.ChanSubscribe(SubjectPrefix+stream, b.pending)
	if err != nil {
		return errors.WrapTransient(err, "NATSBus", "Subscribe", "subscribe subject")
	}
	b.subs[stream] = sub
	return nil
}

// Unsubscribe stops delivery for the stream
func (b *NATSBus) Unsubscribe(stream string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "NATSBus", "Unsubscribe", "unsubscribe subject")
	}
	sub, ok := b.subs[stream]
	if !ok {
		return nil
	}
	delete(b.subs, stream)
	if err := sub.Unsubscribe(); err != nil {
		return errors.WrapTransient(err, "NATSBus", "Unsubscribe", "unsubscribe subject")
	}
	return nil
}

// Send publishes one signal on the stream's subject
func (b *NATSBus) Send(stream string, eventTime time.Time, xml string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.conn.IsClosed() {
		return errors.WrapFatal(errors.ErrBusClosed, "NATSBus", "Send", "publish signal")
	}
	payload, err := json.Marshal(natsSignal{EventTime: uint64(eventTime.Unix()), XML: xml})
	if err != nil {
		return errors.WrapInvalid(err, "NATSBus", "Send", "encode signal")
	}
	if err := b.conn.Publish(SubjectPrefix+stream, payload); err != nil {
		return errors.WrapTransient(err, "NATSBus", "Send", "publish signal")
	}
	return nil
}

// Recv returns the next pending signal, or nil when the timeout elapses.
// Messages that do not decode are skipped within the same timeout budget.
func (b *NATSBus) Recv(timeout time.Duration) (*Signal, error) {
	deadline := time.Now().Add(timeout)

	for {
		b.mu.Lock()
		dead := b.closed || b.conn.IsClosed()
		b.mu.Unlock()
		if dead {
			return nil, errors.WrapFatal(errors.ErrBusClosed, "NATSBus", "Recv", "read signal")
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}

		timer := time.NewTimer(remaining)
		select {
		case msg := <-b.pending:
			timer.Stop()
			if decoded := b.decode(msg); decoded != nil {
				return decoded, nil
			}
		case <-timer.C:
			return nil, nil
		}
	}
}

// decode turns a NATS message back into a Signal, returning nil for
// malformed payloads.
func (b *NATSBus) decode(msg *nats.Msg) *Signal {
	stream := strings.TrimPrefix(msg.Subject, SubjectPrefix)
	if stream == msg.Subject || stream == "" {
		return nil
	}
	var sig natsSignal
	if err := json.Unmarshal(msg.Data, &sig); err != nil {
		b.logger.Warn("unexpected Event message body", "stream", stream, "error", err)
		return nil
	}
	return &Signal{
		Stream:    stream,
		EventTime: time.Unix(int64(sig.EventTime), 0).UTC(),
		XML:       sig.XML,
	}
}

// Close drains the subscriptions and shuts the connection down
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for stream, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("unsubscribe failed", "stream", stream, "error", err)
		}
	}
	b.subs = make(map[string]*nats.Subscription)
	b.conn.Close()
	return nil
}

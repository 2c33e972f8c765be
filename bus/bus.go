// Package bus provides the host-local publish/subscribe transport that
// fans live notifications out to subscribers in other processes. The
// canonical adapter rides the D-Bus system bus, emitting one Event signal
// per stream; a NATS adapter covers hosts that run a local broker instead,
// and an in-process broker backs tests and single-process deployments.
//
// All adapters share one contract: Subscribe registers interest in a
// stream's signals, Send is non-blocking best-effort, Recv returns the
// next pending signal for any subscribed stream or nil when the timeout
// elapses, and a closed connection is terminal.
package bus

import (
	"time"
)

// D-Bus naming of the stream signals. The NATS adapter mirrors the
// interface name as its subject prefix.
const (
	// Interface is the D-Bus interface of stream signals
	Interface = "libnetconf.notifications.stream"
	// PathPrefix is the D-Bus object path prefix; the stream name is the
	// final path element
	PathPrefix = "/libnetconf/notifications/stream"
	// Member is the D-Bus signal member name
	Member = "Event"
)

// Signal is one live event announcement: the stream it belongs to, the
// event time and the full notification XML.
type Signal struct {
	Stream    string
	EventTime time.Time
	XML       string
}

// Bus is the host-local pub/sub transport. Implementations serialize
// concurrent callers on the same connection.
type Bus interface {
	// Subscribe registers interest in signals for the stream
	Subscribe(stream string) error
	// Unsubscribe removes interest in signals for the stream
	Unsubscribe(stream string) error
	// Send announces an event on the stream, non-blocking best-effort
	Send(stream string, eventTime time.Time, xml string) error
	// Recv returns the next pending signal for any subscribed stream,
	// or nil when the timeout elapses. A terminal connection error is
	// reported as ErrBusClosed.
	Recv(timeout time.Duration) (*Signal, error)
	// Close tears the connection down
	Close() error
}

package bus

import (
	"sync"
	"time"

	"github.com/955Gmy/libnetconf/errors"
)

// clientBuffer is the per-client pending signal capacity of the in-process
// broker. Send drops signals for clients whose buffer is full, matching
// the best-effort contract.
const clientBuffer = 256

// MemoryBroker is an in-process signal exchange. Every client created from
// the broker sees the signals sent by any client, itself included, for the
// streams it subscribed to.
type MemoryBroker struct {
	mu      sync.Mutex
	clients map[*MemoryBus]struct{}
	closed  bool
}

// NewMemoryBroker creates an empty in-process broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{clients: make(map[*MemoryBus]struct{})}
}

// Client creates a new bus connection on the broker
func (b *MemoryBroker) Client() *MemoryBus {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := &MemoryBus{
		broker:  b,
		streams: make(map[string]struct{}),
		pending: make(chan Signal, clientBuffer),
	}
	if b.closed {
		c.closed = true
	} else {
		b.clients[c] = struct{}{}
	}
	return c
}

// Close tears down the broker and every client connection
func (b *MemoryBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}
	b.clients = make(map[*MemoryBus]struct{})
	b.closed = true
}

// broadcast fans a signal out to every subscribed client
func (b *MemoryBroker) broadcast(sig Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.clients {
		c.offer(sig)
	}
}

// drop detaches a client from the broker
func (b *MemoryBroker) drop(c *MemoryBus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
}

// MemoryBus is one client connection on a MemoryBroker
type MemoryBus struct {
	broker  *MemoryBroker
	pending chan Signal

	mu      sync.Mutex
	streams map[string]struct{}
	closed  bool
}

// Subscribe registers interest in a stream's signals
func (m *MemoryBus) Subscribe(stream string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "MemoryBus", "Subscribe", "register match")
	}
	m.streams[stream] = struct{}{}
	return nil
}

// Unsubscribe removes interest in a stream's signals
func (m *MemoryBus) Unsubscribe(stream string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.WrapFatal(errors.ErrBusClosed, "MemoryBus", "Unsubscribe", "remove match")
	}
	delete(m.streams, stream)
	return nil
}

// offer enqueues a signal when the client is subscribed to its stream,
// dropping it when the buffer is full.
func (m *MemoryBus) offer(sig Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, ok := m.streams[sig.Stream]; !ok {
		return
	}
	select {
	case m.pending <- sig:
	default:
	}
}

// Send announces an event to every subscribed client of the broker
func (m *MemoryBus) Send(stream string, eventTime time.Time, xml string) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return errors.WrapFatal(errors.ErrBusClosed, "MemoryBus", "Send", "emit signal")
	}
	m.broker.broadcast(Signal{Stream: stream, EventTime: eventTime, XML: xml})
	return nil
}

// Recv returns the next pending signal, or nil when the timeout elapses
func (m *MemoryBus) Recv(timeout time.Duration) (*Signal, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()

	if closed && len(m.pending) == 0 {
		return nil, errors.WrapFatal(errors.ErrBusClosed, "MemoryBus", "Recv", "read signal")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sig := <-m.pending:
		return &sig, nil
	case <-timer.C:
		return nil, nil
	}
}

// Close detaches the client from the broker
func (m *MemoryBus) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.broker.drop(m)
	return nil
}

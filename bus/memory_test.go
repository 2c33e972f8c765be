package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/955Gmy/libnetconf/errors"
)

func TestMemoryBus_DeliversToSubscribers(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	pub := broker.Client()
	sub := broker.Client()
	require.NoError(t, sub.Subscribe("NETCONF"))

	at := time.Unix(1700000000, 0).UTC()
	require.NoError(t, pub.Send("NETCONF", at, "<n/>"))

	sig, err := sub.Recv(100 * time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "NETCONF", sig.Stream)
	assert.True(t, sig.EventTime.Equal(at))
	assert.Equal(t, "<n/>", sig.XML)
}

func TestMemoryBus_IgnoresOtherStreams(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	pub := broker.Client()
	sub := broker.Client()
	require.NoError(t, sub.Subscribe("NETCONF"))

	require.NoError(t, pub.Send("other", time.Now(), "<n/>"))

	sig, err := sub.Recv(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMemoryBus_SenderReceivesOwnSignals(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	c := broker.Client()
	require.NoError(t, c.Subscribe("s"))
	require.NoError(t, c.Send("s", time.Now(), "<n/>"))

	sig, err := c.Recv(100 * time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, sig)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	pub := broker.Client()
	sub := broker.Client()
	require.NoError(t, sub.Subscribe("s"))
	require.NoError(t, sub.Unsubscribe("s"))

	require.NoError(t, pub.Send("s", time.Now(), "<n/>"))

	sig, err := sub.Recv(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestMemoryBus_RecvTimeout(t *testing.T) {
	broker := NewMemoryBroker()
	defer broker.Close()

	sub := broker.Client()
	require.NoError(t, sub.Subscribe("s"))

	start := time.Now()
	sig, err := sub.Recv(30 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestMemoryBus_ClosedIsTerminal(t *testing.T) {
	broker := NewMemoryBroker()
	sub := broker.Client()
	require.NoError(t, sub.Subscribe("s"))
	broker.Close()

	_, err := sub.Recv(10 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBusClosed))

	err = sub.Send("s", time.Now(), "<n/>")
	assert.Error(t, err)
}

func TestDBusDecode_FiltersAndValidates(t *testing.T) {
	// Exercise the D-Bus signal validation without a bus daemon.
	b := &DBusBus{
		streams: map[string]struct{}{"NETCONF": {}},
		logger:  discardLogger(),
	}

	tests := []struct {
		name string
		sig  signalInput
		want bool
	}{
		{"valid", signalInput{path: PathPrefix + "/NETCONF", member: Interface + "." + Member,
			body: []any{uint64(1700000000), "<n/>"}}, true},
		{"wrong member", signalInput{path: PathPrefix + "/NETCONF", member: "other.Iface.Event",
			body: []any{uint64(1), "<n/>"}}, false},
		{"unsubscribed stream", signalInput{path: PathPrefix + "/other", member: Interface + "." + Member,
			body: []any{uint64(1), "<n/>"}}, false},
		{"missing timestamp", signalInput{path: PathPrefix + "/NETCONF", member: Interface + "." + Member,
			body: []any{"not-a-time", "<n/>"}}, false},
		{"missing content", signalInput{path: PathPrefix + "/NETCONF", member: Interface + "." + Member,
			body: []any{uint64(1)}}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := b.decode(test.sig.toDBus())
			if test.want {
				require.NotNil(t, got)
				assert.Equal(t, "NETCONF", got.Stream)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

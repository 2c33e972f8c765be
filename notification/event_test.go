package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneric_Content(t *testing.T) {
	content, err := Generic{XML: "<event>something happened</event>"}.Content()
	require.NoError(t, err)
	assert.Equal(t, "<event>something happened</event>", content)

	name, err := EventName(content)
	require.NoError(t, err)
	assert.Equal(t, "event", name)
}

func TestGeneric_RejectsMalformed(t *testing.T) {
	_, err := Generic{XML: "<unclosed"}.Content()
	assert.Error(t, err)

	_, err = Generic{XML: "   "}.Content()
	assert.Error(t, err)
}

func TestConfigChange_Content(t *testing.T) {
	t.Run("by server", func(t *testing.T) {
		content, err := ConfigChange{Datastore: DatastoreRunning}.Content()
		require.NoError(t, err)
		assert.Equal(t,
			"<netconf-config-change><datastore>running</datastore><server/></netconf-config-change>",
			content)
	})

	t.Run("by user", func(t *testing.T) {
		content, err := ConfigChange{
			Datastore: DatastoreStartup,
			Session:   &SessionInfo{Username: "alice", SessionID: "42", SourceHost: "10.0.0.1"},
		}.Content()
		require.NoError(t, err)
		assert.Equal(t,
			"<netconf-config-change><datastore>startup</datastore>"+
				"<username>alice</username><session-id>42</session-id><source-host>10.0.0.1</source-host>"+
				"</netconf-config-change>",
			content)
	})

	t.Run("invalid datastore", func(t *testing.T) {
		_, err := ConfigChange{Datastore: "candidate"}.Content()
		assert.Error(t, err)
	})
}

func TestCapabilityChange_Content(t *testing.T) {
	old := []string{
		"urn:ietf:params:netconf:base:1.0",
		"urn:ietf:params:netconf:capability:startup:1.0",
		"urn:example:gone:1.0",
	}
	now := []string{
		"urn:ietf:params:netconf:base:1.0",
		"urn:ietf:params:netconf:capability:startup:1.0?option=1",
		"urn:example:fresh:1.0",
	}

	content, err := CapabilityChange{Old: old, New: now}.Content()
	require.NoError(t, err)
	assert.Equal(t,
		"<netconf-capability-change><server/>"+
			"<modified-capability>urn:ietf:params:netconf:capability:startup:1.0?option=1</modified-capability>"+
			"<added-capability>urn:example:fresh:1.0</added-capability>"+
			"<deleted-capability>urn:example:gone:1.0</deleted-capability>"+
			"</netconf-capability-change>",
		content)
}

func TestCapabilityChange_NoChanges(t *testing.T) {
	caps := []string{"urn:ietf:params:netconf:base:1.0"}
	content, err := CapabilityChange{Old: caps, New: caps}.Content()
	require.NoError(t, err)
	assert.Equal(t, "<netconf-capability-change><server/></netconf-capability-change>", content)
}

func TestSessionStart_Content(t *testing.T) {
	content, err := SessionStart{
		Session: SessionInfo{Username: "alice", SessionID: "42", SourceHost: "10.0.0.1"},
	}.Content()
	require.NoError(t, err)
	assert.Equal(t,
		"<netconf-session-start><username>alice</username>"+
			"<session-id>42</session-id><source-host>10.0.0.1</source-host></netconf-session-start>",
		content)

	name, err := EventName(content)
	require.NoError(t, err)
	assert.Equal(t, "netconf-session-start", name)
}

func TestSessionEnd_Content(t *testing.T) {
	t.Run("killed with killer", func(t *testing.T) {
		content, err := SessionEnd{
			Session:  SessionInfo{Username: "bob", SessionID: "7", SourceHost: "::1"},
			Reason:   TermKilled,
			KilledBy: "3",
		}.Content()
		require.NoError(t, err)
		assert.Equal(t,
			"<netconf-session-end><username>bob</username><session-id>7</session-id>"+
				"<source-host>::1</source-host><killed-by>3</killed-by>"+
				"<termination-reason>killed</termination-reason></netconf-session-end>",
			content)
	})

	t.Run("closed omits killed-by", func(t *testing.T) {
		content, err := SessionEnd{
			Session: SessionInfo{Username: "bob", SessionID: "7", SourceHost: "::1"},
			Reason:  TermClosed,
		}.Content()
		require.NoError(t, err)
		assert.NotContains(t, content, "killed-by")
		assert.Contains(t, content, "<termination-reason>closed</termination-reason>")
	})

	t.Run("empty reason defaults to other", func(t *testing.T) {
		content, err := SessionEnd{Session: SessionInfo{SessionID: "1"}}.Content()
		require.NoError(t, err)
		assert.Contains(t, content, "<termination-reason>other</termination-reason>")
	})
}

func TestEnvelope(t *testing.T) {
	at := time.Unix(1700000000, 0)
	env := Envelope(at, "<x/>")
	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<notification xmlns="urn:ietf:params:xml:ns:netconf:notification:1.0">`+
			`<eventTime>2023-11-14T22:13:20Z</eventTime><x/></notification>`,
		env)
}

func TestSentinels(t *testing.T) {
	at := time.Unix(1700000000, 0)

	rc := ReplayComplete(at)
	assert.Contains(t, rc, "<replayComplete/>")
	assert.NotContains(t, rc, "<?xml")

	nc := NtfComplete(at)
	assert.Contains(t, nc, "<notificationComplete/>")
}

func TestFormatParseTimeRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	got, err := ParseTime(FormatTime(at))
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

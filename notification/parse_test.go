package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsNonNotification(t *testing.T) {
	_, err := Parse("<rpc/>")
	assert.Error(t, err)

	_, err = Parse("not xml at all <")
	assert.Error(t, err)
}

func TestKindClassification(t *testing.T) {
	at := time.Unix(1700000000, 0)
	tests := []struct {
		name string
		xml  string
		want Kind
	}{
		{"config change", Envelope(at, "<netconf-config-change><datastore>running</datastore><server/></netconf-config-change>"), KindConfigChange},
		{"capability change", Envelope(at, "<netconf-capability-change><server/></netconf-capability-change>"), KindCapabilityChange},
		{"session start", Envelope(at, "<netconf-session-start><username>a</username><session-id>1</session-id><source-host>h</source-host></netconf-session-start>"), KindSessionStart},
		{"session end", Envelope(at, "<netconf-session-end><username>a</username><session-id>1</session-id><source-host>h</source-host><termination-reason>closed</termination-reason></netconf-session-end>"), KindSessionEnd},
		{"confirmed commit", Envelope(at, "<netconf-confirmed-commit><confirm-event>start</confirm-event></netconf-confirmed-commit>"), KindConfirmedCommit},
		{"confirmed commit misspelling", Envelope(at, "<netconf-configrmed-commit/>"), KindConfirmedCommit},
		{"replay complete", ReplayComplete(at), KindReplayComplete},
		{"notification complete", NtfComplete(at), KindNtfComplete},
		{"generic", Envelope(at, "<something-else/>"), KindGeneric},
		{"missing body", Envelope(at, ""), KindError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n, err := Parse(test.xml)
			require.NoError(t, err)
			assert.Equal(t, test.want, n.Kind())
		})
	}
}

func TestEventTimeExtraction(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	n, err := Parse(Envelope(at, "<x/>"))
	require.NoError(t, err)

	got, err := n.EventTime()
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestEventTime_Missing(t *testing.T) {
	n, err := Parse("<notification><x/></notification>")
	require.NoError(t, err)
	_, err = n.EventTime()
	assert.Error(t, err)
}

func TestContent_StripsEnvelopeAndEventTime(t *testing.T) {
	at := time.Unix(1700000000, 0)
	n, err := Parse(Envelope(at, "<netconf-session-start><username>alice</username><session-id>42</session-id><source-host>10.0.0.1</source-host></netconf-session-start>"))
	require.NoError(t, err)

	content, err := n.Content()
	require.NoError(t, err)
	assert.Equal(t,
		"<netconf-session-start><username>alice</username>"+
			"<session-id>42</session-id><source-host>10.0.0.1</source-host></netconf-session-start>",
		content)
	assert.NotContains(t, content, "eventTime")
}

func TestContent_EmptyBodyIsError(t *testing.T) {
	at := time.Unix(1700000000, 0)
	n, err := Parse(Envelope(at, ""))
	require.NoError(t, err)
	_, err = n.Content()
	assert.Error(t, err)
}

func TestRemoveContentElement(t *testing.T) {
	at := time.Unix(1700000000, 0)
	n, err := Parse(Envelope(at, "<a/><b/>"))
	require.NoError(t, err)

	els := n.ContentElements()
	require.Len(t, els, 2)

	n.RemoveContentElement(els[0])
	rest := n.ContentElements()
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].Tag)

	out, err := n.String()
	require.NoError(t, err)
	assert.NotContains(t, out, "<a/>")
	assert.Contains(t, out, "<b/>")
	assert.Contains(t, out, "eventTime")
}

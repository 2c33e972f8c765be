package notification

import (
	"fmt"
	"time"
)

// XML namespaces of the notification machinery
const (
	// NamespaceNotif is the RFC 5277 notification namespace
	NamespaceNotif = "urn:ietf:params:xml:ns:netconf:notification:1.0"
	// NamespaceStreams is the netmod notification namespace of the
	// stream status document
	NamespaceStreams = "urn:ietf:params:xml:ns:netmod:notification"
)

// FormatTime renders t as the RFC 3339 timestamp used in eventTime elements
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTime parses an RFC 3339 eventTime value
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some peers emit fractional seconds.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err
}

// Envelope wraps a content body in the stored-record notification form:
// XML prolog, <notification> with the RFC 5277 namespace, and the
// eventTime element ahead of the body.
func Envelope(eventTime time.Time, content string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>`+
		`<notification xmlns=%q><eventTime>%s</eventTime>%s</notification>`,
		NamespaceNotif, FormatTime(eventTime), content)
}

// Sentinel builds one of the engine-synthesized notifications: the
// <replayComplete/> marker separating a subscription's replay and live
// phases, or the <notificationComplete/> marker terminating it.
func Sentinel(eventTime time.Time, name string) string {
	return fmt.Sprintf(`<notification xmlns=%q><eventTime>%s</eventTime><%s/></notification>`,
		NamespaceNotif, FormatTime(eventTime), name)
}

// ReplayComplete builds the replay-end marker notification
func ReplayComplete(eventTime time.Time) string {
	return Sentinel(eventTime, "replayComplete")
}

// NtfComplete builds the subscription-end marker notification
func NtfComplete(eventTime time.Time) string {
	return Sentinel(eventTime, "notificationComplete")
}

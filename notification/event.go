// Package notification builds and decodes RFC 5277 notification payloads:
// the tagged union of publishable event kinds, the <notification> envelope,
// the RFC 6470 base event bodies, and the classification of received
// notifications back into kinds.
package notification

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/955Gmy/libnetconf/errors"
)

// Kind enumerates the recognized notification kinds
type Kind int

// Notification kinds, including the two engine sentinels
const (
	KindError Kind = iota
	KindGeneric
	KindConfigChange
	KindCapabilityChange
	KindSessionStart
	KindSessionEnd
	KindConfirmedCommit
	KindReplayComplete
	KindNtfComplete
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindConfigChange:
		return "netconf-config-change"
	case KindCapabilityChange:
		return "netconf-capability-change"
	case KindSessionStart:
		return "netconf-session-start"
	case KindSessionEnd:
		return "netconf-session-end"
	case KindConfirmedCommit:
		return "netconf-confirmed-commit"
	case KindReplayComplete:
		return "replayComplete"
	case KindNtfComplete:
		return "notificationComplete"
	default:
		return "error"
	}
}

// Datastore names a configuration datastore in a config-change event
type Datastore string

// Datastores that can appear in netconf-config-change
const (
	DatastoreStartup Datastore = "startup"
	DatastoreRunning Datastore = "running"
)

// TerminationReason is the RFC 6470 session termination reason
type TerminationReason string

// Session termination reasons
const (
	TermClosed   TerminationReason = "closed"
	TermKilled   TerminationReason = "killed"
	TermDropped  TerminationReason = "dropped"
	TermTimeout  TerminationReason = "timeout"
	TermBadHello TerminationReason = "bad-hello"
	TermOther    TerminationReason = "other"
)

// SessionInfo carries the per-session metadata embedded in base events
type SessionInfo struct {
	Username   string
	SessionID  string
	SourceHost string
}

// Event is the tagged union of publishable event payloads. Content renders
// the inner XML body; the local name of its root element is the event name
// used against the stream rule tables.
type Event interface {
	Content() (string, error)
}

// Generic is a caller-supplied XML event body
type Generic struct {
	XML string
}

// Content returns the caller-supplied body after checking it parses
func (e Generic) Content() (string, error) {
	if strings.TrimSpace(e.XML) == "" {
		return "", errors.WrapInvalid(errors.New("empty content"), "Generic", "Content", "check body")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(e.XML); err != nil || doc.Root() == nil {
		return "", errors.WrapInvalid(errors.ErrParse, "Generic", "Content", "parse body")
	}
	return e.XML, nil
}

// ConfigChange is the netconf-config-change base event. A nil Session
// means the change was made by the server itself.
type ConfigChange struct {
	Datastore Datastore
	Session   *SessionInfo
}

// Content renders the netconf-config-change body
func (e ConfigChange) Content() (string, error) {
	switch e.Datastore {
	case DatastoreStartup, DatastoreRunning:
	default:
		return "", errors.WrapInvalid(errors.New("invalid datastore"), "ConfigChange", "Content", "check datastore")
	}

	root := etree.NewElement("netconf-config-change")
	root.CreateElement("datastore").SetText(string(e.Datastore))
	appendChangedBy(root, e.Session)
	return serialize(root)
}

// CapabilityChange is the netconf-capability-change base event, built by
// diffing the old and new capability lists. A nil Session means the change
// was made by the server itself.
type CapabilityChange struct {
	Old     []string
	New     []string
	Session *SessionInfo
}

// Content renders the netconf-capability-change body. The capability URI
// up to '?' is its identity: identities present only in New are added,
// only in Old are deleted, and in both with differing full strings are
// modified.
func (e CapabilityChange) Content() (string, error) {
	root := etree.NewElement("netconf-capability-change")
	appendChangedBy(root, e.Session)

	oldByID := make(map[string]string, len(e.Old))
	for _, cap := range e.Old {
		oldByID[capabilityIdentity(cap)] = cap
	}
	newByID := make(map[string]string, len(e.New))
	for _, cap := range e.New {
		newByID[capabilityIdentity(cap)] = cap
	}

	for _, cap := range e.New {
		old, ok := oldByID[capabilityIdentity(cap)]
		switch {
		case !ok:
			root.CreateElement("added-capability").SetText(cap)
		case old != cap:
			root.CreateElement("modified-capability").SetText(cap)
		}
	}
	for _, cap := range e.Old {
		if _, ok := newByID[capabilityIdentity(cap)]; !ok {
			root.CreateElement("deleted-capability").SetText(cap)
		}
	}

	return serialize(root)
}

// capabilityIdentity strips the parameter part of a capability URI
func capabilityIdentity(cap string) string {
	if i := strings.IndexByte(cap, '?'); i >= 0 {
		return cap[:i]
	}
	return cap
}

// SessionStart is the netconf-session-start base event
type SessionStart struct {
	Session SessionInfo
}

// Content renders the netconf-session-start body
func (e SessionStart) Content() (string, error) {
	root := etree.NewElement("netconf-session-start")
	appendSession(root, e.Session)
	return serialize(root)
}

// SessionEnd is the netconf-session-end base event. KilledBy is the
// session id of the killer and is only rendered when the reason is
// TermKilled and the killer is known.
type SessionEnd struct {
	Session  SessionInfo
	Reason   TerminationReason
	KilledBy string
}

// Content renders the netconf-session-end body
func (e SessionEnd) Content() (string, error) {
	root := etree.NewElement("netconf-session-end")
	appendSession(root, e.Session)
	if e.Reason == TermKilled && e.KilledBy != "" {
		root.CreateElement("killed-by").SetText(e.KilledBy)
	}
	reason := e.Reason
	if reason == "" {
		reason = TermOther
	}
	root.CreateElement("termination-reason").SetText(string(reason))
	return serialize(root)
}

// appendSession adds the session metadata triple to root
func appendSession(root *etree.Element, s SessionInfo) {
	root.CreateElement("username").SetText(s.Username)
	root.CreateElement("session-id").SetText(s.SessionID)
	root.CreateElement("source-host").SetText(s.SourceHost)
}

// appendChangedBy adds <server/> or the user's session triple to root
func appendChangedBy(root *etree.Element, s *SessionInfo) {
	if s == nil {
		root.CreateElement("server")
		return
	}
	appendSession(root, *s)
}

func serialize(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el)
	out, err := doc.WriteToString()
	if err != nil {
		return "", errors.Wrap(err, "notification", "serialize", "render element")
	}
	return out, nil
}

// EventName extracts the event name from a content body: the local name of
// its root element. It is the key checked against stream rule tables.
func EventName(content string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(content); err != nil {
		return "", errors.WrapInvalid(errors.ErrParse, "notification", "EventName", "parse content")
	}
	root := doc.Root()
	if root == nil {
		return "", errors.WrapInvalid(errors.ErrParse, "notification", "EventName", "locate root element")
	}
	return root.Tag, nil
}

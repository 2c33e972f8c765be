package notification

import (
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/955Gmy/libnetconf/errors"
)

// Notification is a decoded <notification> document
type Notification struct {
	doc *etree.Document
}

// Parse decodes a notification from its XML text. The root element must be
// <notification>; anything else is a parse error.
func Parse(xml string) (*Notification, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParse, "Notification", "Parse", "read document")
	}
	root := doc.Root()
	if root == nil || root.Tag != "notification" {
		return nil, errors.WrapInvalid(errors.ErrParse, "Notification", "Parse", "locate notification element")
	}
	return &Notification{doc: doc}, nil
}

// eventElement returns the first child element that is not eventTime
func (n *Notification) eventElement() *etree.Element {
	for _, child := range n.doc.Root().ChildElements() {
		if child.Tag == "eventTime" {
			continue
		}
		return child
	}
	return nil
}

// Kind classifies the notification by the local name of its first
// non-eventTime child. The misspelling netconf-configrmed-commit written
// by old publishers is accepted alongside the RFC 6470 name.
func (n *Notification) Kind() Kind {
	el := n.eventElement()
	if el == nil {
		return KindError
	}
	switch el.Tag {
	case "replayComplete":
		return KindReplayComplete
	case "notificationComplete":
		return KindNtfComplete
	case "netconf-config-change":
		return KindConfigChange
	case "netconf-capability-change":
		return KindCapabilityChange
	case "netconf-session-start":
		return KindSessionStart
	case "netconf-session-end":
		return KindSessionEnd
	case "netconf-confirmed-commit", "netconf-configrmed-commit":
		return KindConfirmedCommit
	default:
		return KindGeneric
	}
}

// EventTime extracts and parses the eventTime element
func (n *Notification) EventTime() (time.Time, error) {
	el := n.doc.Root().SelectElement("eventTime")
	if el == nil {
		return time.Time{}, errors.WrapInvalid(errors.ErrParse, "Notification", "EventTime", "locate eventTime element")
	}
	t, err := ParseTime(strings.TrimSpace(el.Text()))
	if err != nil {
		return time.Time{}, errors.WrapInvalid(errors.ErrParse, "Notification", "EventTime", "parse eventTime value")
	}
	return t, nil
}

// Content renders the notification body: every child element except
// eventTime, serialized in document order without the envelope.
func (n *Notification) Content() (string, error) {
	var sb strings.Builder
	for _, child := range n.ContentElements() {
		doc := etree.NewDocument()
		doc.SetRoot(child.Copy())
		text, err := doc.WriteToString()
		if err != nil {
			return "", errors.Wrap(err, "Notification", "Content", "render child element")
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", errors.WrapInvalid(errors.ErrParse, "Notification", "Content", "locate event description")
	}
	return sb.String(), nil
}

// ContentElements returns the non-eventTime child elements in document order
func (n *Notification) ContentElements() []*etree.Element {
	var els []*etree.Element
	for _, child := range n.doc.Root().ChildElements() {
		if child.Tag == "eventTime" {
			continue
		}
		els = append(els, child)
	}
	return els
}

// RemoveContentElement detaches one content child from the notification,
// leaving the envelope and the remaining children in place. Used when a
// subscription filter discards part of a record.
func (n *Notification) RemoveContentElement(el *etree.Element) {
	n.doc.Root().RemoveChild(el)
}

// String renders the notification document back to XML text
func (n *Notification) String() (string, error) {
	out, err := n.doc.WriteToString()
	if err != nil {
		return "", errors.Wrap(err, "Notification", "String", "render document")
	}
	return out, nil
}

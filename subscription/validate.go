// Package subscription implements the NETCONF side of the notification
// engine: parsing and validating <create-subscription> requests, and the
// per-session dispatchers that drive a subscription iterator towards a
// session (send) or consume notifications arriving on one (receive).
package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/notification"
	"github.com/955Gmy/libnetconf/registry"
)

// Request is a decoded <create-subscription> request
type Request struct {
	Stream string
	Start  time.Time // zero when no startTime was given
	Stop   time.Time // zero when no stopTime was given
	Filter *FilterSpec
}

// FilterSpec is the raw filter carried by a subscription request. The
// engine treats filter evaluation as an opaque predicate; the spec only
// records what the request contained.
type FilterSpec struct {
	Type    string // "subtree" or "xpath"
	Select  string // xpath expression for type "xpath"
	Element *etree.Element
}

// ParseRequest decodes a <create-subscription> RPC. A document whose
// operation is not create-subscription is rejected as operation-failed;
// a filter that is present but malformed is rejected as bad-element.
func ParseRequest(rpcXML string) (*Request, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(rpcXML); err != nil {
		return nil, errors.NewOperationFailed("invalid rpc")
	}

	cs := findElement(doc.Root(), "create-subscription")
	if cs == nil {
		return nil, errors.NewOperationFailed("invalid rpc")
	}

	req := &Request{Stream: registry.DefaultStream}

	if el := cs.SelectElement("stream"); el != nil {
		if name := strings.TrimSpace(el.Text()); name != "" {
			req.Stream = name
		}
	}

	if el := cs.SelectElement("startTime"); el != nil {
		t, err := notification.ParseTime(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, errors.NewBadElement("startTime")
		}
		req.Start = t
	}

	if el := cs.SelectElement("stopTime"); el != nil {
		t, err := notification.ParseTime(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, errors.NewBadElement("stopTime")
		}
		req.Stop = t
	}

	if el := cs.SelectElement("filter"); el != nil {
		spec, err := parseFilter(el)
		if err != nil {
			return nil, errors.NewBadElement("filter")
		}
		req.Filter = spec
	}

	return req, nil
}

// findElement walks the document for the first element with the given
// local name.
func findElement(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

// parseFilter checks a filter element for well-formedness
func parseFilter(el *etree.Element) (*FilterSpec, error) {
	ftype := "subtree"
	if attr := el.SelectAttr("type"); attr != nil {
		ftype = attr.Value
	}

	switch ftype {
	case "subtree":
		return &FilterSpec{Type: ftype, Element: el}, nil
	case "xpath":
		attr := el.SelectAttr("select")
		if attr == nil || strings.TrimSpace(attr.Value) == "" {
			return nil, errors.WrapInvalid(errors.ErrParse, "Request", "parseFilter", "missing select expression")
		}
		return &FilterSpec{Type: ftype, Select: attr.Value, Element: el}, nil
	default:
		return nil, errors.WrapInvalid(errors.ErrParse, "Request", "parseFilter", "unknown filter type "+ftype)
	}
}

// StreamChecker reports stream existence; the registry implements it
type StreamChecker interface {
	IsAvailable(name string) bool
}

// Validate checks a parsed request against stream existence and the
// time-window rules, returning nil when the subscription may start.
func (r *Request) Validate(streams StreamChecker, now time.Time) *errors.ProtocolError {
	if !streams.IsAvailable(r.Stream) {
		return errors.NewInvalidValue(fmt.Sprintf("Requested stream '%s' does not exist.", r.Stream))
	}
	if !r.Stop.IsZero() && r.Start.IsZero() {
		return errors.NewMissingElement("startTime")
	}
	if !r.Stop.IsZero() && !r.Start.IsZero() && r.Start.After(r.Stop) {
		return errors.NewBadElement("stopTime")
	}
	if !r.Start.IsZero() && r.Start.After(now) {
		return errors.NewBadElement("startTime")
	}
	return nil
}

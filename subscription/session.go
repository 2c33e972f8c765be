package subscription

import (
	"time"

	"github.com/beevik/etree"
)

// Session is the narrow view of a NETCONF session the dispatchers need:
// its lifecycle state, the notification-capability flag, the exclusive
// dispatcher slot, and the notification transport in both directions.
type Session interface {
	// IsWorking reports whether the session is in the working state.
	// Dispatcher loops poll it so an external close terminates them.
	IsWorking() bool

	// HasNotificationCapability reports whether the session advertised
	// the RFC 5277 notification capability.
	HasNotificationCapability() bool

	// TryActivateNotif atomically claims the session's single dispatcher
	// slot, returning false when another dispatcher is already active.
	TryActivateNotif() bool

	// DeactivateNotif releases the dispatcher slot.
	DeactivateNotif()

	// SendNotification frames and ships one notification to the peer.
	SendNotification(xml string) error

	// RecvNotification returns the next notification received from the
	// peer, or "" when none arrives within the timeout.
	RecvNotification(timeout time.Duration) (string, error)
}

// Filter is the opaque content predicate applied by the send dispatcher:
// given one content child of a notification (never the eventTime element),
// it reports whether the child survives filtering.
type Filter interface {
	Match(el *etree.Element) bool
}

// FilterCompiler turns the filter carried by a subscription request into
// an executable predicate.
type FilterCompiler func(spec *FilterSpec) (Filter, error)

// nameFilter is the built-in subtree evaluator: a content child survives
// when the filter subtree contains an element with the same local name.
// An empty filter selects nothing.
type nameFilter struct {
	names map[string]struct{}
}

// compileDefault is the default FilterCompiler
func compileDefault(spec *FilterSpec) (Filter, error) {
	f := &nameFilter{names: make(map[string]struct{})}
	if spec.Element != nil {
		for _, child := range spec.Element.ChildElements() {
			collectNames(child, f.names)
		}
	}
	return f, nil
}

func collectNames(el *etree.Element, into map[string]struct{}) {
	into[el.Tag] = struct{}{}
	for _, child := range el.ChildElements() {
		collectNames(child, into)
	}
}

// Match reports whether the element's local name appears in the filter
func (f *nameFilter) Match(el *etree.Element) bool {
	_, ok := f.names[el.Tag]
	return ok
}

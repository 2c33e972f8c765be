package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/955Gmy/libnetconf/engine"
	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/notification"
)

// SendDispatcher drives a subscription on one session: it validates the
// <create-subscription> request, replays and follows the stream through a
// subscription iterator, applies the request filter, and ships every
// surviving notification to the session, terminated by a single
// notificationComplete marker.
type SendDispatcher struct {
	eng     *engine.Engine
	logger  *slog.Logger
	compile FilterCompiler
}

// SendOption configures a SendDispatcher
type SendOption func(*SendDispatcher)

// WithSendLogger sets the dispatcher logger
func WithSendLogger(logger *slog.Logger) SendOption {
	return func(d *SendDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithFilterCompiler replaces the built-in subtree filter evaluator
func WithFilterCompiler(compile FilterCompiler) SendOption {
	return func(d *SendDispatcher) {
		if compile != nil {
			d.compile = compile
		}
	}
}

// NewSendDispatcher creates a send dispatcher on the engine
func NewSendDispatcher(eng *engine.Engine, opts ...SendOption) *SendDispatcher {
	d := &SendDispatcher{
		eng:     eng,
		logger:  slog.Default(),
		compile: compileDefault,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates rpcXML on the session and, on success, sends every
// matching notification until the stop time is reached or the session
// leaves the working state. It returns the number of notifications sent.
//
// Validation failures are returned as *errors.ProtocolError so the RPC
// layer can build the <rpc-error> reply.
func (d *SendDispatcher) Dispatch(ctx context.Context, sess Session, rpcXML string) (int64, error) {
	if !sess.IsWorking() {
		return -1, errors.WrapInvalid(errors.ErrSessionNotWorking, "SendDispatcher", "Dispatch", "check session")
	}
	if !sess.HasNotificationCapability() {
		return -1, errors.WrapInvalid(errors.ErrNoNotifCapability, "SendDispatcher", "Dispatch", "check session")
	}

	req, err := ParseRequest(rpcXML)
	if err != nil {
		return -1, err
	}
	if perr := req.Validate(d.eng.Registry(), time.Now()); perr != nil {
		return -1, perr
	}

	var filter Filter
	if req.Filter != nil {
		filter, err = d.compile(req.Filter)
		if err != nil {
			return -1, errors.NewBadElement("filter")
		}
	}

	if !sess.TryActivateNotif() {
		return -1, errors.WrapInvalid(errors.ErrDispatcherActive, "SendDispatcher", "Dispatch", "claim session")
	}
	defer sess.DeactivateNotif()

	it, err := d.eng.Subscribe(req.Stream, req.Start, req.Stop)
	if err != nil {
		return -1, err
	}
	defer it.Close()

	// Cancel the iterator when the session leaves the working state so a
	// blocked live read does not outlive the session.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.watchSession(runCtx, sess, cancel)

	var count int64
	for {
		item, err := it.Next(runCtx)
		if err != nil {
			break
		}
		if item == nil {
			break
		}

		xml := item.XML
		if filter != nil && !item.ReplayComplete {
			xml, err = d.applyFilter(item.XML, filter)
			if err != nil {
				d.logger.Warn("invalid format of stored event, skipping", "error", err)
				continue
			}
			if xml == "" {
				// Everything was filtered out.
				continue
			}
		}

		if err := sess.SendNotification(xml); err != nil {
			d.logger.Warn("sending notification failed", "error", err)
			break
		}
		count++
	}

	// Close the subscription with notificationComplete.
	if err := sess.SendNotification(notification.NtfComplete(time.Now())); err != nil {
		d.logger.Warn("sending notificationComplete failed", "error", err)
	}

	return count, nil
}

// watchSession polls the session state and cancels the run when it leaves
// the working state.
func (d *SendDispatcher) watchSession(ctx context.Context, sess Session, cancel context.CancelFunc) {
	ticker := time.NewTicker(d.eng.Config().DispatchPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sess.IsWorking() {
				cancel()
				return
			}
		}
	}
}

// applyFilter runs the content predicate over the notification's children
// (the eventTime element is exempt) and re-renders the document. The empty
// string means no child survived.
func (d *SendDispatcher) applyFilter(xml string, filter Filter) (string, error) {
	n, err := notification.Parse(xml)
	if err != nil {
		return "", err
	}

	kept := 0
	for _, el := range n.ContentElements() {
		if filter.Match(el) {
			kept++
			continue
		}
		n.RemoveContentElement(el)
	}
	if kept == 0 {
		return "", nil
	}
	return n.String()
}

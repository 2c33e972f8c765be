package subscription

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/955Gmy/libnetconf/config"
	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/notification"
)

// Callback processes one received notification: its event time and the
// content with the envelope and eventTime stripped.
type Callback func(eventTime time.Time, content string)

// ReceiveDispatcher consumes the notifications arriving on a session,
// decodes them, and hands them to a callback. It terminates when a
// notificationComplete notification is observed or the session leaves the
// working state.
type ReceiveDispatcher struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
}

// ReceiveOption configures a ReceiveDispatcher
type ReceiveOption func(*ReceiveDispatcher)

// WithReceiveLogger sets the dispatcher logger
func WithReceiveLogger(logger *slog.Logger) ReceiveOption {
	return func(d *ReceiveDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithOutput redirects the default printer used when no callback is given
func WithOutput(w io.Writer) ReceiveOption {
	return func(d *ReceiveDispatcher) {
		if w != nil {
			d.out = w
		}
	}
}

// NewReceiveDispatcher creates a receive dispatcher
func NewReceiveDispatcher(cfg config.Config, opts ...ReceiveOption) *ReceiveDispatcher {
	d := &ReceiveDispatcher{
		cfg:    cfg,
		logger: slog.Default(),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch consumes notifications from the session until the stream ends.
// A nil callback prints each notification to the dispatcher output. It
// returns the number of notifications processed.
func (d *ReceiveDispatcher) Dispatch(ctx context.Context, sess Session, process Callback) (int64, error) {
	if !sess.IsWorking() {
		return -1, errors.WrapInvalid(errors.ErrSessionNotWorking, "ReceiveDispatcher", "Dispatch", "check session")
	}
	if !sess.HasNotificationCapability() {
		return -1, errors.WrapInvalid(errors.ErrNoNotifCapability, "ReceiveDispatcher", "Dispatch", "check session")
	}
	if !sess.TryActivateNotif() {
		return -1, errors.WrapInvalid(errors.ErrDispatcherActive, "ReceiveDispatcher", "Dispatch", "claim session")
	}
	defer sess.DeactivateNotif()

	if process == nil {
		process = d.printNotification
	}

	var count int64
	for sess.IsWorking() {
		if ctx.Err() != nil {
			break
		}

		xml, err := sess.RecvNotification(d.cfg.BusRecvTimeout)
		if err != nil {
			break
		}
		if xml == "" {
			// Nothing pending right now.
			time.Sleep(d.cfg.DispatchPoll)
			continue
		}

		n, err := notification.Parse(xml)
		if err != nil {
			d.logger.Warn("invalid notification received, ignoring", "error", err)
			continue
		}

		eventTime, terr := n.EventTime()
		content, cerr := n.Content()
		if terr != nil || cerr != nil {
			d.logger.Warn("invalid notification received, ignoring")
			continue
		}

		process(eventTime, content)
		count++

		if n.Kind() == notification.KindNtfComplete {
			// End of the notification stream.
			break
		}
	}

	return count, nil
}

// printNotification is the default callback: eventTime and content on the
// dispatcher output.
func (d *ReceiveDispatcher) printNotification(eventTime time.Time, content string) {
	fmt.Fprintf(d.out, "eventTime: %s\n%s\n", notification.FormatTime(eventTime), content)
}

package bus

import (
	"io"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// signalInput is a compact description of an incoming D-Bus signal for
// decode tests.
type signalInput struct {
	path   string
	member string
	body   []any
}

func (s signalInput) toDBus() *dbus.Signal {
	return &dbus.Signal{
		Path: dbus.ObjectPath(s.path),
		Name: s.member,
		Body: s.body,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

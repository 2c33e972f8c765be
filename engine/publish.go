package engine

import (
	"time"

	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/notification"
	"github.com/955Gmy/libnetconf/stream"
)

// Publish stores a new event in every replay-enabled stream whose rule
// table allows the event's name, then announces it on the bus once per
// allowed stream. A zero eventTime means now.
//
// Disk and bus failures are logged but not surfaced: publish is advisory,
// not transactional. The only hard errors are a failed payload
// construction and a torn-down engine.
func (e *Engine) Publish(eventTime time.Time, ev notification.Event) error {
	if e.closed.Load() {
		return errors.WrapFatal(errors.ErrClosed, "Engine", "Publish", "publish event")
	}

	content, err := ev.Content()
	if err != nil {
		return err
	}
	name, err := notification.EventName(content)
	if err != nil {
		return err
	}

	if eventTime.IsZero() {
		eventTime = time.Now()
	}
	eventTime = eventTime.UTC().Truncate(time.Second)
	record := notification.Envelope(eventTime, content)

	if e.metrics != nil {
		e.metrics.EventsPublished.WithLabelValues(name).Inc()
	}

	// Append to every matching replay-enabled stream log under the
	// registry mutex so the stream set cannot change between the rule
	// check and the append.
	var allowed []string
	e.reg.ForEach(func(s *stream.Stream) {
		if !s.Rules().Contains(name) {
			return
		}
		allowed = append(allowed, s.Name)
		if !s.Replay {
			return
		}
		if err := s.AppendRecord(eventTime, record); err != nil {
			e.logger.Warn("writing event into stream file failed",
				"stream", s.Name, "event", name, "error", err)
			if e.metrics != nil {
				e.metrics.AppendErrors.WithLabelValues(s.Name).Inc()
			}
			return
		}
		if e.metrics != nil {
			e.metrics.RecordsAppended.WithLabelValues(s.Name).Inc()
		}
	})

	if len(allowed) == 0 {
		if e.metrics != nil {
			e.metrics.EventsSkipped.Inc()
		}
		return nil
	}

	// Announce independently of the disk writes, one signal per allowed
	// stream.
	for _, streamName := range allowed {
		if err := e.bus.Send(streamName, eventTime, record); err != nil {
			e.logger.Warn("announcing event on the bus failed",
				"stream", streamName, "event", name, "error", err)
			if e.metrics != nil {
				e.metrics.BroadcastErrors.WithLabelValues(streamName).Inc()
			}
		}
	}

	return nil
}

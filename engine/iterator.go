package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/955Gmy/libnetconf/errors"
	"github.com/955Gmy/libnetconf/notification"
)

// Item is one delivery from a subscription iterator: a replayed or live
// notification, or the synthesized replayComplete marker separating the
// two phases.
type Item struct {
	Time           time.Time
	XML            string
	ReplayComplete bool
}

// iterator phases
type phase int

const (
	phaseReplay phase = iota
	phaseReplayComplete
	phaseLive
	phaseDone
)

// Iterator is a per-subscriber cursor over one stream: the replay phase
// reads historical records from the stream file, then a single
// replayComplete marker is emitted, then the live phase delivers bus
// signals until the stop time is reached or the engine shuts down.
//
// An iterator is owned by the dispatcher that created it and must not be
// shared between goroutines.
type Iterator struct {
	eng    *Engine
	stream string
	start  time.Time // zero means no replay requested
	stop   time.Time // zero means no stop time
	id     string

	phase  phase
	offset int64
	closed bool
}

// Subscribe creates an iterator over the stream. A zero start means no
// replay: the iterator skips straight to the live phase without emitting
// replayComplete. A zero stop means the subscription runs until the
// session ends or the engine shuts down.
func (e *Engine) Subscribe(streamName string, start, stop time.Time) (*Iterator, error) {
	if e.closed.Load() {
		return nil, errors.WrapFatal(errors.ErrClosed, "Engine", "Subscribe", "create iterator")
	}

	s, err := e.reg.Get(streamName)
	if err != nil {
		return nil, err
	}

	if err := e.bus.Subscribe(streamName); err != nil {
		return nil, err
	}

	it := &Iterator{
		eng:    e,
		stream: streamName,
		start:  start,
		stop:   stop,
		id:     uuid.NewString(),
		offset: s.DataStart(),
	}
	if start.IsZero() {
		it.phase = phaseLive
	}

	if e.metrics != nil {
		e.metrics.ActiveIterators.Inc()
	}
	e.logger.Debug("subscription iterator started",
		"subscription", it.id, "stream", streamName, "start", start, "stop", stop)
	return it, nil
}

// Next returns the next item of the subscription. It blocks in the live
// phase until a signal arrives, the stop time elapses, the context is
// cancelled, or the engine shuts down; all terminal conditions are
// reported as (nil, nil).
func (it *Iterator) Next(ctx context.Context) (*Item, error) {
	if it.phase == phaseDone {
		return nil, nil
	}
	if it.eng.closed.Load() || it.eng.reg.Closed() {
		it.phase = phaseDone
		return nil, nil
	}
	// A window that ends before it starts matches nothing.
	if !it.start.IsZero() && !it.stop.IsZero() && it.stop.Before(it.start) {
		it.phase = phaseDone
		return nil, nil
	}

	if it.phase == phaseReplay {
		item, err := it.nextReplay()
		if err != nil {
			it.phase = phaseDone
			return nil, err
		}
		if item != nil {
			return item, nil
		}
		it.phase = phaseReplayComplete
	}

	if it.phase == phaseReplayComplete {
		it.phase = phaseLive
		now := time.Now().UTC().Truncate(time.Second)
		return &Item{Time: now, XML: notification.ReplayComplete(now), ReplayComplete: true}, nil
	}

	return it.nextLive(ctx)
}

// nextReplay pops the next in-window record from the stream file, or nil
// when the replay phase is over.
func (it *Iterator) nextReplay() (*Item, error) {
	for {
		s, err := it.eng.reg.Get(it.stream)
		if err != nil {
			return nil, err
		}
		if !s.Replay {
			// Replay disabled on the stream: nothing to read back.
			return nil, nil
		}

		end, err := s.End()
		if err != nil {
			return nil, err
		}
		if it.offset >= end {
			return nil, nil
		}

		rec, next, err := s.ReadRecordAt(it.offset)
		if err != nil {
			return nil, err
		}
		it.offset = next

		if rec.Time.Before(it.start) {
			continue
		}
		if !it.stop.IsZero() && rec.Time.After(it.stop) {
			// Past the stop time: replay is over.
			return nil, nil
		}

		if it.eng.metrics != nil {
			it.eng.metrics.ReplayRecords.WithLabelValues(it.stream).Inc()
		}
		return &Item{Time: rec.Time, XML: rec.XML}, nil
	}
}

// nextLive pulls bus signals with a short bounded timeout until one inside
// the subscription window arrives or a terminal condition is hit.
func (it *Iterator) nextLive(ctx context.Context) (*Item, error) {
	for {
		if ctx.Err() != nil || it.eng.closed.Load() || it.eng.reg.Closed() {
			it.phase = phaseDone
			return nil, nil
		}
		if !it.stop.IsZero() && time.Now().After(it.stop) {
			it.phase = phaseDone
			return nil, nil
		}

		sig, err := it.eng.bus.Recv(it.eng.cfg.BusRecvTimeout)
		if err != nil {
			// A closed bus is terminal for the live phase.
			it.eng.logger.Error("bus connection unexpectedly closed",
				"subscription", it.id, "stream", it.stream, "error", err)
			it.phase = phaseDone
			return nil, nil
		}
		if sig == nil || sig.Stream != it.stream {
			continue
		}

		if !it.start.IsZero() && sig.EventTime.Before(it.start) {
			it.reject()
			continue
		}
		if !it.stop.IsZero() && sig.EventTime.After(it.stop) {
			it.reject()
			continue
		}

		if it.eng.metrics != nil {
			it.eng.metrics.LiveSignals.WithLabelValues(it.stream).Inc()
		}
		return &Item{Time: sig.EventTime, XML: sig.XML}, nil
	}
}

// reject counts a live signal outside the subscription window
func (it *Iterator) reject() {
	if it.eng.metrics != nil {
		it.eng.metrics.SignalsRejected.WithLabelValues(it.stream).Inc()
	}
}

// ID returns the iterator's subscription identifier
func (it *Iterator) ID() string {
	return it.id
}

// Close unregisters the iterator's bus interest. Safe to call more than
// once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.phase = phaseDone

	err := it.eng.bus.Unsubscribe(it.stream)
	if it.eng.metrics != nil {
		it.eng.metrics.ActiveIterators.Dec()
	}
	it.eng.logger.Debug("subscription iterator finished",
		"subscription", it.id, "stream", it.stream)
	if err != nil && !errors.Is(err, errors.ErrBusClosed) {
		return err
	}
	return nil
}

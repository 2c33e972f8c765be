package stream

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/955Gmy/libnetconf/errors"
)

func newTestStream(t *testing.T, dir, name, desc string, replay bool) *Stream {
	t.Helper()
	s := &Stream{
		Name:    name,
		Desc:    desc,
		Replay:  replay,
		Created: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, WriteHeader(dir, s))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHeaderRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		replay bool
	}{
		{"NETCONF", "NETCONF Base Notifications", true},
		{"audit", "", false},
		{"metrics-1", "per-host metrics", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := t.TempDir()
			s := newTestStream(t, dir, test.name, test.desc, test.replay)

			got, err := ReadHeader(EventsPath(dir, test.name))
			require.NoError(t, err)
			defer got.Close()

			assert.Equal(t, test.name, got.Name)
			assert.Equal(t, test.desc, got.Desc)
			assert.Equal(t, test.replay, got.Replay)
			assert.Equal(t, s.Created, got.Created)
			assert.Equal(t, s.DataStart(), got.DataStart())
		})
	}
}

func TestReadHeader_NotAStream(t *testing.T) {
	dir := t.TempDir()
	path := EventsPath(dir, "bogus")
	require.NoError(t, os.WriteFile(path, []byte("X nothing like a stream file"), 0o644))

	_, err := ReadHeader(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotAStream))
	assert.True(t, errors.IsBenign(err))
}

func TestReadHeader_ForeignVersionWord(t *testing.T) {
	dir := t.TempDir()
	s := newTestStream(t, dir, "swapped", "", true)
	require.NoError(t, s.Close())

	path := EventsPath(dir, "swapped")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Swap the version word's bytes, simulating a foreign byte order.
	data[8], data[9] = data[9], data[8]
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = ReadHeader(path)
	assert.True(t, errors.Is(err, errors.ErrNotAStream))
}

func TestWriteHeader_TruncatesExistingRecords(t *testing.T) {
	dir := t.TempDir()
	s := newTestStream(t, dir, "trunc", "d", true)
	require.NoError(t, s.AppendRecord(time.Unix(1, 0), "<x/>"))

	require.NoError(t, WriteHeader(dir, s))
	end, err := s.End()
	require.NoError(t, err)
	assert.Equal(t, s.DataStart(), end)
}

func TestAppendAndReadRecords(t *testing.T) {
	dir := t.TempDir()
	s := newTestStream(t, dir, "records", "", true)

	events := []Record{
		{Time: time.Unix(100, 0).UTC(), XML: "<a/>"},
		{Time: time.Unix(200, 0).UTC(), XML: "<b>payload</b>"},
		{Time: time.Unix(300, 0).UTC(), XML: "<c/>"},
	}
	for _, ev := range events {
		require.NoError(t, s.AppendRecord(ev.Time, ev.XML))
	}

	off := s.DataStart()
	end, err := s.End()
	require.NoError(t, err)

	var got []Record
	for off < end {
		rec, next, err := s.ReadRecordAt(off)
		require.NoError(t, err)
		got = append(got, rec)
		off = next
	}
	assert.Equal(t, events, got)
	assert.Equal(t, end, off)
}

func TestPeekRecord(t *testing.T) {
	dir := t.TempDir()
	s := newTestStream(t, dir, "peek", "", true)
	require.NoError(t, s.AppendRecord(time.Unix(42, 0), "<ev/>"))

	eventTime, payloadLen, next, err := s.PeekRecord(s.DataStart())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(42, 0).UTC(), eventTime)
	assert.Equal(t, uint32(len("<ev/>")+1), payloadLen)

	rec, recNext, err := s.ReadRecordAt(s.DataStart())
	require.NoError(t, err)
	assert.Equal(t, next, recNext)
	assert.Equal(t, "<ev/>", rec.XML)
}

func TestAppendRecord_ConcurrentWritersKeepPerWriterOrder(t *testing.T) {
	const writers = 4
	const perWriter = 50

	dir := t.TempDir()
	s := newTestStream(t, dir, "concurrent", "", true)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				xml := string(rune('A'+w)) + ":" + string(rune('0'+i%10))
				if err := s.AppendRecord(time.Unix(int64(i), 0), xml); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	off := s.DataStart()
	end, err := s.End()
	require.NoError(t, err)

	perWriterTimes := make(map[byte][]int64)
	count := 0
	for off < end {
		rec, next, err := s.ReadRecordAt(off)
		require.NoError(t, err)
		perWriterTimes[rec.XML[0]] = append(perWriterTimes[rec.XML[0]], rec.Time.Unix())
		count++
		off = next
	}
	assert.Equal(t, writers*perWriter, count)

	for w, times := range perWriterTimes {
		require.Len(t, times, perWriter, "writer %c", w)
		for i, ts := range times {
			assert.Equal(t, int64(i), ts, "writer %c out of order at %d", w, i)
		}
	}
}

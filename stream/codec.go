package stream

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/955Gmy/libnetconf/errors"
)

// Magic bytes identifying a stream file, followed by the version word.
// The version's high byte doubles as a byte-order check: a file whose
// version word does not read 0xFF01 little-endian is not ours.
const (
	MagicName    = "NCSTREAM"
	MagicVersion = uint16(0xFF01)
)

var byteOrder = binary.LittleEndian

// WriteHeader truncates the stream's events file to zero and writes the
// file header for the stream's current fields. The file is created when the
// stream has no open descriptor yet. On return the stream's data offset
// points at the first byte after the header.
func WriteHeader(dir string, s *Stream) error {
	if s.events == nil {
		old := unix.Umask(0)
		f, err := os.OpenFile(EventsPath(dir, s.Name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, FileMode)
		unix.Umask(old)
		if err != nil {
			return errors.WrapFatal(err, "Codec", "WriteHeader", "create events file")
		}
		s.events = f
	} else {
		if err := s.events.Truncate(0); err != nil {
			return errors.WrapFatal(err, "Codec", "WriteHeader", "truncate events file")
		}
	}

	header := encodeHeader(s)
	if _, err := s.events.WriteAt(header, 0); err != nil {
		// A partial header makes the file unreadable, drop it entirely.
		if terr := s.events.Truncate(0); terr != nil {
			return errors.WrapFatal(terr, "Codec", "WriteHeader", "truncate after failed header write")
		}
		return errors.WrapFatal(err, "Codec", "WriteHeader", "write header")
	}

	s.dataStart = int64(len(header))
	return nil
}

func encodeHeader(s *Stream) []byte {
	name := append([]byte(s.Name), 0)
	desc := append([]byte(s.Desc), 0)

	buf := make([]byte, 0, len(MagicName)+2+2+len(name)+2+len(desc)+1+8)
	buf = append(buf, MagicName...)
	buf = byteOrder.AppendUint16(buf, MagicVersion)
	buf = byteOrder.AppendUint16(buf, uint16(len(name)))
	buf = append(buf, name...)
	buf = byteOrder.AppendUint16(buf, uint16(len(desc)))
	buf = append(buf, desc...)
	if s.Replay {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = byteOrder.AppendUint64(buf, uint64(s.Created.Unix()))
	return buf
}

// ReadHeader opens the events file at path read+write and parses its
// header. A file whose first bytes are not the stream magic yields
// ErrNotAStream (a benign condition during directory scans, not a failure).
// On success the returned stream's data offset points at the first record.
func ReadHeader(path string) (*Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.WrapFatal(err, "Codec", "ReadHeader", "open events file")
	}

	s, err := parseHeader(f, filepath.Base(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	s.events = f
	return s, nil
}

func parseHeader(f *os.File, context string) (*Stream, error) {
	r := &headerReader{f: f}

	magic := r.bytes(len(MagicName))
	if r.err != nil {
		// Too short to hold the magic: not one of our files.
		return nil, errors.WrapBenign(errors.ErrNotAStream, "Codec", "ReadHeader", "read magic of "+context)
	}
	if string(magic) != MagicName {
		return nil, errors.WrapBenign(errors.ErrNotAStream, "Codec", "ReadHeader", "check magic of "+context)
	}

	version := r.uint16()
	if r.err == nil && version != MagicVersion {
		// Unknown version or foreign byte order.
		return nil, errors.WrapBenign(errors.ErrNotAStream, "Codec", "ReadHeader", "check version of "+context)
	}

	name := r.cstring(r.uint16())
	desc := r.cstring(r.uint16())
	replay := r.byte()
	created := r.uint64()

	if r.err != nil {
		return nil, errors.WrapFatal(errors.ErrHeaderShort, "Codec", "ReadHeader", "parse header of "+context)
	}

	return &Stream{
		Name:      name,
		Desc:      desc,
		Replay:    replay == 1,
		Created:   time.Unix(int64(created), 0).UTC(),
		dataStart: r.off,
	}, nil
}

// headerReader reads the sequential header fields, latching the first error
type headerReader struct {
	f   *os.File
	off int64
	err error
}

func (r *headerReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(r.f, r.off, int64(n)), buf); err != nil {
		r.err = err
		return nil
	}
	r.off += int64(n)
	return buf
}

func (r *headerReader) uint16() uint16 {
	b := r.bytes(2)
	if r.err != nil {
		return 0
	}
	return byteOrder.Uint16(b)
}

func (r *headerReader) uint64() uint64 {
	b := r.bytes(8)
	if r.err != nil {
		return 0
	}
	return byteOrder.Uint64(b)
}

func (r *headerReader) byte() byte {
	b := r.bytes(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

// cstring reads a NUL-terminated string of the given encoded length
func (r *headerReader) cstring(n uint16) string {
	b := r.bytes(int(n))
	if r.err != nil {
		return ""
	}
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Record is one decoded event record from a stream file
type Record struct {
	Time time.Time
	XML  string
}

// recordHeaderLen is the fixed prefix of every record: uint32 payload
// length plus uint64 event time.
const recordHeaderLen = 4 + 8

// AppendRecord appends one event record at the end of the stream's events
// file under the advisory file lock. On a partial write the file is
// truncated back to its pre-write size so a torn record never becomes
// visible to readers.
func (s *Stream) AppendRecord(eventTime time.Time, xml string) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	lock := newFileLock(s.events)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	end, err := s.End()
	if err != nil {
		return err
	}

	payload := append([]byte(xml), 0)
	buf := make([]byte, 0, recordHeaderLen+len(payload))
	buf = byteOrder.AppendUint32(buf, uint32(len(payload)))
	buf = byteOrder.AppendUint64(buf, uint64(eventTime.Unix()))
	buf = append(buf, payload...)

	if _, err := s.events.WriteAt(buf, end); err != nil {
		if terr := s.events.Truncate(end); terr != nil {
			return errors.WrapFatal(terr, "Codec", "AppendRecord", "truncate after failed write")
		}
		return errors.WrapFatal(err, "Codec", "AppendRecord", "write record")
	}
	return nil
}

// PeekRecord reads the record prefix at offset under the advisory file
// lock and returns the event time, the payload length, and the offset of
// the next record. It lets the caller window-check a record before paying
// for the payload read.
func (s *Stream) PeekRecord(offset int64) (eventTime time.Time, payloadLen uint32, next int64, err error) {
	lock := newFileLock(s.events)
	if err = lock.Lock(); err != nil {
		return time.Time{}, 0, 0, err
	}
	defer lock.Unlock()

	var hdr [recordHeaderLen]byte
	if _, rerr := io.ReadFull(io.NewSectionReader(s.events, offset, recordHeaderLen), hdr[:]); rerr != nil {
		return time.Time{}, 0, 0, errors.WrapFatal(errors.ErrRecordShort, "Codec", "PeekRecord", "read record prefix")
	}

	payloadLen = byteOrder.Uint32(hdr[:4])
	eventTime = time.Unix(int64(byteOrder.Uint64(hdr[4:])), 0).UTC()
	next = offset + recordHeaderLen + int64(payloadLen)
	return eventTime, payloadLen, next, nil
}

// ReadRecordAt reads the full record at offset under the advisory file
// lock and returns it together with the offset of the next record. The
// trailing NUL byte counted in the stored length is stripped from the XML.
func (s *Stream) ReadRecordAt(offset int64) (Record, int64, error) {
	lock := newFileLock(s.events)
	if err := lock.Lock(); err != nil {
		return Record{}, 0, err
	}
	defer lock.Unlock()

	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(io.NewSectionReader(s.events, offset, recordHeaderLen), hdr[:]); err != nil {
		return Record{}, 0, errors.WrapFatal(errors.ErrRecordShort, "Codec", "ReadRecordAt", "read record prefix")
	}

	payloadLen := byteOrder.Uint32(hdr[:4])
	eventTime := time.Unix(int64(byteOrder.Uint64(hdr[4:])), 0).UTC()

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(io.NewSectionReader(s.events, offset+recordHeaderLen, int64(payloadLen)), payload); err != nil {
		return Record{}, 0, errors.WrapFatal(errors.ErrRecordShort, "Codec", "ReadRecordAt", "read record payload")
	}
	if len(payload) > 0 && payload[len(payload)-1] == 0 {
		payload = payload[:len(payload)-1]
	}

	next := offset + recordHeaderLen + int64(payloadLen)
	return Record{Time: eventTime, XML: string(payload)}, next, nil
}

// Package stream implements the on-disk representation of a notification
// stream: the binary events log with its fixed header and length-prefixed
// records, the advisory whole-file lock serializing cross-process access,
// and the memory-mapped rule table holding the allowlist of event names.
//
// # Stream file format
//
//	char[8]  "NCSTREAM"
//	uint16   0xFF01 - byte order and format version
//	uint16   name length (including NUL)
//	char[]   name, NUL-terminated
//	uint16   description length (including NUL, >= 1)
//	char[]   description, NUL-terminated
//	uint8    replay flag
//	uint64   creation time, epoch seconds
//	...      records
//
// Each record is a uint32 payload length (the XML text plus a terminating
// NUL), a uint64 event time in epoch seconds, and the payload itself. All
// integers are little-endian; a header whose version word does not read
// 0xFF01 little-endian is not a stream file.
package stream

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/955Gmy/libnetconf/errors"
)

// EventsExt and RulesExt are the filename extensions of the two per-stream files
const (
	EventsExt = ".events"
	RulesExt  = ".rules"
)

// FileMode is the creation mode of stream files. World-writable so any
// server process on the host can publish.
const FileMode = 0o777

// Stream is one open notification stream: the events log file, the mapped
// rule table, and the header fields describing the stream.
type Stream struct {
	Name    string
	Desc    string
	Replay  bool
	Created time.Time

	events *os.File
	rules  *RuleTable

	// appendMu serializes appends from goroutines sharing this descriptor;
	// the advisory file lock does not exclude holders of the same open file.
	appendMu sync.Mutex

	// dataStart is the byte offset of the first record, directly after
	// the header.
	dataStart int64
}

// EventsPath returns the events file path for a stream name inside dir
func EventsPath(dir, name string) string {
	return filepath.Join(dir, name+EventsExt)
}

// RulesPath returns the rules file path for a stream name inside dir
func RulesPath(dir, name string) string {
	return filepath.Join(dir, name+RulesExt)
}

// DataStart returns the offset of the first record in the events file
func (s *Stream) DataStart() int64 {
	return s.dataStart
}

// Rules returns the stream's rule table
func (s *Stream) Rules() *RuleTable {
	return s.rules
}

// End returns the current size of the events file
func (s *Stream) End() (int64, error) {
	info, err := s.events.Stat()
	if err != nil {
		return 0, errors.WrapFatal(err, "Stream", "End", "stat events file")
	}
	return info.Size(), nil
}

// OpenRules maps the stream's rule table, creating the rules file when it
// does not exist yet.
func (s *Stream) OpenRules(dir string) error {
	rt, err := OpenRuleTable(RulesPath(dir, s.Name))
	if err != nil {
		return err
	}
	s.rules = rt
	return nil
}

// Close releases the events file descriptor and unmaps the rule table
func (s *Stream) Close() error {
	var firstErr error
	if s.rules != nil {
		if err := s.rules.Close(); err != nil {
			firstErr = err
		}
		s.rules = nil
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "Stream", "Close", "close events file")
		}
		s.events = nil
	}
	return firstErr
}

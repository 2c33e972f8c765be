package stream

import (
	"bytes"
	"os"

	"golang.org/x/sys/unix"

	"github.com/955Gmy/libnetconf/errors"
)

// RulesBytes is the fixed size of every rule table mapping: 1 MiB
const RulesBytes = 1024 * 1024

// RuleTable is the memory-mapped allowlist of event names for one stream.
// The region holds newline-delimited names; membership is exact string
// equality with one line. The mapping is shared between processes, so an
// append made by one publisher is visible to the others without reopening.
//
// Reads are lock-free point-in-time scans. Appends race on the write
// offset, so callers must serialize Allow under the registry mutex.
type RuleTable struct {
	f    *os.File
	data []byte
}

// OpenRuleTable maps the rule file at path, creating it as a sparse
// RulesBytes file when it does not exist yet.
func OpenRuleTable(path string) (*RuleTable, error) {
	old := unix.Umask(0)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, FileMode)
	unix.Umask(old)
	if err != nil {
		return nil, errors.WrapFatal(err, "RuleTable", "Open", "open rules file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WrapFatal(err, "RuleTable", "Open", "stat rules file")
	}
	if info.Size() < RulesBytes {
		// Grow to the fixed size as a sparse file: write a single zero
		// byte at the last offset.
		if _, err := f.WriteAt([]byte{0}, RulesBytes-1); err != nil {
			f.Close()
			return nil, errors.WrapFatal(err, "RuleTable", "Open", "grow sparse rules file")
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, RulesBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.WrapFatal(errors.ErrMapFailed, "RuleTable", "Open", "map rules file")
	}

	return &RuleTable{f: f, data: data}, nil
}

// used returns the written prefix of the region: everything before the
// first zero byte.
func (rt *RuleTable) used() []byte {
	if i := bytes.IndexByte(rt.data, 0); i >= 0 {
		return rt.data[:i]
	}
	return rt.data
}

// Contains reports whether event is allowed by the table
func (rt *RuleTable) Contains(event string) bool {
	for _, line := range bytes.Split(rt.used(), []byte{'\n'}) {
		if len(line) > 0 && string(line) == event {
			return true
		}
	}
	return false
}

// Allow appends event to the table. Appending an already-present event is
// a no-op, leaving the table byte-identical. When the new line would cross
// the region boundary the table is left untouched and ErrRuleTableFull is
// returned.
func (rt *RuleTable) Allow(event string) error {
	if rt.Contains(event) {
		return nil
	}

	used := rt.used()
	off := 0
	if i := bytes.LastIndexByte(used, '\n'); i >= 0 {
		off = i + 1
	}

	line := event + "\n"
	if off+len(line) >= RulesBytes {
		return errors.WrapFatal(errors.ErrRuleTableFull, "RuleTable", "Allow", "append rule")
	}
	copy(rt.data[off:], line)
	return nil
}

// Names returns the allowed event names in table order
func (rt *RuleTable) Names() []string {
	var names []string
	for _, line := range bytes.Split(rt.used(), []byte{'\n'}) {
		if len(line) > 0 {
			names = append(names, string(line))
		}
	}
	return names
}

// Close unmaps the region and closes the rules file
func (rt *RuleTable) Close() error {
	var firstErr error
	if rt.data != nil {
		if err := unix.Munmap(rt.data); err != nil {
			firstErr = errors.Wrap(err, "RuleTable", "Close", "unmap rules file")
		}
		rt.data = nil
	}
	if rt.f != nil {
		if err := rt.f.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "RuleTable", "Close", "close rules file")
		}
		rt.f = nil
	}
	return firstErr
}

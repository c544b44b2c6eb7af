// Package runlog appends an audit trail of dispatched commands.
//
// The log is a pure side effect: it is never read back during a run and a
// write failure never escalates to a run failure.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonlambert/deliver/internal/host"
)

// Log records dispatched commands, one line per dispatch. Safe for
// concurrent use. The zero value discards every record.
type Log struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// New creates a log writing to w.
func New(w io.Writer) *Log {
	return &Log{w: w, now: time.Now}
}

// Open creates a log appending to the file at path, creating the parent
// directory if needed. Open never fails: if the file cannot be opened the
// returned log silently discards records, per the best-effort contract.
func Open(path string) *Log {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Log{now: time.Now}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Log{now: time.Now}
	}
	return &Log{w: f, c: f, now: time.Now}
}

// Record appends one timestamped line for a dispatched command:
//
//	timestamp ::: hosts : command
func (l *Log) Record(hosts []host.Host, command string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	ts := l.now().Format(time.RFC3339)
	// Write errors are deliberately dropped.
	fmt.Fprintf(l.w, "%s ::: %s : %s\n", ts, host.Render(hosts), command)
}

// RecordLocal appends one timestamped line for a locally dispatched command.
func (l *Log) RecordLocal(command string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}
	ts := l.now().Format(time.RFC3339)
	fmt.Fprintf(l.w, "%s ::: localhost : %s\n", ts, command)
}

// Close releases the underlying file, if any.
func (l *Log) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c != nil {
		_ = l.c.Close()
		l.c = nil
		l.w = nil
	}
}

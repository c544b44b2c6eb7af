package runlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonlambert/deliver/internal/host"
)

func fixedClock(l *Log) {
	l.now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
}

func TestRecordLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	fixedClock(l)

	hosts := []host.Host{
		{Address: "a", User: "deploy"},
		{Address: "b", User: "deploy"},
	}
	l.Record(hosts, "git fetch --all")

	want := "2024-03-01T12:00:00Z ::: deploy@a deploy@b : git fetch --all\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestRecordLocalLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	fixedClock(l)

	l.RecordLocal("ssh-keyscan -H a b")

	want := "2024-03-01T12:00:00Z ::: localhost : ssh-keyscan -H a b\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestRecordIsAppendOnly(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	fixedClock(l)

	l.RecordLocal("first")
	l.RecordLocal("second")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasSuffix(lines[0], "first") || !strings.HasSuffix(lines[1], "second") {
		t.Errorf("lines out of order: %v", lines)
	}
}

func TestBestEffortNeverFails(t *testing.T) {
	// Nil writer and nil log both discard silently.
	l := New(nil)
	l.Record([]host.Host{{Address: "a"}}, "anything")
	l.RecordLocal("anything")
	l.Close()

	var nilLog *Log
	nilLog.Record(nil, "anything")
	nilLog.Close()
}

func TestOpenAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log", "run.log")

	first := Open(path)
	first.RecordLocal("run one")
	first.Close()

	second := Open(path)
	second.RecordLocal("run two")
	second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "run one") || !strings.Contains(content, "run two") {
		t.Errorf("log content = %q, want both runs appended", content)
	}
}

func TestOpenUnwritablePathDiscards(t *testing.T) {
	l := Open("/proc/definitely/not/writable/log")
	l.RecordLocal("dropped")
	l.Close()
}

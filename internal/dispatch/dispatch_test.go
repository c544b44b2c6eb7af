package dispatch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/executor"
	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/monitor"
	"github.com/jonlambert/deliver/internal/runlog"
)

type recordingTransport struct {
	mu  sync.Mutex
	ran []string
}

func (r *recordingTransport) Run(ctx context.Context, h host.Host, command string) monitor.Result {
	r.mu.Lock()
	r.ran = append(r.ran, h.String()+": "+command)
	r.mu.Unlock()
	return monitor.Result{ExitCode: 0, Stdout: "done\n"}
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func (r *recordingTransport) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ran) == 0 {
		return ""
	}
	return r.ran[len(r.ran)-1]
}

func newTestDispatcher(mode string, transport executor.Transport, out *bytes.Buffer) *Dispatcher {
	cfg := &config.Config{
		App:        "myapp",
		User:       "deploy",
		Branch:     "master",
		Supervisor: "systemd",
		Mode:       mode,
		SSHTimeout: 5 * time.Second,
	}
	log := runlog.New(nil)
	exec := executor.New(cfg, transport, log, nil)
	return New(cfg, exec, log, nil, out)
}

func testHosts(addrs ...string) []host.Host {
	hosts := make([]host.Host, len(addrs))
	for i, a := range addrs {
		hosts[i] = host.Host{Address: a, User: "deploy", Port: 22}
	}
	return hosts
}

func TestLocalTestModeNeverExecutes(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeTest, &recordingTransport{}, &out)

	err := d.Local(context.Background(), "create marker", "touch "+marker)
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}

	if _, statErr := os.Stat(marker); statErr == nil {
		t.Fatal("test mode executed the command")
	}
	if !strings.Contains(out.String(), "touch "+marker) {
		t.Errorf("output = %q, want the command definition printed", out.String())
	}
	if !strings.Contains(out.String(), "[test]") {
		t.Errorf("output = %q, want the test marker", out.String())
	}
}

func TestRemoteTestModePrintsRenderedCommands(t *testing.T) {
	transport := &recordingTransport{}
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeTest, transport, &out)

	err := d.Remote(context.Background(), "launch", "sudo service {{.App}} restart", testHosts("h1", "h2"))
	if err != nil {
		t.Fatalf("Remote error: %v", err)
	}

	if transport.count() != 0 {
		t.Fatalf("test mode dispatched %d remote commands, want 0", transport.count())
	}
	got := out.String()
	for _, want := range []string{"deploy@h1: sudo service myapp restart", "deploy@h2: sudo service myapp restart"} {
		if !strings.Contains(got, want) {
			t.Errorf("output = %q, want it to contain %q", got, want)
		}
	}
}

func TestLocalVerboseEchoesCommand(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeVerbose, &recordingTransport{}, &out)

	err := d.Local(context.Background(), "greet", "echo hello-from-step")
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "$ echo hello-from-step") {
		t.Errorf("output = %q, verbose mode must echo the command before running it", got)
	}
	if !strings.Contains(got, "hello-from-step") {
		t.Errorf("output = %q, verbose mode must show command output", got)
	}
}

func TestLocalCompactSuppressesOutput(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeCompact, &recordingTransport{}, &out)

	err := d.Local(context.Background(), "quiet step", "echo should-not-appear")
	if err != nil {
		t.Fatalf("Local error: %v", err)
	}

	got := out.String()
	if strings.Contains(got, "should-not-appear") {
		t.Errorf("output = %q, compact mode must suppress command output", got)
	}
	if !strings.Contains(got, "✓ quiet step") {
		t.Errorf("output = %q, want the success marker with the label", got)
	}
}

func TestLocalCompactFailureCarriesLabel(t *testing.T) {
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeCompact, &recordingTransport{}, &out)

	err := d.Local(context.Background(), "doomed step", "exit 3")
	if err == nil {
		t.Fatal("Local succeeded for a failing command")
	}
	if !strings.Contains(err.Error(), "doomed step") {
		t.Errorf("error = %v, want the captured label surfaced", err)
	}
	if !strings.Contains(out.String(), "✗ doomed step") {
		t.Errorf("output = %q, want the failure marker with the label", out.String())
	}
}

func TestRemoteDebugTracesCommands(t *testing.T) {
	run := func(mode string) (string, string) {
		t.Helper()
		transport := &recordingTransport{}
		var out bytes.Buffer
		d := newTestDispatcher(mode, transport, &out)
		if err := d.Remote(context.Background(), "launch", "sudo service {{.App}} restart", testHosts("h1")); err != nil {
			t.Fatalf("Remote error in %s mode: %v", mode, err)
		}
		return transport.last(), out.String()
	}

	verboseCmd, _ := run(config.ModeVerbose)
	debugCmd, debugOut := run(config.ModeDebug)

	if verboseCmd != "deploy@h1: sudo service myapp restart" {
		t.Errorf("verbose command = %q, want the command without tracing", verboseCmd)
	}
	if debugCmd != "deploy@h1: set -x; sudo service myapp restart" {
		t.Errorf("debug command = %q, want shell tracing prepended", debugCmd)
	}
	if !strings.Contains(debugOut, "$ set -x; sudo service {{.App}} restart") {
		t.Errorf("debug output = %q, want the traced command echoed", debugOut)
	}
}

func TestRemoteVerboseStreamsResults(t *testing.T) {
	transport := &recordingTransport{}
	var out bytes.Buffer
	d := newTestDispatcher(config.ModeVerbose, transport, &out)

	err := d.Remote(context.Background(), "ping", "true", testHosts("h1"))
	if err != nil {
		t.Fatalf("Remote error: %v", err)
	}
	if transport.count() != 1 {
		t.Fatalf("transport ran %d commands, want 1", transport.count())
	}
	if !strings.Contains(out.String(), "[h1] done") {
		t.Errorf("output = %q, want host-prefixed command output", out.String())
	}
}

// Package dispatch wraps units of work according to the run-wide execution
// mode.
//
// The mode is fixed for the whole run: compact backgrounds the unit behind
// a progress heartbeat, verbose and debug run it inline with the command
// echoed first, and test only prints what would run without touching local
// or remote state.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/errors"
	"github.com/jonlambert/deliver/internal/executor"
	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/logging"
	"github.com/jonlambert/deliver/internal/output"
	"github.com/jonlambert/deliver/internal/runlog"
	"github.com/jonlambert/deliver/internal/template"
)

// HeartbeatInterval is how often the compact-mode indicator redraws.
const HeartbeatInterval = 100 * time.Millisecond

// Dispatcher routes units of work through the active execution mode.
type Dispatcher struct {
	cfg    *config.Config
	exec   *executor.Executor
	log    *runlog.Log
	logger *logging.Logger
	out    io.Writer
}

// New creates a dispatcher for the run.
func New(cfg *config.Config, exec *executor.Executor, log *runlog.Log, logger *logging.Logger, out io.Writer) *Dispatcher {
	if out == nil {
		out = os.Stdout
	}
	return &Dispatcher{
		cfg:    cfg,
		exec:   exec,
		log:    log,
		logger: logger,
		out:    out,
	}
}

// Local dispatches a local shell command under the active mode.
func (d *Dispatcher) Local(ctx context.Context, label, command string) error {
	switch d.cfg.Mode {
	case config.ModeTest:
		fmt.Fprintf(d.out, "[test] %s\n  %s\n", label, command)
		return nil

	case config.ModeVerbose, config.ModeDebug:
		fmt.Fprintf(d.out, "%s\n$ %s\n", label, command)
		d.log.RecordLocal(command)
		return d.runLocal(ctx, command, d.out)

	default: // compact
		d.log.RecordLocal(command)
		hb := newHeartbeat(label, d.out, HeartbeatInterval)
		hb.Start()
		errCh := make(chan error, 1)
		go func() {
			errCh <- d.runLocal(ctx, command, io.Discard)
		}()
		err := <-errCh
		hb.Stop(err)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil
	}
}

// Remote dispatches a command template against all hosts under the active
// mode. The fan-out itself is the executor's job; the dispatcher controls
// visibility and whether anything really runs.
func (d *Dispatcher) Remote(ctx context.Context, label, commandTemplate string, hosts []host.Host) error {
	switch d.cfg.Mode {
	case config.ModeTest:
		fmt.Fprintf(d.out, "[test] %s\n", label)
		for _, h := range hosts {
			rendered, err := template.Render(commandTemplate, d.commandContext(h))
			if err != nil {
				return fmt.Errorf("rendering command for %s: %w", h, err)
			}
			fmt.Fprintf(d.out, "  %s: %s\n", h, rendered)
		}
		return nil

	case config.ModeVerbose, config.ModeDebug:
		command := commandTemplate
		if d.cfg.Mode == config.ModeDebug {
			// Remote shell tracing, matching the -x local runs.
			command = "set -x; " + command
		}
		fmt.Fprintf(d.out, "%s\n$ %s\n", label, command)
		results, err := d.exec.RunOnHosts(ctx, command, hosts)
		output.StreamResults(d.out, results)
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil

	default: // compact
		hb := newHeartbeat(label, d.out, HeartbeatInterval)
		hb.Start()
		results, err := d.exec.RunOnHosts(ctx, commandTemplate, hosts)
		hb.Stop(err)
		if err != nil {
			output.FailureReport(d.out, results)
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil
	}
}

// runLocal executes a command through the shell with output attached to w.
// Debug mode additionally enables shell tracing.
func (d *Dispatcher) runLocal(ctx context.Context, command string, w io.Writer) error {
	shellArgs := []string{"-c", command}
	if d.cfg.Mode == config.ModeDebug {
		shellArgs = []string{"-xc", command}
	}

	cmd := exec.CommandContext(ctx, "sh", shellArgs...)
	cmd.Stdout = w
	cmd.Stderr = w

	start := time.Now()
	err := cmd.Run()
	if d.logger != nil {
		exitCode := 0
		if err != nil {
			exitCode = 1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
		}
		d.logger.LogJobComplete("localhost", exitCode, time.Since(start), err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return &errors.InterruptedError{}
		}
		return err
	}
	return nil
}

func (d *Dispatcher) commandContext(h host.Host) template.Context {
	return template.NewContext(h, d.cfg.App, d.cfg.Branch, d.cfg.Supervisor)
}

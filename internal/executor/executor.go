// Package executor fans a command out to many hosts concurrently and
// aggregates per-host outcomes.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/logging"
	"github.com/jonlambert/deliver/internal/monitor"
	"github.com/jonlambert/deliver/internal/runlog"
	"github.com/jonlambert/deliver/internal/template"
)

// Transport runs one command against one target and resolves its status.
type Transport interface {
	Run(ctx context.Context, h host.Host, command string) monitor.Result
}

// Executor is the parallel remote executor. One instance serves a whole
// run; each RunOnHosts call owns its own host and job collections.
type Executor struct {
	cfg       *config.Config
	transport Transport
	log       *runlog.Log
	logger    *logging.Logger
}

// New creates an executor bound to the run's configuration and transport.
func New(cfg *config.Config, transport Transport, log *runlog.Log, logger *logging.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		transport: transport,
		log:       log,
		logger:    logger,
	}
}

// RunOnHosts renders commandTemplate against each host and launches one
// concurrent job per host. All jobs are launched before any is awaited;
// every launched job's status is observed exactly once before this call
// returns. In test mode no jobs run at all and the call reports success.
func (e *Executor) RunOnHosts(ctx context.Context, commandTemplate string, hosts []host.Host) ([]monitor.Result, error) {
	if e.cfg.Mode == config.ModeTest {
		return nil, nil
	}

	// Render every command up front so a bad template aborts before any
	// host is touched.
	commands := make([]string, len(hosts))
	for i, h := range hosts {
		rendered, err := template.Render(commandTemplate, e.commandContext(h))
		if err != nil {
			return nil, fmt.Errorf("rendering command for %s: %w", h, err)
		}
		commands[i] = rendered
		if e.logger != nil {
			e.logger.Debug("command rendered", "host", h.String(), "command", rendered)
		}
	}

	e.log.Record(hosts, commandTemplate)
	if e.logger != nil {
		e.logger.LogBatchStart(len(hosts), commandTemplate)
	}
	start := time.Now()

	// True fan-out: every job is launched before any is awaited. The
	// monitor is created per call; job collections are never shared
	// across dispatches.
	mon := monitor.New()
	for i, h := range hosts {
		job := monitor.NewJob(h, commands[i])
		mon.Add(job)
		go func(j *monitor.Job) {
			j.Resolve(e.transport.Run(ctx, j.Host, j.Command))
		}(job)
	}

	if e.logger != nil {
		e.logger.Debug("jobs launched", "pending", mon.Pending())
	}
	results, err := mon.Await()

	if e.logger != nil {
		failures := 0
		for _, r := range results {
			if r.Failed() {
				failures++
			}
		}
		e.logger.LogBatchComplete(len(hosts), failures, time.Since(start))
	}

	return results, err
}

// commandContext builds the per-host template context from the run
// configuration.
func (e *Executor) commandContext(h host.Host) template.Context {
	return template.NewContext(h, e.cfg.App, e.cfg.Branch, e.cfg.Supervisor)
}

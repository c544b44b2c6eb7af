// Package monitor tracks in-flight jobs and blocks until every one of them
// has a resolved status.
package monitor

import (
	"fmt"
	"time"

	"github.com/jonlambert/deliver/internal/errors"
	"github.com/jonlambert/deliver/internal/host"
)

// Result is the resolved status of one job.
type Result struct {
	Host     host.Host     // Target the job ran against
	Command  string        // Exact command that was dispatched
	ExitCode int           // Exit code, 255 for transport failures
	Stdout   string        // Captured standard output
	Stderr   string        // Captured standard error
	Duration time.Duration // Wall time from launch to resolution
	Err      error         // Transport or execution error, nil on clean exit
}

// Failed reports whether the job counts as a job failure: a connection
// timeout, a transport error, and a non-zero remote exit are all surfaced
// identically.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Job is one in-flight unit of work. Jobs are ephemeral: created per
// dispatch and discarded after their status is consumed.
type Job struct {
	Host    host.Host
	Command string
	done    chan Result
}

// NewJob creates an unresolved job for the given target and command.
func NewJob(h host.Host, command string) *Job {
	return &Job{
		Host:    h,
		Command: command,
		done:    make(chan Result, 1),
	}
}

// Resolve records the job's final status. Must be called exactly once.
func (j *Job) Resolve(r Result) {
	r.Host = j.Host
	r.Command = j.Command
	j.done <- r
}

// Wait blocks until the job resolves.
func (j *Job) Wait() Result {
	return <-j.done
}

// Monitor waits on a set of in-flight jobs. It is reusable: Await clears
// the tracked set once every job has reported. A Monitor must not be
// shared across concurrent dispatches.
type Monitor struct {
	jobs []*Job
}

// New creates an empty monitor.
func New() *Monitor {
	return &Monitor{}
}

// Add registers a launched job for the current batch.
func (m *Monitor) Add(j *Job) {
	m.jobs = append(m.jobs, j)
}

// Pending returns the number of jobs not yet awaited in this batch.
func (m *Monitor) Pending() int {
	return len(m.jobs)
}

// Await blocks until every tracked job resolves, then reports all failures
// at once. There is no early exit on first failure: every job is observed
// to completion so none is left orphaned. The results preserve the order
// the jobs were added in; completion order across hosts is unspecified.
func (m *Monitor) Await() ([]Result, error) {
	results := make([]Result, 0, len(m.jobs))
	var failed []errors.JobOutcome

	for _, j := range m.jobs {
		r := j.Wait()
		results = append(results, r)
		if r.Failed() {
			err := r.Err
			if err == nil {
				err = &exitError{code: r.ExitCode}
			}
			failed = append(failed, errors.JobOutcome{
				Host:    j.Host.String(),
				Command: j.Command,
				Err:     err,
			})
		}
	}

	// Clear bookkeeping so the monitor can serve the next dispatch.
	m.jobs = nil

	if len(failed) > 0 {
		return results, &errors.JobFailureError{Failed: failed}
	}
	return results, nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

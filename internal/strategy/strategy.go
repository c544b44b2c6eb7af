// Package strategy discovers, loads, and executes deployment strategies.
//
// A strategy is a named, ordered sequence of steps. Built-in strategies are
// declared in code; project-local strategies are YAML files under
// .deliver/strategies and may replace a built-in of the same name.
package strategy

import (
	"context"
	"time"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/dispatch"
	"github.com/jonlambert/deliver/internal/errors"
	"github.com/jonlambert/deliver/internal/host"
	"github.com/jonlambert/deliver/internal/logging"
)

// Runtime is the execution context handed to every step. Strategy steps
// reach the core's dispatch and remote-execution primitives through it;
// a step may itself fan a command out to all hosts.
type Runtime struct {
	Cfg        *config.Config
	Hosts      []host.Host
	Dispatcher *dispatch.Dispatcher
	Logger     *logging.Logger
}

// Step is one named unit of a strategy.
type Step struct {
	Name string
	Run  func(ctx context.Context, rt *Runtime) error

	// ContinueOnError lets a step report failure without aborting the
	// remaining steps. The default policy aborts on first failure.
	ContinueOnError bool
}

// Strategy is an ordered, pluggable sequence of deployment steps.
type Strategy struct {
	Name  string
	Steps []Step
}

// Execute runs the strategy's steps in order. A failed step aborts the
// remaining steps unless it is marked ContinueOnError; the first aborting
// failure is returned wrapped with the strategy and step name.
func (s *Strategy) Execute(ctx context.Context, rt *Runtime) error {
	var firstErr error

	for _, step := range s.Steps {
		if ctx.Err() != nil {
			return &errors.InterruptedError{}
		}

		if rt.Logger != nil {
			rt.Logger.LogStepStart(s.Name, step.Name)
		}
		start := time.Now()
		err := step.Run(ctx, rt)
		if rt.Logger != nil {
			rt.Logger.LogStepComplete(s.Name, step.Name, time.Since(start), err)
		}

		if err != nil {
			wrapped := &errors.StepFailureError{
				Strategy: s.Name,
				Step:     step.Name,
				Err:      err,
			}
			if !step.ContinueOnError {
				return wrapped
			}
			if firstErr == nil {
				firstErr = wrapped
			}
		}
	}

	return firstErr
}

// StepNames returns the ordered step names, for listings and dry runs.
func (s *Strategy) StepNames() []string {
	names := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		names[i] = step.Name
	}
	return names
}

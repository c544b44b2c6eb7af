// Package errors provides error classification and exit-code mapping for deliver.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Exit codes reported by the deliver process.
const (
	ExitSuccess     = 0   // all steps and jobs succeeded
	ExitJobFailure  = 1   // one or more jobs or steps failed
	ExitSetup       = 2   // configuration or strategy resolution failed
	ExitInterrupted = 130 // run interrupted by an external signal
)

// MissingRequiredConfigError reports every required setting left unresolved
// after the configuration merge. It is never raised for the first missing
// key alone; check mode relies on seeing the complete list.
type MissingRequiredConfigError struct {
	Keys []string
}

func (e *MissingRequiredConfigError) Error() string {
	keys := append([]string(nil), e.Keys...)
	sort.Strings(keys)
	return fmt.Sprintf("missing required configuration: %s", strings.Join(keys, ", "))
}

// UnknownStrategyError reports a configured strategy name that matched
// nothing in the discovered set. Discovered carries the full enumeration so
// callers can print it as a help listing.
type UnknownStrategyError struct {
	Name       string
	Discovered []string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (available: %s)", e.Name, strings.Join(e.Discovered, ", "))
}

// JobOutcome describes one finished job for failure reporting.
type JobOutcome struct {
	Host    string
	Command string
	Err     error
}

// JobFailureError aggregates the failed jobs of one batch. It is only
// constructed after every job in the batch has been observed.
type JobFailureError struct {
	Failed []JobOutcome
}

func (e *JobFailureError) Error() string {
	if len(e.Failed) == 1 {
		f := e.Failed[0]
		return fmt.Sprintf("job failed on %s: %v", f.Host, f.Err)
	}
	hosts := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		hosts[i] = f.Host
	}
	return fmt.Sprintf("%d jobs failed on: %s", len(e.Failed), strings.Join(hosts, ", "))
}

// StepFailureError wraps a strategy step that did not complete.
type StepFailureError struct {
	Strategy string
	Step     string
	Err      error
}

func (e *StepFailureError) Error() string {
	return fmt.Sprintf("strategy %s: step %q failed: %v", e.Strategy, e.Step, e.Err)
}

func (e *StepFailureError) Unwrap() error {
	return e.Err
}

// InterruptedError marks a run aborted by an external signal. It is distinct
// from ordinary job failure so callers can tell "aborted" from "ran and
// failed".
type InterruptedError struct {
	Signal string
}

func (e *InterruptedError) Error() string {
	if e.Signal == "" {
		return "run interrupted"
	}
	return fmt.Sprintf("run interrupted by %s", e.Signal)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch classified(err).(type) {
	case *InterruptedError:
		return ExitInterrupted
	case *JobFailureError, *StepFailureError:
		return ExitJobFailure
	case *MissingRequiredConfigError, *UnknownStrategyError:
		return ExitSetup
	default:
		// Unclassified errors are treated as setup errors for safety.
		return ExitSetup
	}
}

// classified walks the error chain until it finds one of the deliver error
// types, or returns the outermost error unchanged.
func classified(err error) error {
	for cur := err; cur != nil; {
		switch cur.(type) {
		case *InterruptedError, *JobFailureError, *StepFailureError,
			*MissingRequiredConfigError, *UnknownStrategyError:
			return cur
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		cur = u.Unwrap()
	}
	return err
}

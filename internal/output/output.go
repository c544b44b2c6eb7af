// Package output renders results, check tables, and failure reports.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonlambert/deliver/internal/config"
	"github.com/jonlambert/deliver/internal/monitor"
)

// StreamResults writes each result's captured output with a [host] prefix,
// in the order the jobs were dispatched.
func StreamResults(w io.Writer, results []monitor.Result) {
	for _, r := range results {
		prefix := fmt.Sprintf("[%s]", r.Host.Address)
		writePrefixed(w, prefix, r.Stdout)
		writePrefixed(w, prefix, r.Stderr)
		if r.Err != nil {
			fmt.Fprintf(w, "%s ERROR: %v (exit code: %d)\n", prefix, r.Err, r.ExitCode)
		} else if r.ExitCode != 0 {
			fmt.Fprintf(w, "%s exit code: %d\n", prefix, r.ExitCode)
		}
	}
}

func writePrefixed(w io.Writer, prefix, text string) {
	if text == "" {
		return
	}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		fmt.Fprintf(w, "%s %s\n", prefix, scanner.Text())
	}
}

// FailureReport prints the offending host and command of every failed job
// in a batch.
func FailureReport(w io.Writer, results []monitor.Result) {
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		if r.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", r.Host, r.Err)
		} else {
			fmt.Fprintf(w, "  %s: exit code %d\n", r.Host, r.ExitCode)
		}
		fmt.Fprintf(w, "    command: %s\n", r.Command)
	}
}

// CheckTable renders the check-mode pass/fail table: one row per checked
// key with its effective value and a passing or failing indicator.
func CheckTable(w io.Writer, results []config.CheckResult) {
	titler := cases.Title(language.English)

	keyWidth := len("Setting")
	valueWidth := len("Value")
	for _, r := range results {
		if len(r.Key) > keyWidth {
			keyWidth = len(r.Key)
		}
		if len(r.Value) > valueWidth {
			valueWidth = len(r.Value)
		}
	}

	fmt.Fprintf(w, "%-*s  %-*s  %-8s  %s\n", keyWidth, titler.String("setting"), valueWidth, titler.String("value"), titler.String("required"), titler.String("status"))
	for _, r := range results {
		required := "no"
		if r.Required {
			required = "yes"
		}
		status := "✓"
		if !r.OK {
			status = "✗ missing"
		}
		fmt.Fprintf(w, "%-*s  %-*s  %-8s  %s\n", keyWidth, r.Key, valueWidth, r.Value, required, status)
	}
}

// StrategyList prints the discovered strategy names, one per line.
func StrategyList(w io.Writer, names []string) {
	fmt.Fprintln(w, "Available strategies:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

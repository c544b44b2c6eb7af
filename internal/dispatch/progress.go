package dispatch

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// heartbeat renders a textual progress indicator on a fixed interval while
// a backgrounded unit of work is alive. It is a user-facing heartbeat, not
// a scheduler.
type heartbeat struct {
	label    string
	writer   io.Writer
	interval time.Duration

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// newHeartbeat creates a heartbeat for one labeled unit of work.
func newHeartbeat(label string, writer io.Writer, interval time.Duration) *heartbeat {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &heartbeat{
		label:    label,
		writer:   writer,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins drawing until Stop is called.
func (h *heartbeat) Start() {
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		frame := 0
		for {
			select {
			case <-ticker.C:
				fmt.Fprintf(h.writer, "\r%s %s ", spinnerFrames[frame%len(spinnerFrames)], h.label)
				frame++
			case <-h.stop:
				return
			}
		}
	}()
}

// Stop halts the indicator and prints the final marker for the unit:
// a success marker, or the label flagged as failed.
func (h *heartbeat) Stop(err error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stop)
	<-h.done

	// Clear the spinner line before the final marker.
	fmt.Fprintf(h.writer, "\r%*s\r", len(h.label)+4, "")
	if err != nil {
		fmt.Fprintf(h.writer, "✗ %s\n", h.label)
		return
	}
	fmt.Fprintf(h.writer, "✓ %s\n", h.label)
}

package monitor

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/kmpscan/pkg/config"
	"github.com/Veraticus/kmpscan/pkg/notification"
)

// OutputMonitor splits process output into lines, matches patterns in each
// line and reports every match
type OutputMonitor struct {
	config   *config.Config
	notifier notification.Notifier
	source   string

	mu             sync.Mutex
	patternMatcher PatternMatcher
	lineBuffer     bytes.Buffer
	lines          int
	counts         map[string]int
}

// NewOutputMonitor creates a new output monitor. source names the watched
// command in notification titles.
func NewOutputMonitor(cfg *config.Config, pm PatternMatcher, notifier notification.Notifier, source string) *OutputMonitor {
	return &OutputMonitor{
		config:         cfg,
		patternMatcher: pm,
		notifier:       notifier,
		source:         source,
		counts:         make(map[string]int),
	}
}

// SetPatternMatcher replaces the matcher used for subsequent lines
func (om *OutputMonitor) SetPatternMatcher(pm PatternMatcher) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.patternMatcher = pm
}

// HandleData processes raw output data
func (om *OutputMonitor) HandleData(data []byte) {
	om.mu.Lock()
	defer om.mu.Unlock()

	// Add data to line buffer
	om.lineBuffer.Write(data)

	// Process complete lines
	buffer := om.lineBuffer.Bytes()
	start := 0
	for i := 0; i < len(buffer); i++ {
		if buffer[i] == '\n' {
			om.processLine(string(bytes.TrimSuffix(buffer[start:i], []byte("\r"))))
			start = i + 1
		}
	}

	// Keep any incomplete line in the buffer
	rest := append([]byte(nil), buffer[start:]...)
	om.lineBuffer.Reset()
	om.lineBuffer.Write(rest)
}

// processLine matches a single line of output. Callers hold om.mu.
func (om *OutputMonitor) processLine(line string) {
	om.lines++

	// Skip if in quiet mode
	if om.config.Quiet || om.patternMatcher == nil {
		return
	}

	matches := om.patternMatcher.Match(line)
	for _, match := range matches {
		om.counts[match.PatternName]++

		if os.Getenv("KMPSCAN_DEBUG") == "1" {
			fmt.Fprintf(os.Stderr, "kmpscan: pattern '%s' matched at %d in line: %q\n", match.PatternName, match.Position, line)
		}

		if om.notifier == nil {
			continue
		}

		n := notification.Notification{
			Title:    om.source,
			Message:  line,
			Time:     time.Now(),
			Pattern:  match.PatternName,
			Position: match.Position,
		}
		if err := om.notifier.Send(n); err != nil {
			// Keep monitoring even if notifications fail
			fmt.Fprintf(os.Stderr, "kmpscan: notification error: %v\n", err)
		}
	}
}

// Flush processes any remaining data in the buffer
func (om *OutputMonitor) Flush() {
	om.mu.Lock()
	defer om.mu.Unlock()

	if om.lineBuffer.Len() > 0 {
		line := string(bytes.TrimSuffix(om.lineBuffer.Bytes(), []byte("\r")))
		om.lineBuffer.Reset()
		om.processLine(line)
	}
}

// HandleLine implements the OutputHandler interface
func (om *OutputMonitor) HandleLine(line string) {
	om.mu.Lock()
	defer om.mu.Unlock()

	om.processLine(line)
}

// Lines returns the number of complete lines processed
func (om *OutputMonitor) Lines() int {
	om.mu.Lock()
	defer om.mu.Unlock()
	return om.lines
}

// Counts returns the number of matches seen per pattern
func (om *OutputMonitor) Counts() map[string]int {
	om.mu.Lock()
	defer om.mu.Unlock()

	counts := make(map[string]int, len(om.counts))
	for k, v := range om.counts {
		counts[k] = v
	}
	return counts
}
